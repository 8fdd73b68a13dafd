package phase

import (
	"time"
)

// Message 玩家发来的回复
type Message struct {
	ID         string    `json:"id"`
	Phase      string    `json:"phase"`
	Player     int       `json:"player"`
	From       string    `json:"from"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Prompt 发给玩家的提示
type Prompt struct {
	ID      string    `json:"id"`
	Phase   string    `json:"phase"`
	Player  int       `json:"player"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}
