package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/townsquare/internal/phase"
	"go.uber.org/zap"
)

// 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 游戏消息
	MessageTypePrompt        = "prompt"
	MessageTypeReply         = "reply"
	MessageTypeReplyAccepted = "reply_accepted"
)

// heartbeatInterval 心跳广播周期
const heartbeatInterval = 30 * time.Second

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	Player    int             `json:"player,omitempty"`
	Phase     string          `json:"phase,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ReplyData 玩家通过 WebSocket 发来的回复内容
type ReplyData struct {
	Body string `json:"body"`
}

// ReplyHandler 把玩家回复投递到收件箱
type ReplyHandler func(player int, phase, body string) error

// Hub 玩家连接管理中心，负责推送提示和接收回复
type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 玩家编号到客户端的映射
	playerClients map[int][]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	onReply ReplyHandler
	logger  *zap.Logger
}

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:       make(map[string]*Client),
		playerClients: make(map[int][]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// OnReply 设置回复处理器
func (h *Hub) OnReply(fn ReplyHandler) {
	h.onReply = fn
}

// Run 运行Hub，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.broadcast(&Message{Type: MessageTypePing, Timestamp: time.Now().Unix()})
		}
	}
}

// Register 注册客户端，Hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.playerClients[client.Player] = append(h.playerClients[client.Player], client)
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Int("player", client.Player))

	h.send(client, &Message{
		Type:      MessageTypeConnected,
		Player:    client.Player,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"message":"连接成功"}`),
	})
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)

	clients := h.playerClients[client.Player]
	for i, c := range clients {
		if c.ID == client.ID {
			h.playerClients[client.Player] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.playerClients[client.Player]) == 0 {
		delete(h.playerClients, client.Player)
	}

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.Int("player", client.Player))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.playerClients = make(map[int][]*Client)
}

// broadcast 广播消息
func (h *Hub) broadcast(message *Message) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range h.clients {
		h.send(client, message)
	}
}

// send 写入客户端发送缓冲区，缓冲区满时丢弃
func (h *Hub) send(client *Client, message *Message) bool {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		h.logger.Warn("客户端发送缓冲区满",
			zap.String("client_id", client.ID),
			zap.Int("player", client.Player))
		return false
	}
}

// sendToClient 仅在客户端仍处于注册状态时发送，避免写入已关闭的通道
func (h *Hub) sendToClient(client *Client, message *Message) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if h.clients[client.ID] != client {
		return false
	}
	return h.send(client, message)
}

// SendToPlayer 发送消息给指定玩家的所有连接
func (h *Hub) SendToPlayer(player int, message *Message) error {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	clients := h.playerClients[player]
	if len(clients) == 0 {
		return ErrPlayerNotConnected
	}
	for _, client := range clients {
		h.send(client, message)
	}
	return nil
}

// PushPrompt 把发件箱中的提示推送给在线玩家，可直接作为 Outbox.OnSend 回调
func (h *Hub) PushPrompt(p phase.Prompt) {
	data, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("序列化提示失败", zap.Error(err))
		return
	}
	err = h.SendToPlayer(p.Player, &Message{
		Type:      MessageTypePrompt,
		Player:    p.Player,
		Phase:     p.Phase,
		Data:      data,
		Timestamp: p.SentAt.Unix(),
	})
	if err != nil {
		h.logger.Debug("玩家不在线，提示仅保存在发件箱",
			zap.Int("player", p.Player),
			zap.String("phase", p.Phase))
	}
}

// OnlineCount 在线连接数
func (h *Hub) OnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// OnlinePlayers 在线玩家编号，升序
func (h *Hub) OnlinePlayers() []int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	players := make([]int, 0, len(h.playerClients))
	for n := range h.playerClients {
		players = append(players, n)
	}
	sort.Ints(players)
	return players
}
