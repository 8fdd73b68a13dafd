package phase

import (
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/townsquare/internal/errors"
	"go.uber.org/zap"
)

// DefaultInboxSize 默认收件箱容量
const DefaultInboxSize = 256

// Inbox 入站回复队列
type Inbox struct {
	ch     chan Message
	logger *zap.Logger
}

// NewInbox 创建收件箱
func NewInbox(size int, logger *zap.Logger) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		ch:     make(chan Message, size),
		logger: logger,
	}
}

// Deliver 投递回复，队列已满时立即返回 ErrInboxFull
func (in *Inbox) Deliver(msg Message) (Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	select {
	case in.ch <- msg:
		in.logger.Debug("收到回复",
			zap.String("id", msg.ID),
			zap.String("phase", msg.Phase),
			zap.Int("player", msg.Player),
		)
		return msg, nil
	default:
		in.logger.Warn("收件箱已满，丢弃回复",
			zap.String("phase", msg.Phase),
			zap.Int("player", msg.Player),
		)
		return msg, errors.Newf(errors.ErrInboxFull, "容量 %d", cap(in.ch))
	}
}

// C 读取通道
func (in *Inbox) C() <-chan Message {
	return in.ch
}

// Len 队列中的消息数
func (in *Inbox) Len() int {
	return len(in.ch)
}
