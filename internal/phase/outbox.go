package phase

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outbox 出站提示，保存每个玩家最近一次收到的提示
type Outbox struct {
	mu     sync.RWMutex
	latest map[int]Prompt
	sent   int
	logger *zap.Logger
	onSend func(Prompt)
}

// NewOutbox 创建发件箱
func NewOutbox(logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{
		latest: make(map[int]Prompt),
		logger: logger,
	}
}

// OnSend 设置发送回调（例如推送给外部通知渠道）
func (o *Outbox) OnSend(fn func(Prompt)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSend = fn
}

// Send 发送提示
func (o *Outbox) Send(p Prompt) Prompt {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.SentAt.IsZero() {
		p.SentAt = time.Now().UTC()
	}

	o.mu.Lock()
	o.latest[p.Player] = p
	o.sent++
	fn := o.onSend
	o.mu.Unlock()

	o.logger.Debug("发送提示",
		zap.String("id", p.ID),
		zap.String("phase", p.Phase),
		zap.Int("player", p.Player),
		zap.String("to", p.To),
	)
	if fn != nil {
		fn(p)
	}
	return p
}

// Latest 玩家最近一次收到的提示
func (o *Outbox) Latest(player int) (Prompt, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.latest[player]
	return p, ok
}

// All 每个玩家最近一次的提示，按玩家编号排序
func (o *Outbox) All() []Prompt {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Prompt, 0, len(o.latest))
	for _, p := range o.latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Player < out[j].Player })
	return out
}

// Sent 已发送总数
func (o *Outbox) Sent() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sent
}
