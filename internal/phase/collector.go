package phase

import (
	"context"
	"sort"
	"time"

	"github.com/wfunc/townsquare/internal/errors"
	"go.uber.org/zap"
)

// HandleFunc 处理一条回复，返回 true 表示该玩家已满足，不再等待
type HandleFunc func(ctx context.Context, msg Message) (bool, error)

// CollectResult 收集结果
type CollectResult struct {
	Handled  int
	Pending  []int
	TimedOut bool
}

// Collector 在超时内从收件箱收集回复
type Collector struct {
	inbox  *Inbox
	logger *zap.Logger
}

// NewCollector 创建收集器
func NewCollector(inbox *Inbox, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{inbox: inbox, logger: logger}
}

// Wait 等待 waiting 中的玩家全部满足或超时
//
// 超时不是错误：返回已收集的部分结果且 TimedOut 为真。timeout <= 0 表示不限时。
// 不属于该阶段或不在等待集合中的回复会被丢弃。
func (c *Collector) Wait(ctx context.Context, phase string, waiting map[int]bool, timeout time.Duration, handle HandleFunc) (CollectResult, error) {
	var result CollectResult

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for len(waiting) > 0 {
		select {
		case <-ctx.Done():
			result.Pending = pendingOf(waiting)
			return result, errors.Wrap(ctx.Err(), errors.ErrCanceled, "等待回复被取消")

		case <-deadline:
			result.TimedOut = true
			result.Pending = pendingOf(waiting)
			c.logger.Warn("等待回复超时",
				zap.String("phase", phase),
				zap.Duration("timeout", timeout),
				zap.Ints("pending", result.Pending),
			)
			return result, nil

		case msg := <-c.inbox.C():
			if msg.Phase != phase {
				c.logger.Debug("丢弃其他阶段的回复",
					zap.String("phase", phase),
					zap.String("message_phase", msg.Phase),
					zap.Int("player", msg.Player),
				)
				continue
			}
			if !waiting[msg.Player] {
				c.logger.Debug("玩家不在等待列表中", zap.String("phase", phase), zap.Int("player", msg.Player))
				continue
			}

			done, err := handle(ctx, msg)
			if err != nil {
				result.Pending = pendingOf(waiting)
				return result, err
			}
			result.Handled++
			if done {
				delete(waiting, msg.Player)
				c.logger.Info("玩家已回复",
					zap.String("phase", phase),
					zap.Int("player", msg.Player),
					zap.Int("remaining", len(waiting)),
				)
			}
		}
	}

	result.Pending = []int{}
	return result, nil
}

func pendingOf(waiting map[int]bool) []int {
	out := make([]int, 0, len(waiting))
	for n := range waiting {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
