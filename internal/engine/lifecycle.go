package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"go.uber.org/zap"
)

// PhaseState 阶段生命周期状态
type PhaseState string

const (
	PhasePending PhaseState = "pending" // 记录尚未开始
	PhaseActive  PhaseState = "active"  // 已开始，等待回复
	PhaseDone    PhaseState = "done"    // 已完成
)

// 生命周期事件
const (
	EventStart    = "start"
	EventResume   = "resume"
	EventComplete = "complete"
)

// Transition 状态转换定义
type Transition struct {
	From  PhaseState
	Event string
	To    PhaseState
}

// transitions 合法的状态转换表
var transitions = map[string]Transition{}

func init() {
	for _, t := range []Transition{
		{From: PhasePending, Event: EventStart, To: PhaseActive},
		{From: PhaseActive, Event: EventResume, To: PhaseActive},
		{From: PhaseActive, Event: EventComplete, To: PhaseDone},
	} {
		transitions[transitionKey(t.From, t.Event)] = t
	}
}

// transitionKey 生成转换键
func transitionKey(state PhaseState, event string) string {
	return fmt.Sprintf("%s:%s", state, event)
}

// StateOf 根据阶段记录推导生命周期状态
func StateOf(rec *game.PhaseRecord) PhaseState {
	switch {
	case rec == nil:
		return PhasePending
	case rec.Completed:
		return PhaseDone
	case rec.PhaseType != "" || rec.Sent != nil:
		return PhaseActive
	default:
		return PhasePending
	}
}

// Lifecycle 单个阶段的状态机
type Lifecycle struct {
	mu            sync.Mutex
	phase         string
	state         PhaseState
	logger        *zap.Logger
	onStateChange func(phase string, from, to PhaseState)
}

// NewLifecycle 以给定状态创建阶段状态机
func NewLifecycle(phase string, state PhaseState, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{phase: phase, state: state, logger: logger}
}

// OnStateChange 设置状态变更回调
func (l *Lifecycle) OnStateChange(fn func(phase string, from, to PhaseState)) {
	l.onStateChange = fn
}

// State 当前状态
func (l *Lifecycle) State() PhaseState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// CanTransition 检查是否可以转换
func (l *Lifecycle) CanTransition(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := transitions[transitionKey(l.state, event)]
	return ok
}

// Trigger 触发事件
//
// action 在状态变更前执行（通常是持久化检查点），失败时保持原状态。
func (l *Lifecycle) Trigger(ctx context.Context, event string, action func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := transitions[transitionKey(l.state, event)]
	if !ok {
		return errors.Newf(errors.ErrPhaseState, "无效的状态转换: 阶段=%s, 状态=%s, 事件=%s", l.phase, l.state, event)
	}

	if action != nil {
		if err := action(ctx); err != nil {
			return err
		}
	}

	from := l.state
	l.state = t.To

	if l.onStateChange != nil {
		l.onStateChange(l.phase, from, t.To)
	}

	l.logger.Info("阶段状态转换",
		zap.String("phase", l.phase),
		zap.String("from", string(from)),
		zap.String("to", string(t.To)),
		zap.String("event", event),
	)
	return nil
}
