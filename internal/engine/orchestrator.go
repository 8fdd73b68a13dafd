package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/repository"
	"go.uber.org/zap"
)

// DefaultMaxPhases 默认最多运行的阶段数
const DefaultMaxPhases = 10

// PhaseContext 交给阶段行为的上下文
type PhaseContext struct {
	Phase         game.PhaseID
	Name          string
	Type          game.PhaseType
	Players       []game.Player
	Announcements string
	Timeout       time.Duration
	Resumed       bool
}

// PhaseResult 阶段行为的收集结果
type PhaseResult struct {
	Responses int
	Actions   int
	TimedOut  bool // 超时返回的是部分结果
}

// Behavior 阶段行为：发送提示并在超时内收集回复与行动
type Behavior interface {
	Run(ctx context.Context, pc PhaseContext) (PhaseResult, error)
}

// Verdict 游戏结束判定
type Verdict struct {
	Over   bool
	Winner string
	Reason string
}

// Rules 游戏结束条件
type Rules interface {
	Evaluate(players []game.Player) Verdict
}

// Outcome 一次运行的结果
type Outcome struct {
	Ended     bool
	Winner    string
	Reason    string
	LastPhase string
	PhasesRun int
}

// Options 编排器配置
type Options struct {
	MaxPhases    int
	PhaseTimeout time.Duration
	StaleAfter   time.Duration
}

// Orchestrator 阶段编排器，严格顺序执行，任意时刻只有一个活动阶段
type Orchestrator struct {
	repo      *repository.StateRepository
	applier   *Applier
	behavior  Behavior
	rules     Rules
	recovery  *RecoveryManager
	logger    *zap.Logger
	maxPhases int
	timeout   atomic.Int64

	onStateChange func(phase string, from, to PhaseState)
}

// NewOrchestrator 创建编排器
func NewOrchestrator(repo *repository.StateRepository, behavior Behavior, rules Rules, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPhases <= 0 {
		opts.MaxPhases = DefaultMaxPhases
	}
	o := &Orchestrator{
		repo:      repo,
		applier:   NewApplier(repo, logger.Named("applier")),
		behavior:  behavior,
		rules:     rules,
		recovery:  NewRecoveryManager(logger.Named("recovery"), opts.StaleAfter),
		logger:    logger,
		maxPhases: opts.MaxPhases,
	}
	o.timeout.Store(int64(opts.PhaseTimeout))
	return o
}

// SetPhaseTimeout 更新每个阶段的等待时长（配置热更新时调用）
func (o *Orchestrator) SetPhaseTimeout(d time.Duration) {
	o.timeout.Store(int64(d))
	o.logger.Info("阶段超时已更新", zap.Duration("timeout", d))
}

// PhaseTimeout 当前阶段等待时长
func (o *Orchestrator) PhaseTimeout() time.Duration {
	return time.Duration(o.timeout.Load())
}

// OnStateChange 设置阶段状态变更回调
func (o *Orchestrator) OnStateChange(fn func(phase string, from, to PhaseState)) {
	o.onStateChange = fn
}

// Applier 行动应用器
func (o *Orchestrator) Applier() *Applier {
	return o.applier
}

// Run 从持久化文档的恢复点开始运行，直到达到阶段上限或游戏结束
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	var outcome Outcome

	point, err := o.recovery.ResumePoint(o.repo.Document())
	if err != nil {
		o.logger.Error("无法确定恢复点", zap.Error(err))
		return outcome, err
	}

	// 已完成阶段之后先判定是否已经结束
	if point.Index > 1 && !point.Resume && o.rules != nil {
		if v := o.rules.Evaluate(o.repo.Players()); v.Over {
			outcome = Outcome{Ended: true, Winner: v.Winner, Reason: v.Reason, LastPhase: o.repo.CurrentPhase()}
			o.logger.Info("游戏已结束，无需继续", zap.String("winner", v.Winner), zap.String("reason", v.Reason))
			return outcome, nil
		}
	}

	for idx := point.Index; idx <= o.maxPhases; idx++ {
		if err := ctx.Err(); err != nil {
			return outcome, errors.Wrap(err, errors.ErrCanceled, "编排被取消")
		}

		resumed := point.Resume && idx == point.Index
		if err := o.runPhase(ctx, game.PhaseAt(idx), resumed); err != nil {
			return outcome, err
		}
		outcome.LastPhase = game.PhaseAt(idx).String()
		outcome.PhasesRun++

		if o.rules == nil {
			continue
		}
		if v := o.rules.Evaluate(o.repo.Players()); v.Over {
			outcome.Ended, outcome.Winner, outcome.Reason = true, v.Winner, v.Reason
			o.logger.Info("游戏结束",
				zap.String("phase", outcome.LastPhase),
				zap.String("winner", v.Winner),
				zap.String("reason", v.Reason),
			)
			return outcome, nil
		}
	}

	o.logger.Info("达到阶段上限", zap.Int("max_phases", o.maxPhases), zap.String("last_phase", outcome.LastPhase))
	return outcome, nil
}

// runPhase 运行单个阶段: 应用上一阶段行动、开始检查点、阶段行为、完成检查点
func (o *Orchestrator) runPhase(ctx context.Context, phase game.PhaseID, resumed bool) error {
	name := phase.String()
	doc := o.repo.Document()
	rec, _ := doc.Record(name)

	lc := NewLifecycle(name, StateOf(rec), o.logger)
	lc.OnStateChange(o.onStateChange)

	if resumed {
		if err := lc.Trigger(ctx, EventResume, nil); err != nil {
			return err
		}
	} else {
		if phase.Index() > 1 {
			if err := o.applyPrevious(ctx, phase); err != nil {
				return err
			}
		}

		err := lc.Trigger(ctx, EventStart, func(ctx context.Context) error {
			typ := phase.Type()
			snap := o.repo.Snapshot(o.repo.Players())
			return o.repo.UpdatePhase(ctx, name, repository.PhaseUpdate{
				Type:     &typ,
				Snapshot: &snap,
				Current:  true,
			})
		})
		if err != nil {
			return err
		}
	}

	timeout := o.PhaseTimeout()
	result, err := o.behavior.Run(ctx, PhaseContext{
		Phase:         phase,
		Name:          name,
		Type:          phase.Type(),
		Players:       o.repo.Players(),
		Announcements: o.repo.Announcements(name),
		Timeout:       timeout,
		Resumed:       resumed,
	})
	if err != nil {
		o.logger.Error("阶段行为失败", zap.String("phase", name), zap.Error(err))
		return err
	}
	if result.TimedOut {
		o.logger.Warn("阶段等待超时，使用已收集的部分数据",
			zap.String("phase", name),
			zap.Duration("timeout", timeout),
			zap.Int("responses", result.Responses),
		)
	}

	return lc.Trigger(ctx, EventComplete, func(ctx context.Context) error {
		done := true
		snap := o.repo.Snapshot(o.repo.Players())
		return o.repo.UpdatePhase(ctx, name, repository.PhaseUpdate{
			Completed: &done,
			Snapshot:  &snap,
		})
	})
}

// applyPrevious 应用紧邻的上一阶段中未应用的行动，并把公告记到当前阶段
func (o *Orchestrator) applyPrevious(ctx context.Context, current game.PhaseID) error {
	doc := o.repo.Document()
	prev, ok, err := doc.PreviousPhase(current)
	if err != nil {
		return errors.Wrap(err, errors.ErrPhaseName, "阶段历史中存在非法名称")
	}
	if !ok {
		return nil
	}

	rec, _ := doc.Record(prev.String())
	if rec == nil || rec.UnappliedCount() == 0 {
		o.logger.Debug("上一阶段没有待应用的行动",
			zap.String("previous", prev.String()),
			zap.String("phase", current.String()),
		)
		return nil
	}

	players := o.repo.Players()
	lines, err := o.applier.ApplyAndAnnounce(ctx, prev.String(), current.String(), players)
	if err != nil {
		return err
	}

	o.logger.Info("上一阶段行动已结算",
		zap.String("previous", prev.String()),
		zap.String("phase", current.String()),
		zap.Strings("announcements", lines),
	)
	return nil
}
