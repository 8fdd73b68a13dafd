package engine

import (
	"time"

	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"go.uber.org/zap"
)

// ResumePoint 编排循环的起点
type ResumePoint struct {
	Index  int          // 循环序号，1 = REGISTRATION
	Phase  game.PhaseID // 对应阶段
	Resume bool         // 为真时继续未完成的阶段，不重新应用上一阶段的行动
}

// RecoveryManager 根据持久化文档决定从哪里继续
type RecoveryManager struct {
	logger     *zap.Logger
	staleAfter time.Duration // 文档超过该时长未更新时给出警告
}

// NewRecoveryManager 创建恢复管理器
func NewRecoveryManager(logger *zap.Logger, staleAfter time.Duration) *RecoveryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryManager{
		logger:     logger,
		staleAfter: staleAfter,
	}
}

// ResumePoint 计算恢复点
//
// 任何无法解析的阶段名称都是致命错误：无法确定顺序就无法恢复。
func (rm *RecoveryManager) ResumePoint(doc *game.Document) (ResumePoint, error) {
	if _, err := doc.SortedPhases(); err != nil {
		return ResumePoint{}, errors.Wrap(err, errors.ErrPhaseName, "阶段历史中存在非法名称")
	}

	if doc.Phase == "" {
		return ResumePoint{Index: 1, Phase: game.Registration}, nil
	}

	current, err := game.ParsePhase(doc.Phase)
	if err != nil {
		return ResumePoint{}, errors.Wrap(err, errors.ErrPhaseName, "当前阶段名称非法")
	}

	if rm.staleAfter > 0 && time.Since(doc.Metadata.LastUpdated) > rm.staleAfter {
		rm.logger.Warn("游戏文档长时间未更新",
			zap.String("phase", doc.Phase),
			zap.Time("last_updated", doc.Metadata.LastUpdated),
			zap.Duration("stale_after", rm.staleAfter),
		)
	}

	rec, _ := doc.Record(doc.Phase)
	state := StateOf(rec)
	point := rm.getRecoveryStrategy(state)(current)

	rm.logger.Info("计算恢复点",
		zap.String("phase", doc.Phase),
		zap.String("state", string(state)),
		zap.String("resume_phase", point.Phase.String()),
		zap.Bool("resume", point.Resume),
	)
	return point, nil
}

// getRecoveryStrategy 根据阶段状态获取恢复策略
func (rm *RecoveryManager) getRecoveryStrategy(state PhaseState) func(game.PhaseID) ResumePoint {
	strategies := map[PhaseState]func(game.PhaseID) ResumePoint{
		PhasePending: rm.recoverPending,
		PhaseActive:  rm.recoverActive,
		PhaseDone:    rm.recoverDone,
	}

	if strategy, exists := strategies[state]; exists {
		return strategy
	}
	return rm.recoverPending
}

// recoverPending 阶段尚未开始：按正常流程重新开始
func (rm *RecoveryManager) recoverPending(current game.PhaseID) ResumePoint {
	return ResumePoint{Index: current.Index(), Phase: current}
}

// recoverActive 阶段进行中：继续收集回复
func (rm *RecoveryManager) recoverActive(current game.PhaseID) ResumePoint {
	return ResumePoint{Index: current.Index(), Phase: current, Resume: true}
}

// recoverDone 阶段已完成：进入下一阶段
func (rm *RecoveryManager) recoverDone(current game.PhaseID) ResumePoint {
	next := current.Next()
	return ResumePoint{Index: next.Index(), Phase: next}
}
