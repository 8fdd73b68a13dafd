package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/repository"
	"go.uber.org/zap"
)

// actionHandler 处理单个行动：修改 players 并返回结果与公告（可为空）
type actionHandler func(a game.Action, players []game.Player) (game.ActionResult, string)

// errNothingToApply 阶段内没有待应用的行动，放弃本次写入
var errNothingToApply = stderrors.New("nothing to apply")

// Applier 行动应用器
type Applier struct {
	repo     *repository.StateRepository
	logger   *zap.Logger
	handlers map[game.ActionKind]actionHandler
}

// NewApplier 创建行动应用器
func NewApplier(repo *repository.StateRepository, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Applier{
		repo:   repo,
		logger: logger,
	}
	a.handlers = map[game.ActionKind]actionHandler{
		game.ActionKill:         a.applyKill,
		game.ActionPoison:       a.applyPoison,
		game.ActionButlerChoice: a.applyButlerChoice,
	}
	return a
}

// ApplyActions 应用阶段内全部未应用的行动，返回按行动顺序排列的公告
//
// 行动结果、玩家状态和 applied 标记在同一次原子写入中落盘；
// 写入确认后才把修改同步到调用方传入的 players。
func (a *Applier) ApplyActions(ctx context.Context, phase string, players []game.Player) ([]string, error) {
	return a.apply(ctx, phase, "", players)
}

// ApplyAndAnnounce 与 ApplyActions 相同，并在同一次写入中把公告记到 target 阶段
func (a *Applier) ApplyAndAnnounce(ctx context.Context, phase, target string, players []game.Player) ([]string, error) {
	if _, err := game.ParsePhase(target); err != nil {
		return nil, err
	}
	return a.apply(ctx, phase, target, players)
}

func (a *Applier) apply(ctx context.Context, phase, target string, players []game.Player) ([]string, error) {
	if _, err := game.ParsePhase(phase); err != nil {
		return nil, err
	}

	announcements := []string{}
	work := game.ClonePlayers(players)
	applied := 0

	err := a.repo.Update(ctx, "apply_actions", func(doc *game.Document) error {
		rec, ok := doc.Record(phase)
		if !ok {
			return errNothingToApply
		}
		for i := range rec.Actions {
			action := &rec.Actions[i]
			if action.Applied {
				continue
			}

			handler, known := a.handlers[action.Type]
			if !known {
				a.logger.Warn("未知的行动类型，标记为已应用",
					zap.String("phase", phase),
					zap.String("type", string(action.Type)),
					zap.Any("details", action.Details),
				)
				action.MarkApplied(game.ActionResult{Status: game.StatusUnhandled})
				applied++
				continue
			}

			result, text := handler(*action, work)
			action.MarkApplied(result)
			applied++
			if text != "" {
				announcements = append(announcements, text)
			}
		}
		if applied == 0 {
			return errNothingToApply
		}
		doc.Players = game.ClonePlayers(work)
		if target != "" {
			doc.EnsureRecord(target).Announcements = strings.Join(announcements, "\n")
		}
		return nil
	})
	if stderrors.Is(err, errNothingToApply) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	copy(players, work)
	a.logger.Info("行动已应用",
		zap.String("phase", phase),
		zap.Int("applied", applied),
		zap.Int("announcements", len(announcements)),
	)
	return announcements, nil
}

// lookupTarget 按 details 中的 key 查找玩家
func (a *Applier) lookupTarget(action game.Action, key string, players []game.Player) (int, int, bool) {
	number, ok := action.Detail(key)
	if !ok {
		a.logger.Debug("行动缺少目标", zap.String("type", string(action.Type)), zap.String("key", key))
		return 0, -1, false
	}
	idx := game.FindPlayer(players, number)
	if idx < 0 {
		a.logger.Debug("行动目标不存在，跳过",
			zap.String("type", string(action.Type)),
			zap.Int("target", number),
		)
		return number, -1, false
	}
	return number, idx, true
}

func (a *Applier) applyKill(action game.Action, players []game.Player) (game.ActionResult, string) {
	number, idx, ok := a.lookupTarget(action, game.DetailTarget, players)
	if !ok {
		return game.ActionResult{Target: number, Status: game.StatusInvalidTarget}, ""
	}

	target := &players[idx]
	if !target.Alive {
		return game.ActionResult{Target: number, TargetName: target.Name, Status: game.StatusAlreadyDead}, ""
	}

	target.Alive = false
	return game.ActionResult{Target: number, TargetName: target.Name}, fmt.Sprintf("%s was killed", target.Name)
}

func (a *Applier) applyPoison(action game.Action, players []game.Player) (game.ActionResult, string) {
	number, idx, ok := a.lookupTarget(action, game.DetailTarget, players)
	if !ok {
		return game.ActionResult{Target: number, Status: game.StatusInvalidTarget}, ""
	}

	target := &players[idx]
	target.Poisoned = true
	return game.ActionResult{Target: number, TargetName: target.Name, Status: game.StatusPoisoned}, ""
}

func (a *Applier) applyButlerChoice(action game.Action, players []game.Player) (game.ActionResult, string) {
	master, _ := action.Detail(game.DetailMaster)
	return game.ActionResult{Master: master, Status: game.StatusRecorded}, ""
}
