package phase

import (
	"context"
	"strconv"
	"strings"

	"github.com/wfunc/townsquare/internal/engine"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/repository"
	"go.uber.org/zap"
)

// Dispatcher 消息驱动的阶段行为：发送提示、收集回复、记录行动
type Dispatcher struct {
	repo      *repository.StateRepository
	inbox     *Inbox
	outbox    *Outbox
	collector *Collector
	logger    *zap.Logger
}

// NewDispatcher 创建阶段分发器
func NewDispatcher(repo *repository.StateRepository, inbox *Inbox, outbox *Outbox, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		repo:      repo,
		inbox:     inbox,
		outbox:    outbox,
		collector: NewCollector(inbox, logger.Named("collector")),
		logger:    logger,
	}
}

// Inbox 收件箱
func (d *Dispatcher) Inbox() *Inbox { return d.inbox }

// Outbox 发件箱
func (d *Dispatcher) Outbox() *Outbox { return d.outbox }

// choice 对回复的解释结果
type choice struct {
	kind    game.ActionKind
	details map[string]int
	valid   bool
}

// Run 实现 engine.Behavior
func (d *Dispatcher) Run(ctx context.Context, pc engine.PhaseContext) (engine.PhaseResult, error) {
	var result engine.PhaseResult

	if err := d.ensureSent(ctx, pc); err != nil {
		return result, err
	}

	waiting := d.waiting(pc)
	for _, p := range pc.Players {
		if pc.Resumed && !waiting[p.Number] {
			continue
		}
		d.outbox.Send(Prompt{
			Phase:   pc.Name,
			Player:  p.Number,
			To:      p.Contact,
			Subject: Subject(pc.Name, p.Number),
			Body:    PromptBody(pc.Type, pc.Name, p, pc.Players, pc.Announcements),
		})
	}

	d.logger.Info("等待玩家回复",
		zap.String("phase", pc.Name),
		zap.Int("waiting", len(waiting)),
		zap.Bool("resumed", pc.Resumed),
		zap.Duration("timeout", pc.Timeout),
	)

	collected, err := d.collector.Wait(ctx, pc.Name, waiting, pc.Timeout, func(ctx context.Context, msg Message) (bool, error) {
		return d.handle(ctx, pc, msg, &result)
	})
	result.TimedOut = collected.TimedOut
	if err != nil {
		return result, err
	}
	return result, nil
}

// ensureSent 记录本阶段的通用提示，已记录时保持不变
func (d *Dispatcher) ensureSent(ctx context.Context, pc engine.PhaseContext) error {
	if rec, ok := d.repo.Document().Record(pc.Name); ok && rec.Sent != nil {
		return nil
	}
	sent := SentSummary(pc.Type, pc.Name, pc.Players)
	return d.repo.UpdatePhase(ctx, pc.Name, repository.PhaseUpdate{Sent: &sent})
}

// waiting 仍需回复的存活玩家
//
// 需要做选择的角色必须同时有回复和对应的行动记录才算完成。
func (d *Dispatcher) waiting(pc engine.PhaseContext) map[int]bool {
	actions := d.repo.Actions(pc.Name)

	out := make(map[int]bool)
	for _, p := range pc.Players {
		if !p.Alive {
			continue
		}
		if !d.repo.HasResponse(pc.Name, p.Number) {
			out[p.Number] = true
			continue
		}
		if kind, needed := requiredAction(pc.Type, p); needed && !hasAction(actions, kind, p.Number) {
			out[p.Number] = true
		}
	}
	return out
}

// handle 处理一条回复，返回玩家是否已满足
func (d *Dispatcher) handle(ctx context.Context, pc engine.PhaseContext, msg Message, result *engine.PhaseResult) (bool, error) {
	idx := game.FindPlayer(pc.Players, msg.Player)
	if idx < 0 {
		return false, nil
	}
	player := pc.Players[idx]

	if !strings.EqualFold(strings.TrimSpace(msg.From), strings.TrimSpace(player.Contact)) {
		d.logger.Warn("发件人与玩家不匹配，忽略",
			zap.String("phase", pc.Name),
			zap.Int("player", player.Number),
			zap.String("from", msg.From),
		)
		return false, nil
	}

	text := FirstLine(msg.Body)
	if err := d.repo.RecordResponse(ctx, pc.Name, player.Number, msg.From, text); err != nil {
		return false, err
	}
	result.Responses++

	c, needed := interpret(pc.Type, player, text, pc.Players)
	if !needed {
		return true, nil
	}
	if !c.valid {
		d.logger.Info("回复无法解析，重新提示",
			zap.String("phase", pc.Name),
			zap.Int("player", player.Number),
			zap.String("text", text),
		)
		d.outbox.Send(Prompt{
			Phase:   pc.Name,
			Player:  player.Number,
			To:      player.Contact,
			Subject: "Re: " + Subject(pc.Name, player.Number),
			Body:    reprompt(player) + "\n",
		})
		return false, nil
	}

	if err := d.repo.RecordAction(ctx, pc.Name, c.kind, c.details); err != nil {
		return false, err
	}
	result.Actions++
	d.logger.Info("记录行动",
		zap.String("phase", pc.Name),
		zap.String("type", string(c.kind)),
		zap.Any("details", c.details),
	)
	return true, nil
}

// requiredAction 该玩家在此类阶段是否必须做出选择
func requiredAction(typ game.PhaseType, p game.Player) (game.ActionKind, bool) {
	if !p.Alive {
		return "", false
	}
	switch typ {
	case game.PhaseTypeFirstNight:
		switch p.RoleName {
		case RoleButler:
			return game.ActionButlerChoice, true
		case RolePoisoner:
			return game.ActionPoison, true
		}
	case game.PhaseTypeNight:
		if p.IsDemon() {
			return game.ActionKill, true
		}
	}
	return "", false
}

// interpret 把回复解释为行动
func interpret(typ game.PhaseType, p game.Player, text string, players []game.Player) (choice, bool) {
	kind, needed := requiredAction(typ, p)
	if !needed {
		return choice{}, false
	}

	c := choice{kind: kind}
	target, ok := parseNumber(text)
	if !ok {
		return c, true
	}
	idx := game.FindPlayer(players, target)
	if idx < 0 || !players[idx].Alive {
		return c, true
	}

	switch kind {
	case game.ActionButlerChoice:
		if target == p.Number {
			return c, true
		}
		c.details = map[string]int{game.DetailBy: p.Number, game.DetailMaster: target}
	default:
		c.details = map[string]int{game.DetailBy: p.Number, game.DetailTarget: target}
	}
	c.valid = true
	return c, true
}

// parseNumber 读取回复开头的玩家编号，允许 "#3" 或 "3." 这样的写法
func parseNumber(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	token := strings.TrimRight(strings.TrimPrefix(fields[0], "#"), ".,:;)")
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return n, true
}

func hasAction(actions []game.Action, kind game.ActionKind, by int) bool {
	for _, a := range actions {
		if a.Type != kind {
			continue
		}
		if n, ok := a.Detail(game.DetailBy); ok && n == by {
			return true
		}
	}
	return false
}

func reprompt(p game.Player) string {
	switch {
	case p.RoleName == RoleButler:
		return repromptButler
	case p.RoleName == RolePoisoner:
		return repromptPoisoner
	default:
		return repromptDemon
	}
}
