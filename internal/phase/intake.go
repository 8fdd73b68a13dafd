package phase

import (
	"strings"

	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/repository"
	"go.uber.org/zap"
)

// Intake 外部回复的入口：校验阶段与发件人后投递到收件箱
type Intake struct {
	repo   *repository.StateRepository
	inbox  *Inbox
	logger *zap.Logger
}

// NewIntake 创建回复入口
func NewIntake(repo *repository.StateRepository, inbox *Inbox, logger *zap.Logger) *Intake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{repo: repo, inbox: inbox, logger: logger}
}

// Submit 提交一条回复
//
// 只接受当前阶段的回复；from 必须与玩家登记的联系方式一致（不区分大小写）。
func (in *Intake) Submit(player int, phaseName, from, body string) (Message, error) {
	if _, err := game.ParsePhase(phaseName); err != nil {
		return Message{}, err
	}
	if current := in.repo.CurrentPhase(); current != phaseName {
		return Message{}, errors.Newf(errors.ErrPhaseNotCurrent, "当前阶段为 %q，收到 %q 的回复", current, phaseName)
	}

	p, ok := in.Player(player)
	if !ok {
		return Message{}, errors.Newf(errors.ErrPlayerNotFound, "玩家编号 %d", player)
	}
	if !strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(p.Contact)) {
		in.logger.Warn("拒绝发件人不匹配的回复",
			zap.String("phase", phaseName),
			zap.Int("player", player),
			zap.String("from", from))
		return Message{}, errors.Newf(errors.ErrSenderMismatch, "玩家 %d", player)
	}

	return in.inbox.Deliver(Message{
		Phase:  phaseName,
		Player: player,
		From:   from,
		Body:   body,
	})
}

// Player 按编号查找玩家
func (in *Intake) Player(number int) (game.Player, bool) {
	players := in.repo.Players()
	idx := game.FindPlayer(players, number)
	if idx < 0 {
		return game.Player{}, false
	}
	return players[idx], true
}
