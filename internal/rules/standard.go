package rules

import (
	"fmt"

	"github.com/wfunc/townsquare/internal/engine"
	"github.com/wfunc/townsquare/internal/game"
)

// 阵营
const (
	WinnerGood = "good"
	WinnerEvil = "evil"
)

// DefaultFinalCount 存活人数降到该值且恶魔仍存活时邪恶方获胜
const DefaultFinalCount = 2

// Standard 标准胜负判定
type Standard struct {
	FinalCount int
}

// NewStandard 创建标准判定
func NewStandard() *Standard {
	return &Standard{FinalCount: DefaultFinalCount}
}

// Evaluate 根据玩家状态判断游戏是否结束
//
// 没有任何恶魔角色时（例如角色尚未分配）不做判定。
func (s *Standard) Evaluate(players []game.Player) engine.Verdict {
	demons, aliveDemons := 0, 0
	for _, p := range players {
		if !p.IsDemon() {
			continue
		}
		demons++
		if p.Alive {
			aliveDemons++
		}
	}
	if demons == 0 {
		return engine.Verdict{}
	}

	if aliveDemons == 0 {
		return engine.Verdict{Over: true, Winner: WinnerGood, Reason: "the demon is dead"}
	}

	final := s.FinalCount
	if final <= 0 {
		final = DefaultFinalCount
	}
	if game.AliveCount(players) <= final {
		return engine.Verdict{Over: true, Winner: WinnerEvil, Reason: fmt.Sprintf("only %d players remain alive", game.AliveCount(players))}
	}
	return engine.Verdict{}
}
