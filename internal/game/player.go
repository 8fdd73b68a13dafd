package game

// RoleClass 角色阵营（封闭集合）
type RoleClass string

const (
	RoleTownsfolk RoleClass = "townsfolk"
	RoleOutsider  RoleClass = "outsider"
	RoleMinion    RoleClass = "minion"
	RoleDemon     RoleClass = "demon"
)

// DefaultRoleName 未分配角色时的默认名称
const DefaultRoleName = "Villager"

// Valid 是否为已知阵营
func (c RoleClass) Valid() bool {
	switch c {
	case RoleTownsfolk, RoleOutsider, RoleMinion, RoleDemon:
		return true
	}
	return false
}

// Player 玩家
//
// Number 在整局游戏中唯一且不变。Alive/Poisoned/HasGhostVote 只由行动应用修改，
// RoleClass/RoleName 由外部角色分配写入。
type Player struct {
	Number       int       `json:"number"`
	Name         string    `json:"name"`
	Contact      string    `json:"email"`
	Alive        bool      `json:"alive"`
	HasGhostVote bool      `json:"hasGhostVote"`
	Drunk        bool      `json:"drunk"`
	Poisoned     bool      `json:"poisoned"`
	RoleClass    RoleClass `json:"roleClass"`
	RoleName     string    `json:"roleName"`
}

// NewPlayer 创建存活的新玩家
func NewPlayer(number int, name, contact string) Player {
	return Player{
		Number:       number,
		Name:         name,
		Contact:      contact,
		Alive:        true,
		HasGhostVote: true,
		RoleClass:    RoleTownsfolk,
		RoleName:     DefaultRoleName,
	}
}

// IsDemon 是否为恶魔
func (p Player) IsDemon() bool {
	return p.RoleClass == RoleDemon
}

// FindPlayer 按编号查找玩家下标，找不到返回-1
func FindPlayer(players []Player, number int) int {
	for i := range players {
		if players[i].Number == number {
			return i
		}
	}
	return -1
}

// ClonePlayers 复制玩家列表
func ClonePlayers(players []Player) []Player {
	out := make([]Player, len(players))
	copy(out, players)
	return out
}

// AliveCount 存活人数
func AliveCount(players []Player) int {
	n := 0
	for _, p := range players {
		if p.Alive {
			n++
		}
	}
	return n
}
