package phase

import (
	"fmt"
	"strings"

	"github.com/wfunc/townsquare/internal/game"
)

// 需要在首夜做出选择的角色
const (
	RoleButler   = "Butler"
	RolePoisoner = "Poisoner"
	RoleSpy      = "Spy"
)

// 首夜只需确认信息的角色
var firstNightInfoRoles = map[string]bool{
	"Washerwoman":    true,
	"Librarian":      true,
	"Investigator":   true,
	"Chef":           true,
	"Empath":         true,
	"Fortune Teller": true,
}

// roleDescriptions 首夜发送的角色说明
var roleDescriptions = map[string]string{
	// Townsfolk
	"Washerwoman":    "You learn that one of two players is a particular Townsfolk.",
	"Librarian":      "You learn that one of two players is a particular Outsider.",
	"Investigator":   "You learn that one of two players is a particular Minion.",
	"Chef":           "You learn how many pairs of evil players are sitting next to each other.",
	"Empath":         "You learn how many of your living neighbors are evil.",
	"Fortune Teller": "You may choose two players each night. You learn if either is the Demon.",
	"Undertaker":     "Each night (except the first), you learn which role died during the day.",
	"Monk":           "Each night (except the first), you may protect another player from the Demon.",
	"Ravenkeeper":    "If you die at night, you may choose a player and learn their role.",
	"Virgin":         "The first time you are nominated, if the nominator is a Townsfolk, they die.",
	"Slayer":         "Once per game, you may choose a player to die. If they are the Demon, they die.",
	"Soldier":        "You are safe from the Demon.",
	"Mayor":          "If only 3 players live and no execution occurs, your team wins.",

	// Outsiders
	"Butler":  "Each night, choose a player (not yourself): tomorrow, you may only vote if they are voting too.",
	"Drunk":   "You do not know you are the Drunk. You think you are a Townsfolk but have no ability.",
	"Recluse": "You might register as evil & as a Minion or Demon, even if dead.",
	"Saint":   "If you die by execution, your team loses.",

	// Minions
	"Poisoner":      "Each night, choose a player: they are poisoned tonight and tomorrow day.",
	"Spy":           "Each night, you see the Grimoire. You might register as good & as a Townsfolk or Outsider.",
	"Scarlet Woman": "If there are 5 or more players alive and the Demon dies, you become the Demon.",
	"Baron":         "There are extra Outsiders in play. [+2 Outsiders]",

	// Demons
	"Imp": "Each night (except the first), choose a player to kill. If you kill yourself, a Minion becomes the Imp.",
}

// 重新提示内容
const (
	repromptButler   = "Your Butler choice could not be interpreted. Please reply with the NUMBER of another living player to be your master."
	repromptPoisoner = "Your Poisoner target could not be interpreted. Please reply with the NUMBER of a living player to poison."
	repromptDemon    = "Your last response could not be interpreted as a valid reply. Please reply to this same thread with a valid single-line response."
)

// FirstLine 返回第一行非空内容（去除首尾空白）
func FirstLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// PlayerList 玩家列表，每行 "编号: 名字"，死亡玩家追加 "(dead)"
func PlayerList(players []game.Player) string {
	lines := make([]string, len(players))
	for i, p := range players {
		if p.Alive {
			lines[i] = fmt.Sprintf("%d: %s", p.Number, p.Name)
		} else {
			lines[i] = fmt.Sprintf("%d: %s (dead)", p.Number, p.Name)
		}
	}
	return strings.Join(lines, "\n")
}

// Subject 提示标题
func Subject(phase string, player int) string {
	if phase == game.Registration.String() {
		return fmt.Sprintf("Townsquare Registration - Player %d", player)
	}
	return fmt.Sprintf("Townsquare %s - Player %d", phase, player)
}

// SentSummary 记录在阶段 sent 字段中的通用提示
func SentSummary(typ game.PhaseType, phase string, players []game.Player) string {
	var title, instructions string
	switch typ {
	case game.PhaseTypeRegistration:
		title, instructions = "Registration", "Reply with one line when ready."
	case game.PhaseTypeFirstNight:
		title, instructions = "First Night", "Respond based on your role."
	case game.PhaseTypeNight:
		title, instructions = "Night Phase", "Respond with one line."
	default:
		title, instructions = "Day Phase", "Respond with one line."
	}
	return fmt.Sprintf("BOTC %s: %s\n\nPlayers:\n%s\n\nReply instructions: %s", title, phase, PlayerList(players), instructions)
}

// PromptBody 构造发给某个玩家的提示正文
func PromptBody(typ game.PhaseType, phase string, player game.Player, players []game.Player, announcements string) string {
	var parts []string
	if !player.Alive {
		parts = append(parts, "YOU ARE DEAD")
	}

	if typ == game.PhaseTypeRegistration {
		parts = append(parts,
			"",
			"Registration confirmation",
			"",
			"Players:",
			PlayerList(players),
			"",
			"Please reply with one line when you are ready to begin the game.",
		)
		return strings.TrimSpace(strings.Join(parts, "\n")) + "\n"
	}

	if announcements != "" {
		parts = append(parts, announcements)
	}

	if typ == game.PhaseTypeFirstNight {
		rule := strings.Repeat("=", 50)
		parts = append(parts,
			"",
			rule,
			"FIRST NIGHT - ROLE INFORMATION",
			rule,
			"",
			"Your Role: "+player.RoleName,
			"Role Type: "+strings.ToUpper(string(player.RoleClass)),
			"",
			"ROLE DESCRIPTION:\n"+roleDescription(player.RoleName),
		)
	}

	parts = append(parts,
		"",
		"Current phase: "+phase,
		"",
		"Players:",
		PlayerList(players),
		"",
		actionPrompt(typ, player),
	)
	return strings.TrimSpace(strings.Join(parts, "\n")) + "\n"
}

func roleDescription(role string) string {
	if d, ok := roleDescriptions[role]; ok {
		return d
	}
	return "No description available."
}

// actionPrompt 角色相关的行动提示
func actionPrompt(typ game.PhaseType, player game.Player) string {
	switch typ {
	case game.PhaseTypeFirstNight:
		return firstNightPrompt(player)
	case game.PhaseTypeNight:
		if player.Alive && player.IsDemon() {
			return "IMP ACTION: Reply with the NUMBER of the player you choose to kill (one-line reply)."
		}
	}
	return "Please reply with one line to continue to the next phase."
}

func firstNightPrompt(player game.Player) string {
	role := player.RoleName
	switch {
	case !player.Alive:
		return "You are dead. Reply with 'acknowledged' to continue."
	case firstNightInfoRoles[role]:
		return fmt.Sprintf("FIRST NIGHT ACTION (%s):\nThe Storyteller will provide your information separately. "+
			"Please reply 'ready' when you have received and understood your role information.", role)
	case role == RoleButler:
		return "FIRST NIGHT ACTION (Butler):\nReply with the NUMBER of the player you choose as your master for tomorrow. " +
			"You may only vote tomorrow if they are voting too."
	case role == RolePoisoner:
		return "FIRST NIGHT ACTION (Poisoner):\nReply with the NUMBER of the player you wish to poison tonight and tomorrow day. " +
			"Their ability will not function."
	case role == RoleSpy:
		return "FIRST NIGHT (Spy):\nYou can see all player roles. This information will be provided by the Storyteller. " +
			"Reply 'ready' when acknowledged."
	case player.IsDemon():
		return "FIRST NIGHT (Demon):\nYou do not kill on the first night. You will be informed of your Minions. " +
			"Reply 'ready' when acknowledged."
	default:
		return "FIRST NIGHT:\nYou have received your role information. Reply 'ready' to continue to the first day."
	}
}
