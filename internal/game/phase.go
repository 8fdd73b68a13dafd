package game

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wfunc/townsquare/internal/errors"
)

// Stage 阶段类别
type Stage int

const (
	StageRegistration Stage = iota
	StageNight
	StageDay
)

// PhaseType 阶段类型（持久化在 phase_type 字段）
type PhaseType string

const (
	PhaseTypeRegistration PhaseType = "registration"
	PhaseTypeFirstNight   PhaseType = "first_night"
	PhaseTypeNight        PhaseType = "night"
	PhaseTypeDay          PhaseType = "day"
)

const (
	registrationName = "REGISTRATION"
	nightPrefix      = "NIGHT"
	dayPrefix        = "DAY"
)

// Registration 登记阶段，始终排在最前
var Registration = PhaseID{Stage: StageRegistration}

// PhaseID 阶段标识，(Stage, Ordinal) 构成全序键
type PhaseID struct {
	Stage   Stage
	Ordinal int
}

// Night 构造 NIGHT<k>
func Night(k int) PhaseID { return PhaseID{Stage: StageNight, Ordinal: k} }

// Day 构造 DAY<k>
func Day(k int) PhaseID { return PhaseID{Stage: StageDay, Ordinal: k} }

// ParsePhase 解析阶段名称
//
// 合法名称: REGISTRATION, NIGHT<非负整数>, DAY<正整数>。
// 数字部分不允许符号、空白或前导零，保证 String(ParsePhase(n)) == n。
func ParsePhase(name string) (PhaseID, error) {
	if name == registrationName {
		return Registration, nil
	}

	var (
		stage  Stage
		digits string
	)
	switch {
	case strings.HasPrefix(name, nightPrefix):
		stage, digits = StageNight, name[len(nightPrefix):]
	case strings.HasPrefix(name, dayPrefix):
		stage, digits = StageDay, name[len(dayPrefix):]
	default:
		return PhaseID{}, errors.Newf(errors.ErrPhaseName, "未知的阶段类别: %q", name)
	}

	ordinal, err := parseOrdinal(digits)
	if err != nil {
		return PhaseID{}, errors.Newf(errors.ErrPhaseName, "阶段序号无效: %q", name)
	}
	if stage == StageDay && ordinal < 1 {
		return PhaseID{}, errors.Newf(errors.ErrPhaseName, "白天序号必须从1开始: %q", name)
	}

	return PhaseID{Stage: stage, Ordinal: ordinal}, nil
}

// parseOrdinal 只接受纯十进制数字，拒绝前导零
func parseOrdinal(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// MustParsePhase 解析失败时panic，仅用于常量与测试
func MustParsePhase(name string) PhaseID {
	id, err := ParsePhase(name)
	if err != nil {
		panic(err)
	}
	return id
}

// String 格式化为阶段名称
func (p PhaseID) String() string {
	switch p.Stage {
	case StageNight:
		return nightPrefix + strconv.Itoa(p.Ordinal)
	case StageDay:
		return dayPrefix + strconv.Itoa(p.Ordinal)
	default:
		return registrationName
	}
}

// key 规范顺序键: REGISTRATION=0, NIGHTk=2k+1, DAYk=2k
func (p PhaseID) key() int {
	switch p.Stage {
	case StageNight:
		return 2*p.Ordinal + 1
	case StageDay:
		return 2 * p.Ordinal
	default:
		return 0
	}
}

// Less 按规范顺序比较: REGISTRATION < NIGHT0 < DAY1 < NIGHT1 < DAY2 ...
func (p PhaseID) Less(other PhaseID) bool {
	return p.key() < other.key()
}

// Index 阶段在编排循环中的序号（从1开始，REGISTRATION=1）
func (p PhaseID) Index() int {
	return p.key() + 1
}

// Type 阶段类型
func (p PhaseID) Type() PhaseType {
	switch {
	case p.Stage == StageRegistration:
		return PhaseTypeRegistration
	case p.Stage == StageNight && p.Ordinal == 0:
		return PhaseTypeFirstNight
	case p.Stage == StageNight:
		return PhaseTypeNight
	default:
		return PhaseTypeDay
	}
}

// Next 规范顺序中的下一个阶段
func (p PhaseID) Next() PhaseID {
	return PhaseAt(p.Index() + 1)
}

// PhaseAt 由循环序号推导阶段: 1=REGISTRATION, 2=NIGHT0, 3=DAY1, 4=NIGHT1 ...
func PhaseAt(idx int) PhaseID {
	if idx <= 1 {
		return Registration
	}
	n := idx - 1
	if n%2 == 1 {
		return Night(n / 2)
	}
	return Day(n / 2)
}

// SortPhases 按规范顺序排序阶段名称，遇到非法名称返回错误
func SortPhases(names []string) ([]PhaseID, error) {
	ids := make([]PhaseID, 0, len(names))
	for _, name := range names {
		id, err := ParsePhase(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids, nil
}
