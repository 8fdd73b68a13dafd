package game

// ActionKind 行动类型标签
//
// 集合是开放的：未知类型也会原样持久化，应用时按无效果处理。
type ActionKind string

const (
	ActionKill         ActionKind = "kill"
	ActionPoison       ActionKind = "poison"
	ActionButlerChoice ActionKind = "butler_choice"
)

// KnownActionKinds 已知行动类型
var KnownActionKinds = []ActionKind{ActionKill, ActionPoison, ActionButlerChoice}

// Known 是否为已知类型
func (k ActionKind) Known() bool {
	for _, known := range KnownActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// 行动参数键
const (
	DetailBy     = "by"
	DetailTarget = "target"
	DetailMaster = "master"
)

// 行动结果状态
const (
	StatusPoisoned      = "poisoned"
	StatusRecorded      = "recorded"
	StatusAlreadyDead   = "already_dead"
	StatusInvalidTarget = "invalid_target"
	StatusUnhandled     = "unhandled_action_type"
)

// ActionResult 行动应用后的结构化结果
type ActionResult struct {
	Target     int    `json:"target,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	Master     int    `json:"master,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Action 阶段内记录的行动
//
// 不变量: 只应用一次；Result 非空当且仅当 Applied 为真。
type Action struct {
	Type    ActionKind     `json:"type"`
	Details map[string]int `json:"details"`
	Applied bool           `json:"applied"`
	Result  *ActionResult  `json:"result,omitempty"`
}

// NewAction 创建未应用的行动
func NewAction(kind ActionKind, details map[string]int) Action {
	d := make(map[string]int, len(details))
	for k, v := range details {
		d[k] = v
	}
	return Action{Type: kind, Details: d}
}

// Detail 读取参数
func (a Action) Detail(key string) (int, bool) {
	v, ok := a.Details[key]
	return v, ok
}

// MarkApplied 标记为已应用并写入结果
func (a *Action) MarkApplied(result ActionResult) {
	a.Applied = true
	a.Result = &result
}

func (a Action) clone() Action {
	out := a
	if a.Details != nil {
		out.Details = make(map[string]int, len(a.Details))
		for k, v := range a.Details {
			out.Details[k] = v
		}
	}
	if a.Result != nil {
		r := *a.Result
		out.Result = &r
	}
	return out
}
