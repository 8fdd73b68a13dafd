package game

import (
	"time"
)

// DocumentVersion 持久化文档格式版本
const DocumentVersion = "1.0"

// PlayerSnapshot 某一时刻的玩家状态快照
type PlayerSnapshot struct {
	AliveCount int      `json:"alive_count"`
	DeadCount  int      `json:"dead_count"`
	Players    []Player `json:"players"`
}

// NewSnapshot 根据当前玩家列表计算快照
func NewSnapshot(players []Player) PlayerSnapshot {
	alive := AliveCount(players)
	return PlayerSnapshot{
		AliveCount: alive,
		DeadCount:  len(players) - alive,
		Players:    ClonePlayers(players),
	}
}

// PhaseRecord 单个阶段的记录
type PhaseRecord struct {
	Name           string          `json:"name"`
	Sent           *string         `json:"sent"`
	Responses      Responses       `json:"responses"`
	Actions        []Action        `json:"actions"`
	Announcements  string          `json:"announcements"`
	PhaseType      PhaseType       `json:"phase_type,omitempty"`
	Completed      bool            `json:"completed"`
	PlayerSnapshot *PlayerSnapshot `json:"player_snapshot,omitempty"`
}

// NewPhaseRecord 创建空的阶段记录
func NewPhaseRecord(name string) *PhaseRecord {
	return &PhaseRecord{
		Name:      name,
		Responses: Responses{},
		Actions:   []Action{},
	}
}

// UnappliedCount 未应用的行动数量
func (r *PhaseRecord) UnappliedCount() int {
	n := 0
	for _, a := range r.Actions {
		if !a.Applied {
			n++
		}
	}
	return n
}

// Clone 深拷贝
func (r *PhaseRecord) Clone() *PhaseRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Sent != nil {
		s := *r.Sent
		out.Sent = &s
	}
	if r.Responses != nil {
		out.Responses = make(Responses, len(r.Responses))
		copy(out.Responses, r.Responses)
	}
	if r.Actions != nil {
		out.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			out.Actions[i] = a.clone()
		}
	}
	if r.PlayerSnapshot != nil {
		snap := *r.PlayerSnapshot
		if snap.Players != nil {
			snap.Players = ClonePlayers(snap.Players)
		}
		out.PlayerSnapshot = &snap
	}
	return &out
}

// Metadata 文档元数据
type Metadata struct {
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Version     string    `json:"version"`
}

// Document 一局游戏的完整持久化状态
//
// PhaseUpdates 的迭代顺序没有意义，时间顺序一律通过 SortedPhases 计算。
type Document struct {
	Phase        string                  `json:"phase"`
	Players      []Player                `json:"players"`
	PhaseUpdates map[string]*PhaseRecord `json:"phase_updates"`
	Metadata     Metadata                `json:"metadata"`
}

// NewDocument 创建空文档
func NewDocument(now time.Time) *Document {
	return &Document{
		Players:      []Player{},
		PhaseUpdates: map[string]*PhaseRecord{},
		Metadata: Metadata{
			CreatedAt:   now,
			LastUpdated: now,
			Version:     DocumentVersion,
		},
	}
}

// Normalize 补齐反序列化后可能缺失的容器字段
func (d *Document) Normalize() {
	if d.Players == nil {
		d.Players = []Player{}
	}
	if d.PhaseUpdates == nil {
		d.PhaseUpdates = map[string]*PhaseRecord{}
	}
	for name, rec := range d.PhaseUpdates {
		if rec == nil {
			d.PhaseUpdates[name] = NewPhaseRecord(name)
			continue
		}
		// 映射键为准，旧文档没有 name 字段
		rec.Name = name
		if rec.Responses == nil {
			rec.Responses = Responses{}
		}
		if rec.Actions == nil {
			rec.Actions = []Action{}
		}
	}
	if d.Metadata.Version == "" {
		d.Metadata.Version = DocumentVersion
	}
}

// Clone 深拷贝文档
func (d *Document) Clone() *Document {
	out := &Document{
		Phase:        d.Phase,
		Players:      ClonePlayers(d.Players),
		PhaseUpdates: make(map[string]*PhaseRecord, len(d.PhaseUpdates)),
		Metadata:     d.Metadata,
	}
	if d.Players == nil {
		out.Players = nil
	}
	for name, rec := range d.PhaseUpdates {
		out.PhaseUpdates[name] = rec.Clone()
	}
	return out
}

// Record 获取阶段记录
func (d *Document) Record(phase string) (*PhaseRecord, bool) {
	rec, ok := d.PhaseUpdates[phase]
	return rec, ok
}

// EnsureRecord 获取阶段记录，不存在时创建
func (d *Document) EnsureRecord(phase string) *PhaseRecord {
	if rec, ok := d.PhaseUpdates[phase]; ok && rec != nil {
		return rec
	}
	rec := NewPhaseRecord(phase)
	d.PhaseUpdates[phase] = rec
	return rec
}

// SortedPhases 已记录阶段的规范顺序
func (d *Document) SortedPhases() ([]PhaseID, error) {
	names := make([]string, 0, len(d.PhaseUpdates))
	for name := range d.PhaseUpdates {
		names = append(names, name)
	}
	return SortPhases(names)
}

// PreviousPhase 已记录阶段中紧挨在 current 之前的一个
func (d *Document) PreviousPhase(current PhaseID) (PhaseID, bool, error) {
	ids, err := d.SortedPhases()
	if err != nil {
		return PhaseID{}, false, err
	}
	var (
		prev  PhaseID
		found bool
	)
	for _, id := range ids {
		if !id.Less(current) {
			break
		}
		prev, found = id, true
	}
	return prev, found, nil
}

// ButlerMaster 管家最近一次选择的主人
func (d *Document) ButlerMaster(by int) (int, bool) {
	ids, err := d.SortedPhases()
	if err != nil {
		return 0, false
	}
	for i := len(ids) - 1; i >= 0; i-- {
		rec := d.PhaseUpdates[ids[i].String()]
		for j := len(rec.Actions) - 1; j >= 0; j-- {
			a := rec.Actions[j]
			if a.Type != ActionButlerChoice {
				continue
			}
			if who, ok := a.Detail(DetailBy); ok && who == by {
				master, ok := a.Detail(DetailMaster)
				return master, ok
			}
		}
	}
	return 0, false
}
