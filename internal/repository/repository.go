package repository

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"go.uber.org/zap"
)

// PhaseUpdate 对阶段记录的部分更新，nil 字段保持不变
type PhaseUpdate struct {
	Sent      *string
	Type      *game.PhaseType
	Completed *bool
	Snapshot  *game.PlayerSnapshot
	Current   bool // 同时把文档的 phase 指向该阶段
}

func (u PhaseUpdate) apply(rec *game.PhaseRecord) {
	if u.Sent != nil {
		s := *u.Sent
		rec.Sent = &s
	}
	if u.Type != nil {
		rec.PhaseType = *u.Type
	}
	if u.Completed != nil {
		rec.Completed = *u.Completed
	}
	if u.Snapshot != nil {
		snap := *u.Snapshot
		snap.Players = game.ClonePlayers(u.Snapshot.Players)
		rec.PlayerSnapshot = &snap
	}
}

// Option 仓库选项
type Option func(*StateRepository)

// WithClock 指定时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(r *StateRepository) {
		r.now = now
	}
}

// StateRepository 游戏文档的唯一持有者
//
// 所有修改都在文档副本上进行，存储确认写入后才替换内存中的文档，
// 写入失败时内存状态保持不变。
type StateRepository struct {
	mu     sync.RWMutex
	store  DocumentStore
	doc    *game.Document
	now    func() time.Time
	logger *zap.Logger
}

// Open 从存储加载文档，不存在时创建空文档并立即持久化
func Open(ctx context.Context, store DocumentStore, log *zap.Logger, opts ...Option) (*StateRepository, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &StateRepository{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log,
	}
	for _, opt := range opts {
		opt(r)
	}

	doc, err := store.Load(ctx)
	switch {
	case err == nil:
		r.doc = doc
		r.logger.Info("加载游戏文档",
			zap.String("phase", doc.Phase),
			zap.Int("players", len(doc.Players)),
			zap.Int("phases", len(doc.PhaseUpdates)),
		)
		return r, nil
	case errors.Is(err, errors.ErrNotFound):
		r.doc = game.NewDocument(r.now())
		if err := r.store.Save(ctx, r.doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrPersistWrite, "初始化游戏文档失败")
		}
		r.logger.Info("创建新的游戏文档")
		return r, nil
	default:
		return nil, errors.Wrap(err, errors.ErrPersistRead, "加载游戏文档失败")
	}
}

// Close 关闭底层存储
func (r *StateRepository) Close() error {
	return r.store.Close()
}

// mutate 在副本上执行修改，持久化成功后替换内存文档
func (r *StateRepository) mutate(ctx context.Context, op string, fn func(doc *game.Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Metadata.LastUpdated = r.now()

	if err := r.store.Save(ctx, next); err != nil {
		r.logger.Error("持久化游戏文档失败", zap.String("op", op), zap.Error(err))
		return errors.Wrapf(err, errors.ErrPersistWrite, "%s: 持久化失败", op)
	}

	r.doc = next
	return nil
}

// Reset 清空文档
func (r *StateRepository) Reset(ctx context.Context) error {
	return r.mutate(ctx, "reset", func(doc *game.Document) error {
		*doc = *game.NewDocument(r.now())
		return nil
	})
}

// SetPlayers 替换玩家列表
func (r *StateRepository) SetPlayers(ctx context.Context, players []game.Player) error {
	seen := make(map[int]bool, len(players))
	for _, p := range players {
		if p.Number < 1 || seen[p.Number] {
			return errors.Newf(errors.ErrInvalidParam, "玩家编号无效或重复: %d", p.Number)
		}
		seen[p.Number] = true
	}
	return r.mutate(ctx, "set_players", func(doc *game.Document) error {
		doc.Players = game.ClonePlayers(players)
		return nil
	})
}

// Players 当前玩家列表（副本）
func (r *StateRepository) Players() []game.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return game.ClonePlayers(r.doc.Players)
}

// RecordResponse 记录玩家回复，同一玩家重复回复时覆盖
func (r *StateRepository) RecordResponse(ctx context.Context, phase string, player int, from, text string) error {
	if _, err := game.ParsePhase(phase); err != nil {
		return err
	}
	return r.mutate(ctx, "record_response", func(doc *game.Document) error {
		rec := doc.EnsureRecord(phase)
		rec.Responses.Set(player, game.Response{From: from, Text: text})
		return nil
	})
}

// HasResponse 玩家是否已在该阶段回复
func (r *StateRepository) HasResponse(phase string, player int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.doc.Record(phase)
	if !ok {
		return false
	}
	_, ok = rec.Responses.Get(player)
	return ok
}

// Responses 阶段的全部回复（按到达顺序）
func (r *StateRepository) Responses(phase string) game.Responses {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.doc.Record(phase)
	if !ok {
		return game.Responses{}
	}
	return rec.Clone().Responses
}

// RecordAction 追加一个未应用的行动
func (r *StateRepository) RecordAction(ctx context.Context, phase string, kind game.ActionKind, details map[string]int) error {
	if _, err := game.ParsePhase(phase); err != nil {
		return err
	}
	if kind == "" {
		return errors.New(errors.ErrInvalidAction, "行动类型为空")
	}
	return r.mutate(ctx, "record_action", func(doc *game.Document) error {
		rec := doc.EnsureRecord(phase)
		rec.Actions = append(rec.Actions, game.NewAction(kind, details))
		return nil
	})
}

// Actions 阶段的全部行动（副本）
func (r *StateRepository) Actions(phase string) []game.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.doc.Record(phase)
	if !ok {
		return []game.Action{}
	}
	return rec.Clone().Actions
}

// SetAnnouncements 覆盖阶段公告
func (r *StateRepository) SetAnnouncements(ctx context.Context, phase string, text string) error {
	if _, err := game.ParsePhase(phase); err != nil {
		return err
	}
	return r.mutate(ctx, "set_announcements", func(doc *game.Document) error {
		doc.EnsureRecord(phase).Announcements = text
		return nil
	})
}

// Announcements 阶段公告
func (r *StateRepository) Announcements(phase string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.doc.Record(phase); ok {
		return rec.Announcements
	}
	return ""
}

// Snapshot 计算玩家快照，不修改文档
func (r *StateRepository) Snapshot(players []game.Player) game.PlayerSnapshot {
	return game.NewSnapshot(players)
}

// UpdatePhase 合并部分字段到阶段记录，记录不存在时创建
func (r *StateRepository) UpdatePhase(ctx context.Context, phase string, update PhaseUpdate) error {
	if _, err := game.ParsePhase(phase); err != nil {
		return err
	}
	return r.mutate(ctx, "update_phase", func(doc *game.Document) error {
		update.apply(doc.EnsureRecord(phase))
		if update.Current {
			doc.Phase = phase
		}
		return nil
	})
}

// Update 原子读改写：fn 在副本上修改，返回错误时放弃修改
func (r *StateRepository) Update(ctx context.Context, op string, fn func(doc *game.Document) error) error {
	return r.mutate(ctx, op, fn)
}

// Document 当前文档（深拷贝）
func (r *StateRepository) Document() *game.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Clone()
}

// CurrentPhase 当前阶段名称，尚未开始时为空
func (r *StateRepository) CurrentPhase() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Phase
}
