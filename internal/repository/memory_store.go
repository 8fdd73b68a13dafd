package repository

import (
	"context"
	"sync"

	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
)

// MemoryStore 内存存储（用于测试和演示）
type MemoryStore struct {
	mu    sync.RWMutex
	doc   *game.Document
	saves int
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load 加载文档
func (s *MemoryStore) Load(ctx context.Context) (*game.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return nil, errors.New(errors.ErrNotFound, "游戏文档不存在")
	}
	// 返回深拷贝
	return s.doc.Clone(), nil
}

// Save 保存文档
func (s *MemoryStore) Save(ctx context.Context, doc *game.Document) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCanceled)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc.Clone()
	s.saves++
	return nil
}

// Saves 已保存次数
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close 关闭存储
func (s *MemoryStore) Close() error {
	return nil
}
