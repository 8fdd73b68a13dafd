package repository

import (
	"context"

	"github.com/wfunc/townsquare/internal/game"
)

// DocumentStore 游戏文档的持久化后端
//
// Save 必须是原子的：要么完整写入新文档，要么保持旧文档不变。
// Load 在文档不存在时返回 errors.ErrNotFound。
type DocumentStore interface {
	Load(ctx context.Context) (*game.Document, error)
	Save(ctx context.Context, doc *game.Document) error
	Close() error
}
