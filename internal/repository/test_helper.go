package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建迁移好的内存 sqlite 数据库
func SetupTestDB(t *testing.T) *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统，在所有环境中都能工作）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库按连接隔离，固定为单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SamplePlayers 测试用玩家：5号为恶魔，4号为投毒者，2号为管家
func SamplePlayers() []game.Player {
	players := []game.Player{
		game.NewPlayer(1, "Alice", "alice@example.com"),
		game.NewPlayer(2, "Bob", "bob@example.com"),
		game.NewPlayer(3, "Carol", "carol@example.com"),
		game.NewPlayer(4, "Dave", "dave@example.com"),
		game.NewPlayer(5, "Eve", "eve@example.com"),
	}
	players[1].RoleClass, players[1].RoleName = game.RoleOutsider, "Butler"
	players[3].RoleClass, players[3].RoleName = game.RoleMinion, "Poisoner"
	players[4].RoleClass, players[4].RoleName = game.RoleDemon, "Imp"
	return players
}

// StepClock 每次调用前进一秒的固定时钟
func StepClock() func() time.Time {
	t := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// NewTestRepository 基于内存存储创建仓库并写入测试玩家
func NewTestRepository(t *testing.T) (*StateRepository, *MemoryStore) {
	store := NewMemoryStore()
	repo, err := Open(context.Background(), store, nil, WithClock(StepClock()))
	require.NoError(t, err)
	require.NoError(t, repo.SetPlayers(context.Background(), SamplePlayers()))
	return repo, store
}
