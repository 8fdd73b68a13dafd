package database

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/wfunc/townsquare/internal/config"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
//
// sqlite 文件库在迁移期间持有 <dsn>.migration.lock，避免多个进程同时迁移。
func AutoMigrate(db *gorm.DB, cfg *config.DatabaseConfig, log *zap.Logger) error {
	if db == nil {
		return errors.New(errors.ErrDatabaseConnect, "数据库未初始化")
	}

	if path := sqliteFilePath(cfg); path != "" {
		lock, err := AcquireFileLock(path+".migration.lock", 30, time.Second, log)
		if err != nil {
			log.Error("无法获取迁移锁", zap.Error(err))
			return err
		}
		defer lock.Release()
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
	}

	log.Info("数据库迁移完成", zap.Int("models", len(models.AllModels())))
	return nil
}

// sqliteFilePath 从 DSN 获取 sqlite 文件路径，内存库或其他驱动返回空
func sqliteFilePath(cfg *config.DatabaseConfig) string {
	if cfg == nil || (cfg.Driver != "sqlite" && cfg.Driver != "sqlite3") {
		return ""
	}
	dsn := cfg.DSN
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	dsn = strings.TrimPrefix(dsn, "file:")
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
		return ""
	}
	return filepath.Clean(dsn)
}
