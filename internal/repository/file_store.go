package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wfunc/townsquare/internal/database"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"go.uber.org/zap"
)

// FileStoreOptions 文件存储选项
type FileStoreOptions struct {
	Lock bool // 是否持有 <path>.lock 独占锁
}

// FileStore JSON文件存储
//
// 写入流程: 写临时文件并 fsync，把旧文件内容保存为 .bak，用 rename 原子替换目标文件，最后 fsync 所在目录。
// 读取方任何时刻看到的都是完整的旧文档或完整的新文档。
type FileStore struct {
	mu     sync.Mutex
	path   string
	lock   *database.FileLock
	logger *zap.Logger
}

// NewFileStore 创建文件存储
func NewFileStore(path string, opts FileStoreOptions, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrPersistWrite, "创建数据目录失败: %s", filepath.Dir(path))
	}

	s := &FileStore{path: path, logger: log}
	if opts.Lock {
		lock, err := database.AcquireFileLock(path+".lock", 3, 200*time.Millisecond, log)
		if err != nil {
			return nil, err
		}
		s.lock = lock
	}
	return s, nil
}

// Path 文档路径
func (s *FileStore) Path() string {
	return s.path
}

// Load 读取文档；目标文件缺失而备份存在时从备份恢复
func (s *FileStore) Load(ctx context.Context) (*game.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		backup, berr := os.ReadFile(s.backupPath())
		if berr != nil {
			return nil, errors.Newf(errors.ErrNotFound, "游戏文档不存在: %s", s.path)
		}
		s.logger.Warn("游戏文档缺失，从备份恢复", zap.String("path", s.path))
		data = backup
	} else if err != nil {
		return nil, errors.Wrapf(err, errors.ErrPersistRead, "读取 %s 失败", s.path)
	}

	var doc game.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDataIntegrity, "解析 %s 失败", s.path)
	}
	doc.Normalize()
	return &doc, nil
}

// Save 原子写入文档
func (s *FileStore) Save(ctx context.Context, doc *game.Document) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCanceled)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrPersistWrite, "序列化游戏文档失败")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. 写入临时文件
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, errors.ErrPersistWrite, "创建临时文件失败")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrapf(err, errors.ErrPersistWrite, "写入 %s 失败", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrapf(err, errors.ErrPersistWrite, "同步 %s 失败", tmpName)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrapf(err, errors.ErrPersistWrite, "关闭 %s 失败", tmpName)
	}

	// 2. 保留上一版本作为备份
	if prev, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.backupPath(), prev, 0644); err != nil {
			s.logger.Warn("写入备份失败", zap.String("path", s.backupPath()), zap.Error(err))
		}
	}

	// 3. 原子替换
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return errors.Wrapf(err, errors.ErrPersistWrite, "替换 %s 失败", s.path)
	}

	// 4. 同步目录项，使 rename 在掉电后仍然有效
	if err := syncDir(filepath.Dir(s.path)); err != nil {
		return err
	}

	s.logger.Debug("游戏文档已保存",
		zap.String("path", s.path),
		zap.String("phase", doc.Phase),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Close 释放锁文件
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock.Release()
	s.lock = nil
	return nil
}

// syncDir 对目录执行 fsync
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrPersistWrite, "打开目录 %s 失败", dir)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrapf(err, errors.ErrPersistWrite, "同步目录 %s 失败", dir)
	}
	return nil
}

func (s *FileStore) backupPath() string {
	return s.path + ".bak"
}
