package database

import (
	"time"

	"github.com/gofrs/flock"
	"github.com/wfunc/townsquare/internal/errors"
	"go.uber.org/zap"
)

// FileLock 基于操作系统建议锁的锁文件，保证同一存储只有一个写入进程
//
// 锁随持有进程退出由内核释放；锁文件本身保留在磁盘上。
type FileLock struct {
	fl  *flock.Flock
	log *zap.Logger
}

// AcquireFileLock 获取锁，被占用时按 retryDelay 重试 attempts 次
func AcquireFileLock(path string, attempts int, retryDelay time.Duration, log *zap.Logger) (*FileLock, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}

	fl := flock.New(path)
	for i := 0; i < attempts; i++ {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrStoreLocked, "无法打开锁文件 %s", path)
		}
		if locked {
			log.Debug("获取锁文件成功", zap.String("lock", path))
			return &FileLock{fl: fl, log: log}, nil
		}

		if i < attempts-1 {
			log.Debug("等待锁文件...", zap.String("lock", path), zap.Int("attempt", i+1))
			time.Sleep(retryDelay)
		}
	}

	return nil, errors.Newf(errors.ErrStoreLocked, "无法获取锁文件 %s，可能有其他进程正在使用该存储", path)
}

// Path 锁文件路径
func (l *FileLock) Path() string {
	return l.fl.Path()
}

// Held 当前是否仍持有锁
func (l *FileLock) Held() bool {
	return l != nil && l.fl != nil && l.fl.Locked()
}

// Release 释放锁，可重复调用
func (l *FileLock) Release() {
	if !l.Held() {
		return
	}
	if err := l.fl.Unlock(); err != nil {
		l.log.Warn("释放锁文件失败", zap.String("lock", l.fl.Path()), zap.Error(err))
		return
	}
	l.log.Debug("释放锁文件", zap.String("lock", l.fl.Path()))
}
