package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DatabaseStore 数据库存储，每局游戏在 game_documents 表中占一行
type DatabaseStore struct {
	db     *gorm.DB
	gameID string
	logger *zap.Logger
}

// NewDatabaseStore 创建数据库存储
func NewDatabaseStore(db *gorm.DB, gameID string, log *zap.Logger) *DatabaseStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &DatabaseStore{db: db, gameID: gameID, logger: log}
}

// GameID 游戏ID
func (s *DatabaseStore) GameID() string {
	return s.gameID
}

// Load 从数据库加载文档
func (s *DatabaseStore) Load(ctx context.Context) (*game.Document, error) {
	var row models.GameDocument
	result := s.db.WithContext(ctx).
		Where("game_id = ?", s.gameID).
		First(&row)

	if result.Error != nil {
		if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Newf(errors.ErrNotFound, "游戏文档不存在: %s", s.gameID)
		}
		return nil, errors.Wrap(result.Error, errors.ErrPersistRead, "查询游戏文档失败")
	}

	var doc game.Document
	if err := json.Unmarshal([]byte(row.Document), &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "反序列化游戏文档失败")
	}
	doc.Normalize()
	return &doc, nil
}

// Save 在事务中写入文档（存在则更新，不存在则插入）
func (s *DatabaseStore) Save(ctx context.Context, doc *game.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrPersistWrite, "序列化游戏文档失败")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.GameDocument
		result := tx.Where("game_id = ?", s.gameID).First(&row)

		switch {
		case stderrors.Is(result.Error, gorm.ErrRecordNotFound):
			row = models.GameDocument{
				GameID:       s.gameID,
				CurrentPhase: doc.Phase,
				Version:      doc.Metadata.Version,
				Document:     string(data),
				Revision:     1,
			}
			return tx.Create(&row).Error
		case result.Error != nil:
			return result.Error
		}

		return tx.Model(&row).Updates(map[string]interface{}{
			"current_phase": doc.Phase,
			"version":       doc.Metadata.Version,
			"document":      string(data),
			"revision":      row.Revision + 1,
			"updated_at":    time.Now(),
		}).Error
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrPersistWrite, "保存游戏文档失败")
	}

	s.logger.Debug("游戏文档已写入数据库",
		zap.String("game_id", s.gameID),
		zap.String("phase", doc.Phase),
	)
	return nil
}

// Revision 当前文档版本号（每次保存加一）
func (s *DatabaseStore) Revision(ctx context.Context) (int64, error) {
	var row models.GameDocument
	if err := s.db.WithContext(ctx).Where("game_id = ?", s.gameID).First(&row).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, errors.ErrPersistRead)
	}
	return row.Revision, nil
}

// Close 数据库连接由调用方管理
func (s *DatabaseStore) Close() error {
	return nil
}
