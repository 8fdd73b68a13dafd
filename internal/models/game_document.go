package models

import (
	"time"
)

// GameDocument 游戏文档表（每局一行，整份文档以JSON保存）
type GameDocument struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GameID       string    `gorm:"uniqueIndex;size:64;not null" json:"game_id"`
	CurrentPhase string    `gorm:"size:32" json:"current_phase"`
	Version      string    `gorm:"size:16" json:"version"`
	Document     string    `gorm:"type:text;not null" json:"document"` // JSON格式的游戏文档
	Revision     int64     `gorm:"not null;default:0" json:"revision"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (GameDocument) TableName() string {
	return "game_documents"
}

// AllModels 需要迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&GameDocument{},
	}
}
