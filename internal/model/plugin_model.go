package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plugin rows are owned by the plugin marketplace; the engine only reads them.
type Plugin struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Slug         string         `gorm:"type:varchar(120);not null;uniqueIndex"`
	Name         string         `gorm:"type:varchar(255);not null"`
	Domain       string         `gorm:"type:varchar(120);not null"`
	SystemPrompt string         `gorm:"type:text"`
	CitationMode string         `gorm:"type:varchar(20);not null;default:'optional'"`
	IsActive     bool           `gorm:"not null;default:true"`
	CreatorId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (Plugin) TableName() string {
	return "plugins"
}
