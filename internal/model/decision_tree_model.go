package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DecisionTree struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PluginId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	RootNodeId string         `gorm:"type:varchar(120);not null"`
	Nodes      datatypes.JSON `gorm:"type:jsonb;not null"`
	IsActive   bool           `gorm:"not null;default:false;index"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (DecisionTree) TableName() string {
	return "decision_trees"
}
