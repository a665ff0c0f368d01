package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CollaborationSession struct {
	Id        uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	CallerId  *uuid.UUID                  `gorm:"type:uuid;index"`
	Experts   datatypes.JSONSlice[string] `gorm:"type:jsonb;not null"`
	Query     string                      `gorm:"type:text;not null"`
	Mode      string                      `gorm:"type:varchar(20);not null"`
	MaxRounds int                         `gorm:"not null"`
	Rounds    datatypes.JSON              `gorm:"type:jsonb;default:'[]'"`
	Consensus datatypes.JSON              `gorm:"type:jsonb"`
	Status    string                      `gorm:"type:varchar(20);not null;index"`
	Error     string                      `gorm:"type:text"`
	CreatedAt time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime"`
}

func (CollaborationSession) TableName() string {
	return "collaboration_sessions"
}
