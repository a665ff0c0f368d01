package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type QueryLog struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PluginId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	CallerId     *uuid.UUID     `gorm:"type:uuid;index"`
	Query        string         `gorm:"type:text;not null"`
	Answer       string         `gorm:"type:text"`
	Citations    datatypes.JSON `gorm:"type:jsonb;default:'[]'"`
	DecisionPath datatypes.JSON `gorm:"type:jsonb;default:'[]'"`
	Confidence   string         `gorm:"type:varchar(10)"`
	CitationGap  string         `gorm:"type:text"`
	LatencyMs    int64          `gorm:"not null;default:0"`
	Status       string         `gorm:"type:varchar(10);not null;index"`
	ErrorKind    string         `gorm:"type:varchar(40)"`
	ErrorMessage string         `gorm:"type:text"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index"`
}

func (QueryLog) TableName() string {
	return "query_logs"
}

type ReviewLog struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PluginId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	CallerId     *uuid.UUID     `gorm:"type:uuid;index"`
	Title        string         `gorm:"type:varchar(255)"`
	DocumentSize int            `gorm:"not null;default:0"`
	Annotations  datatypes.JSON `gorm:"type:jsonb;default:'[]'"`
	Summary      datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
	Compliance   string         `gorm:"type:varchar(30);index"`
	LatencyMs    int64          `gorm:"not null;default:0"`
	Status       string         `gorm:"type:varchar(10);not null;index"`
	ErrorKind    string         `gorm:"type:varchar(40)"`
	ErrorMessage string         `gorm:"type:text"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index"`
}

func (ReviewLog) TableName() string {
	return "review_logs"
}
