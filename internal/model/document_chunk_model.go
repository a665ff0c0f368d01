package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentChunk is hard-deleted: re-ingestion replaces a document's chunks.
type DocumentChunk struct {
	Id           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_chunk_document_index,priority:1"`
	PluginId     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Content      string          `gorm:"type:text;not null"`
	ChunkIndex   int             `gorm:"not null;uniqueIndex:idx_chunk_document_index,priority:2"`
	PageNumber   *int            `gorm:"default:null"`
	SectionTitle *string         `gorm:"type:text"`
	Embedding    pgvector.Vector `gorm:"type:vector(1536);not null"`
	Metadata     datatypes.JSON  `gorm:"type:jsonb;default:'{}'"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
