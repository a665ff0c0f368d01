package entity

import (
	"time"

	"github.com/google/uuid"
)

type CitationMode string

const (
	CitationModeMandatory CitationMode = "mandatory"
	CitationModeOptional  CitationMode = "optional"
	CitationModeNone      CitationMode = "none"
)

// Plugin is a domain-scoped reasoning agent owned by a creator.
type Plugin struct {
	Id           uuid.UUID
	Slug         string
	Name         string
	Domain       string
	SystemPrompt string
	CitationMode CitationMode
	IsActive     bool
	CreatorId    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

type Document struct {
	Id         uuid.UUID
	PluginId   uuid.UUID
	Name       string
	FileType   string
	Content    string
	ChunkCount int
	IngestedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}
