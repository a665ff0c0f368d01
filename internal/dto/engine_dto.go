package dto

import (
	"ai-plugin-engine/internal/entity"

	"github.com/google/uuid"
)

type RetrievalOptions struct {
	TopK      int     `json:"topK" validate:"omitempty,min=1,max=50"`
	Threshold float64 `json:"threshold" validate:"omitempty,min=0,max=1"`
}

type HistoryMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type QueryRequest struct {
	Query     string            `json:"query" validate:"required,max=4000"`
	History   []HistoryMessage  `json:"history" validate:"omitempty,max=20,dive"`
	Fields    map[string]string `json:"fields"`
	Retrieval *RetrievalOptions `json:"retrieval"`
}

type ReviewRequest struct {
	Document  string            `json:"document" validate:"required,max=100000"`
	Title     string            `json:"title" validate:"max=255"`
	Fields    map[string]string `json:"fields"`
	Retrieval *RetrievalOptions `json:"retrieval"`
}

type CollaborationRequest struct {
	Experts   []string `json:"experts" validate:"required,min=2,max=5,unique,dive,required"`
	Query     string   `json:"query" validate:"required,max=4000"`
	Mode      string   `json:"mode" validate:"omitempty,oneof=debate consensus review"`
	MaxRounds int      `json:"maxRounds" validate:"omitempty,min=1"`
}

type CollaborationSessionResponse struct {
	SessionId uuid.UUID                   `json:"sessionId"`
	Experts   []string                    `json:"experts"`
	Query     string                      `json:"query"`
	Mode      entity.CollaborationMode    `json:"mode"`
	MaxRounds int                         `json:"maxRounds"`
	Rounds    []entity.CollaborationRound `json:"rounds"`
	Consensus *entity.ConsensusData       `json:"consensus"`
	Status    entity.SessionStatus        `json:"status"`
	Error     string                      `json:"error,omitempty"`
}

type IngestResponse struct {
	DocumentId uuid.UUID `json:"documentId"`
	Chunks     int       `json:"chunks"`
	Replaced   int64     `json:"replaced"`
}

type DeleteChunksResponse struct {
	DocumentId uuid.UUID `json:"documentId"`
	Deleted    int64     `json:"deleted"`
}

// IngestDocumentMessage is the payload of an ingestion job on the in-process queue.
type IngestDocumentMessage struct {
	DocumentId uuid.UUID `json:"documentId"`
	PluginId   uuid.UUID `json:"pluginId"`
}
