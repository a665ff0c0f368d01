package entity

import (
	"time"

	"github.com/google/uuid"
)

type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditError   AuditStatus = "error"
)

type QueryLog struct {
	Id           uuid.UUID
	PluginId     uuid.UUID
	CallerId     *uuid.UUID
	Query        string
	Answer       string
	Citations    []CitationEntry
	DecisionPath []DecisionStep
	Confidence   Confidence
	CitationGap  string
	LatencyMs    int64
	Status       AuditStatus
	ErrorKind    string
	ErrorMessage string
	CreatedAt    time.Time
}

type ReviewLog struct {
	Id           uuid.UUID
	PluginId     uuid.UUID
	CallerId     *uuid.UUID
	Title        string
	DocumentSize int
	Annotations  []ReviewAnnotation
	Summary      ReviewSummary
	LatencyMs    int64
	Status       AuditStatus
	ErrorKind    string
	ErrorMessage string
	CreatedAt    time.Time
}
