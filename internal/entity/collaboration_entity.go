package entity

import (
	"time"

	"github.com/google/uuid"
)

type CollaborationMode string

const (
	ModeDebate    CollaborationMode = "debate"
	ModeConsensus CollaborationMode = "consensus"
	ModeReview    CollaborationMode = "review"
)

type SessionStatus string

const (
	SessionPending      SessionStatus = "pending"
	SessionDeliberating SessionStatus = "deliberating"
	SessionComplete     SessionStatus = "complete"
	SessionError        SessionStatus = "error"
)

type ExpertResponse struct {
	PluginSlug   string          `json:"pluginSlug"`
	Domain       string          `json:"domain"`
	Answer       string          `json:"answer"`
	Stance       string          `json:"stance,omitempty"`
	Citations    []CitationEntry `json:"citations"`
	Confidence   Confidence      `json:"confidence"`
	Revised      bool            `json:"revised"`
	RevisionNote string          `json:"revisionNote,omitempty"`
}

type StancePosition struct {
	Expert string `json:"expert"`
	Stance string `json:"stance"`
}

type ConflictEntry struct {
	Topic      string           `json:"topic"`
	Positions  []StancePosition `json:"positions"`
	Resolved   bool             `json:"resolved"`
	Resolution string           `json:"resolution,omitempty"`
}

type ExpertContribution struct {
	PluginSlug string     `json:"pluginSlug"`
	Domain     string     `json:"domain"`
	Confidence Confidence `json:"confidence"`
	Agrees     bool       `json:"agreesWithConsensus"`
	Revised    bool       `json:"revised"`
}

type ConsensusData struct {
	Answer              string               `json:"answer"`
	Confidence          Confidence           `json:"confidence"`
	AgreementLevel      float64              `json:"agreementLevel"`
	Citations           []CitationEntry      `json:"citations"`
	Conflicts           []ConflictEntry      `json:"conflicts"`
	ExpertContributions []ExpertContribution `json:"expertContributions"`
}

type CollaborationRound struct {
	Round     int              `json:"round"`
	Responses []ExpertResponse `json:"responses"`
	Excluded  []string         `json:"excluded,omitempty"`
	Revisions int              `json:"revisions"`
}

type CollaborationSession struct {
	Id        uuid.UUID
	CallerId  *uuid.UUID
	Experts   []string
	Query     string
	Mode      CollaborationMode
	MaxRounds int
	Rounds    []CollaborationRound
	Consensus *ConsensusData
	Status    SessionStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
