package mapper

import (
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/model"

	"gorm.io/datatypes"
)

type CollaborationMapper struct{}

func NewCollaborationMapper() *CollaborationMapper {
	return &CollaborationMapper{}
}

func (m *CollaborationMapper) ToModel(s *entity.CollaborationSession) *model.CollaborationSession {
	out := &model.CollaborationSession{
		Id:        s.Id,
		CallerId:  s.CallerId,
		Experts:   datatypes.NewJSONSlice(s.Experts),
		Query:     s.Query,
		Mode:      string(s.Mode),
		MaxRounds: s.MaxRounds,
		Rounds:    toJSON(s.Rounds, "[]"),
		Status:    string(s.Status),
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
	}
	if s.Consensus != nil {
		out.Consensus = toJSON(s.Consensus, "null")
	}
	return out
}

func (m *CollaborationMapper) ToEntity(s *model.CollaborationSession) (*entity.CollaborationSession, error) {
	out := &entity.CollaborationSession{
		Id:        s.Id,
		CallerId:  s.CallerId,
		Experts:   []string(s.Experts),
		Query:     s.Query,
		Mode:      entity.CollaborationMode(s.Mode),
		MaxRounds: s.MaxRounds,
		Rounds:    []entity.CollaborationRound{},
		Status:    entity.SessionStatus(s.Status),
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
		UpdatedAt: timePtr(s.UpdatedAt),
	}
	if err := fromJSON("collaboration_sessions.rounds", s.Rounds, &out.Rounds); err != nil {
		return nil, err
	}
	if len(s.Consensus) > 0 && string(s.Consensus) != "null" {
		out.Consensus = &entity.ConsensusData{}
		if err := fromJSON("collaboration_sessions.consensus", s.Consensus, out.Consensus); err != nil {
			return nil, err
		}
	}
	return out, nil
}
