package mapper

import (
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/model"
)

type AuditMapper struct{}

func NewAuditMapper() *AuditMapper {
	return &AuditMapper{}
}

func (m *AuditMapper) QueryLogToModel(l *entity.QueryLog) *model.QueryLog {
	return &model.QueryLog{
		Id:           l.Id,
		PluginId:     l.PluginId,
		CallerId:     l.CallerId,
		Query:        l.Query,
		Answer:       l.Answer,
		Citations:    toJSON(l.Citations, "[]"),
		DecisionPath: toJSON(l.DecisionPath, "[]"),
		Confidence:   string(l.Confidence),
		CitationGap:  l.CitationGap,
		LatencyMs:    l.LatencyMs,
		Status:       string(l.Status),
		ErrorKind:    l.ErrorKind,
		ErrorMessage: l.ErrorMessage,
		CreatedAt:    l.CreatedAt,
	}
}

func (m *AuditMapper) QueryLogToEntity(l *model.QueryLog) (*entity.QueryLog, error) {
	out := &entity.QueryLog{
		Id:           l.Id,
		PluginId:     l.PluginId,
		CallerId:     l.CallerId,
		Query:        l.Query,
		Answer:       l.Answer,
		Citations:    []entity.CitationEntry{},
		DecisionPath: []entity.DecisionStep{},
		Confidence:   entity.Confidence(l.Confidence),
		CitationGap:  l.CitationGap,
		LatencyMs:    l.LatencyMs,
		Status:       entity.AuditStatus(l.Status),
		ErrorKind:    l.ErrorKind,
		ErrorMessage: l.ErrorMessage,
		CreatedAt:    l.CreatedAt,
	}
	if err := fromJSON("query_logs.citations", l.Citations, &out.Citations); err != nil {
		return nil, err
	}
	if err := fromJSON("query_logs.decision_path", l.DecisionPath, &out.DecisionPath); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *AuditMapper) ReviewLogToModel(l *entity.ReviewLog) *model.ReviewLog {
	return &model.ReviewLog{
		Id:           l.Id,
		PluginId:     l.PluginId,
		CallerId:     l.CallerId,
		Title:        l.Title,
		DocumentSize: l.DocumentSize,
		Annotations:  toJSON(l.Annotations, "[]"),
		Summary:      toJSON(l.Summary, "{}"),
		Compliance:   string(l.Summary.Compliance),
		LatencyMs:    l.LatencyMs,
		Status:       string(l.Status),
		ErrorKind:    l.ErrorKind,
		ErrorMessage: l.ErrorMessage,
		CreatedAt:    l.CreatedAt,
	}
}

func (m *AuditMapper) ReviewLogToEntity(l *model.ReviewLog) (*entity.ReviewLog, error) {
	out := &entity.ReviewLog{
		Id:           l.Id,
		PluginId:     l.PluginId,
		CallerId:     l.CallerId,
		Title:        l.Title,
		DocumentSize: l.DocumentSize,
		Annotations:  []entity.ReviewAnnotation{},
		LatencyMs:    l.LatencyMs,
		Status:       entity.AuditStatus(l.Status),
		ErrorKind:    l.ErrorKind,
		ErrorMessage: l.ErrorMessage,
		CreatedAt:    l.CreatedAt,
	}
	if err := fromJSON("review_logs.annotations", l.Annotations, &out.Annotations); err != nil {
		return nil, err
	}
	if err := fromJSON("review_logs.summary", l.Summary, &out.Summary); err != nil {
		return nil, err
	}
	return out, nil
}
