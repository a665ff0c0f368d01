package service

import (
	"context"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/events"

	"github.com/google/uuid"
)

// IEventService publishes domain events. Publishing is best effort: a failed
// publish is logged and never fails the operation that produced the event.
type IEventService interface {
	QueryCompleted(ctx context.Context, log *entity.QueryLog)
	ReviewCompleted(ctx context.Context, log *entity.ReviewLog)
	CollaborationCompleted(ctx context.Context, sessionId uuid.UUID, status entity.SessionStatus, consensus *entity.ConsensusData)
	DocumentIngested(ctx context.Context, doc *entity.Document, chunks int)
}

type eventService struct {
	publisher events.Publisher
	logger    logger.ILogger
}

// NewEventService accepts a nil publisher, in which case events are dropped.
func NewEventService(publisher events.Publisher, log logger.ILogger) IEventService {
	return &eventService{publisher: publisher, logger: log}
}

func (s *eventService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}

func optionalId(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func (s *eventService) QueryCompleted(ctx context.Context, log *entity.QueryLog) {
	s.publish(ctx, events.New(events.TypeQueryCompleted, map[string]interface{}{
		"auditId":     log.Id.String(),
		"pluginId":    log.PluginId.String(),
		"callerId":    optionalId(log.CallerId),
		"status":      string(log.Status),
		"confidence":  string(log.Confidence),
		"citationGap": log.CitationGap != "",
		"latencyMs":   log.LatencyMs,
	}))
}

func (s *eventService) ReviewCompleted(ctx context.Context, log *entity.ReviewLog) {
	s.publish(ctx, events.New(events.TypeReviewCompleted, map[string]interface{}{
		"auditId":     log.Id.String(),
		"pluginId":    log.PluginId.String(),
		"callerId":    optionalId(log.CallerId),
		"status":      string(log.Status),
		"compliance":  string(log.Summary.Compliance),
		"annotations": log.Summary.Total,
		"latencyMs":   log.LatencyMs,
	}))
}

func (s *eventService) CollaborationCompleted(ctx context.Context, sessionId uuid.UUID, status entity.SessionStatus, consensus *entity.ConsensusData) {
	data := map[string]interface{}{
		"sessionId": sessionId.String(),
		"status":    string(status),
	}
	if consensus != nil {
		data["agreementLevel"] = consensus.AgreementLevel
		data["confidence"] = string(consensus.Confidence)
		data["conflicts"] = len(consensus.Conflicts)
	}
	s.publish(ctx, events.New(events.TypeCollaborationCompleted, data))
}

func (s *eventService) DocumentIngested(ctx context.Context, doc *entity.Document, chunks int) {
	s.publish(ctx, events.New(events.TypeDocumentIngested, map[string]interface{}{
		"documentId": doc.Id.String(),
		"pluginId":   doc.PluginId.String(),
		"chunks":     chunks,
	}))
}
