package service

import (
	"context"
	"fmt"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/events"
	"ai-plugin-engine/pkg/nats"

	"github.com/google/uuid"
)

// EventSubscriber is satisfied by the NATS subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler nats.EventHandler) error
}

// IDocumentEventService reacts to document lifecycle events published by the
// document store: uploads are queued for ingestion, deletions drop chunks.
type IDocumentEventService interface {
	Start(ctx context.Context) error
	HandleUploaded(ctx context.Context, event events.Event) error
	HandleDeleted(ctx context.Context, event events.Event) error
}

type documentEventService struct {
	subscriber EventSubscriber
	publisher  IPublisherService
	ingestion  IIngestionService
	logger     logger.ILogger
}

func NewDocumentEventService(subscriber EventSubscriber, publisher IPublisherService, ingestion IIngestionService, log logger.ILogger) IDocumentEventService {
	return &documentEventService{subscriber: subscriber, publisher: publisher, ingestion: ingestion, logger: log}
}

func (s *documentEventService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, events.TypeDocumentUploaded, "plugin-engine-document-uploaded", s.HandleUploaded); err != nil {
		return err
	}
	return s.subscriber.Subscribe(ctx, events.TypeDocumentDeleted, "plugin-engine-document-deleted", s.HandleDeleted)
}

func documentId(event events.Event) (uuid.UUID, error) {
	raw := events.String(event, "documentId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("event %s has invalid documentId %q", event.EventType(), raw)
	}
	return id, nil
}

// HandleUploaded acks events with a malformed id instead of redelivering them.
func (s *documentEventService) HandleUploaded(ctx context.Context, event events.Event) error {
	id, err := documentId(event)
	if err != nil {
		s.logger.Warn("DOCUMENT_EVENTS", "Ignoring upload event", map[string]interface{}{"error": err.Error()})
		return nil
	}
	msg := dto.IngestDocumentMessage{DocumentId: id}
	if pluginId, err := uuid.Parse(events.String(event, "pluginId")); err == nil {
		msg.PluginId = pluginId
	}
	return s.publisher.PublishIngest(ctx, msg)
}

func (s *documentEventService) HandleDeleted(ctx context.Context, event events.Event) error {
	id, err := documentId(event)
	if err != nil {
		s.logger.Warn("DOCUMENT_EVENTS", "Ignoring delete event", map[string]interface{}{"error": err.Error()})
		return nil
	}
	_, err = s.ingestion.DeleteChunks(ctx, id)
	return err
}
