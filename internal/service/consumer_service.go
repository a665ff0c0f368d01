package service

import (
	"context"
	"errors"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/lock"
	"ai-plugin-engine/pkg/rag/engineerr"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains ingestion jobs. Jobs for missing documents or with a
// bad payload are acked and dropped; other failures are nacked for redelivery.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	ingestion  IIngestionService
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	ingestion IIngestionService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		ingestion:  ingestion,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IngestDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal ingest job", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	res, err := cs.ingestion.Ingest(ctx, payload.DocumentId)
	switch {
	case err == nil:
		cs.logger.Info("CONSUMER", "Ingest job done", map[string]interface{}{
			"document": payload.DocumentId.String(),
			"chunks":   res.Chunks,
		})
		msg.Ack()
	case engineerr.Is(err, engineerr.KindAccessDenied):
		cs.logger.Warn("CONSUMER", "Ingest job for unknown document", map[string]interface{}{"document": payload.DocumentId.String()})
		msg.Ack()
	case errors.Is(err, lock.ErrHeld):
		cs.logger.Info("CONSUMER", "Document busy, retrying later", map[string]interface{}{"document": payload.DocumentId.String()})
		msg.Nack()
	default:
		cs.logger.Error("CONSUMER", "Ingest job failed", map[string]interface{}{
			"document": payload.DocumentId.String(),
			"error":    err.Error(),
		})
		msg.Nack()
	}
}
