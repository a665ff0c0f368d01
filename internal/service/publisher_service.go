package service

import (
	"context"
	"fmt"

	"ai-plugin-engine/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IPublisherService enqueues ingestion jobs on the in-process queue.
type IPublisherService interface {
	PublishIngest(ctx context.Context, msg dto.IngestDocumentMessage) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{topicName: topicName, publisher: publisher}
}

func (p *publisherService) PublishIngest(ctx context.Context, payload dto.IngestDocumentMessage) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode ingest job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), raw)
	msg.SetContext(ctx)
	if err := p.publisher.Publish(p.topicName, msg); err != nil {
		return fmt.Errorf("failed to enqueue ingest job: %w", err)
	}
	return nil
}
