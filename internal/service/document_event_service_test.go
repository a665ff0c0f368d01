package service

import (
	"context"
	"testing"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/events"
	"ai-plugin-engine/pkg/nats"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queuedJobs struct {
	jobs []dto.IngestDocumentMessage
}

func (q *queuedJobs) PublishIngest(ctx context.Context, msg dto.IngestDocumentMessage) error {
	q.jobs = append(q.jobs, msg)
	return nil
}

type fakeSubscriber struct {
	handlers map[string]nats.EventHandler
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, eventType, durableName string, handler nats.EventHandler) error {
	if s.handlers == nil {
		s.handlers = map[string]nats.EventHandler{}
	}
	s.handlers[eventType] = handler
	return nil
}

func TestDocumentEvents_UploadQueuesIngestion(t *testing.T) {
	jobs := &queuedJobs{}
	svc := NewDocumentEventService(&fakeSubscriber{}, jobs, nil, logger.NewNopLogger())
	docId, pluginId := uuid.New(), uuid.New()

	tests := []struct {
		name  string
		data  map[string]interface{}
		queue bool
	}{
		{name: "valid upload", data: map[string]interface{}{"documentId": docId.String(), "pluginId": pluginId.String()}, queue: true},
		{name: "missing plugin", data: map[string]interface{}{"documentId": docId.String()}, queue: true},
		{name: "bad document id", data: map[string]interface{}{"documentId": "not-a-uuid"}},
		{name: "no document id", data: map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs.jobs = nil
			err := svc.HandleUploaded(context.Background(), events.New(events.TypeDocumentUploaded, tt.data))
			require.NoError(t, err)
			if !tt.queue {
				assert.Empty(t, jobs.jobs)
				return
			}
			require.Len(t, jobs.jobs, 1)
			assert.Equal(t, docId, jobs.jobs[0].DocumentId)
		})
	}
}

func TestDocumentEvents_DeleteDropsChunks(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, f.doc.Id)
	require.NoError(t, err)

	sub := &fakeSubscriber{}
	svc := NewDocumentEventService(sub, &queuedJobs{}, f.svc, logger.NewNopLogger())
	require.NoError(t, svc.Start(ctx))
	require.Contains(t, sub.handlers, events.TypeDocumentDeleted)
	require.Contains(t, sub.handlers, events.TypeDocumentUploaded)

	err = sub.handlers[events.TypeDocumentDeleted](ctx, events.New(events.TypeDocumentDeleted, map[string]interface{}{
		"documentId": f.doc.Id.String(),
	}))
	require.NoError(t, err)
	assert.Empty(t, f.db.chunksOf(f.doc.Id))
}
