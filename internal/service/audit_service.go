package service

import (
	"context"
	"fmt"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/repository/unitofwork"
	"ai-plugin-engine/pkg/rag/executor"
)

// auditWriter persists query and review logs and announces them.
type auditWriter struct {
	uowFactory unitofwork.RepositoryFactory
	events     IEventService
}

func NewAuditWriter(uowFactory unitofwork.RepositoryFactory, events IEventService) executor.AuditWriter {
	return &auditWriter{uowFactory: uowFactory, events: events}
}

func (w *auditWriter) WriteQuery(ctx context.Context, log *entity.QueryLog) error {
	uow := w.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AuditRepository().CreateQueryLog(ctx, log); err != nil {
		return fmt.Errorf("failed to write query log: %w", err)
	}
	w.events.QueryCompleted(ctx, log)
	return nil
}

func (w *auditWriter) WriteReview(ctx context.Context, log *entity.ReviewLog) error {
	uow := w.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AuditRepository().CreateReviewLog(ctx, log); err != nil {
		return fmt.Errorf("failed to write review log: %w", err)
	}
	w.events.ReviewCompleted(ctx, log)
	return nil
}
