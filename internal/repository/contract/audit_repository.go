package contract

import (
	"context"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/repository/specification"

	"github.com/google/uuid"
)

type AuditRepository interface {
	CreateQueryLog(ctx context.Context, log *entity.QueryLog) error
	CreateReviewLog(ctx context.Context, log *entity.ReviewLog) error
	FindQueryLogs(ctx context.Context, specs ...specification.Specification) ([]*entity.QueryLog, error)
}

type CollaborationRepository interface {
	Create(ctx context.Context, session *entity.CollaborationSession) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.CollaborationSession, error)
	// FindForUpdate row-locks the session; call it inside a transaction.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.CollaborationSession, error)
	Update(ctx context.Context, session *entity.CollaborationSession) error
}
