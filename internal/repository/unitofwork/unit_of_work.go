package unitofwork

import (
	"context"

	"ai-plugin-engine/internal/repository/contract"
)

// RepositoryFactory opens a unit of work per request or job.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

// UnitOfWork groups repositories over one connection. Between Begin and
// Commit or Rollback every repository shares the transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	PluginRepository() contract.PluginRepository
	DocumentRepository() contract.DocumentRepository
	DecisionTreeRepository() contract.DecisionTreeRepository
	ChunkRepository() contract.ChunkRepository
	AuditRepository() contract.AuditRepository
	CollaborationRepository() contract.CollaborationRepository
}
