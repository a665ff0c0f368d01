package contract

import (
	"context"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/repository/specification"

	"github.com/google/uuid"
)

type PluginRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Plugin, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Plugin, error)
}

type DocumentRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	MarkIngested(ctx context.Context, id uuid.UUID, chunkCount int) error
}

type DecisionTreeRepository interface {
	// FindActive returns the plugin's active tree, or nil when it has none.
	FindActive(ctx context.Context, pluginId uuid.UUID) (*entity.DecisionTree, error)
}
