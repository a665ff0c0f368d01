package contract

import (
	"context"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/repository/specification"

	"github.com/google/uuid"
)

type ChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.Chunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) (int64, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchByPlugin returns up to limit chunks of the plugin with cosine
	// similarity strictly above threshold, most similar first.
	SearchByPlugin(ctx context.Context, pluginId uuid.UUID, vector []float32, limit int, threshold float64) ([]*entity.RetrievedChunk, error)
}
