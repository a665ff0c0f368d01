package implementation

import (
	"context"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/mapper"
	"ai-plugin-engine/internal/model"
	"ai-plugin-engine/internal/repository/contract"
	"ai-plugin-engine/internal/repository/scope"
	"ai-plugin-engine/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const insertBatchSize = 100

type ChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChunkMapper
}

func NewChunkRepository(db *gorm.DB) contract.ChunkRepository {
	return &ChunkRepositoryImpl{db: db, mapper: mapper.NewChunkMapper()}
}

func (r *ChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, insertBatchSize).Error; err != nil {
		return err
	}
	for i, m := range models {
		chunks[i].Id = m.Id
		chunks[i].CreatedAt = m.CreatedAt
	}
	return nil
}

func (r *ChunkRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.DocumentChunk{})
	return res.RowsAffected, res.Error
}

func (r *ChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error) {
	var models []*model.DocumentChunk
	query := applySpecifications(r.db.WithContext(ctx), specs...).Scopes(scope.OrderByChunkIndex)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.Chunk, len(models))
	for i, m := range models {
		chunk, err := r.mapper.ToEntity(m)
		if err != nil {
			return nil, err
		}
		out[i] = chunk
	}
	return out, nil
}

func (r *ChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := applySpecifications(r.db.WithContext(ctx), specs...).Model(&model.DocumentChunk{}).Count(&count).Error
	return count, err
}

type searchResult struct {
	model.DocumentChunk
	Similarity   float64
	DocumentName string
}

// searchQuery selects a plugin's live chunks strictly above threshold, best
// first, ties broken by chunk_index then document_id. Ordering by the
// similarity alias instead of the distance operator keeps an approximate
// vector index from serving the scan, so every chunk of the plugin is scored
// before the limit applies.
func searchQuery(db *gorm.DB, pluginId uuid.UUID, vector []float32, limit int, threshold float64) *gorm.DB {
	queryVector := pgvector.NewVector(vector)
	return db.Table("document_chunks").
		Select("document_chunks.*, documents.name AS document_name, 1 - (document_chunks.embedding <=> ?) AS similarity", queryVector).
		Scopes(scope.LiveDocuments).
		Where("document_chunks.plugin_id = ?", pluginId).
		Where("1 - (document_chunks.embedding <=> ?) > ?", queryVector, threshold).
		Order("similarity DESC").
		Order("document_chunks.chunk_index ASC").
		Order("document_chunks.document_id ASC").
		Limit(limit)
}

// SearchByPlugin ranks by pgvector cosine distance; similarity is
// 1 - (embedding <=> query).
func (r *ChunkRepositoryImpl) SearchByPlugin(ctx context.Context, pluginId uuid.UUID, vector []float32, limit int, threshold float64) ([]*entity.RetrievedChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	var results []searchResult
	err := searchQuery(r.db.WithContext(ctx), pluginId, vector, limit, threshold).Scan(&results).Error
	if err != nil {
		return nil, err
	}

	out := make([]*entity.RetrievedChunk, len(results))
	for i := range results {
		chunk, err := r.mapper.ToEntity(&results[i].DocumentChunk)
		if err != nil {
			return nil, err
		}
		out[i] = &entity.RetrievedChunk{
			Chunk:        *chunk,
			Similarity:   results[i].Similarity,
			DocumentName: results[i].DocumentName,
		}
	}
	return out, nil
}
