package mapper

import (
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ChunkMapper struct{}

func NewChunkMapper() *ChunkMapper {
	return &ChunkMapper{}
}

func (m *ChunkMapper) ToEntity(c *model.DocumentChunk) (*entity.Chunk, error) {
	if c == nil {
		return nil, nil
	}
	out := &entity.Chunk{
		Id:           c.Id,
		DocumentId:   c.DocumentId,
		PluginId:     c.PluginId,
		Content:      c.Content,
		ChunkIndex:   c.ChunkIndex,
		PageNumber:   c.PageNumber,
		SectionTitle: c.SectionTitle,
		Embedding:    c.Embedding.Slice(),
		CreatedAt:    c.CreatedAt,
	}
	if err := fromJSON("document_chunks.metadata", c.Metadata, &out.Metadata); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *ChunkMapper) ToModel(c *entity.Chunk) *model.DocumentChunk {
	if c == nil {
		return nil
	}
	return &model.DocumentChunk{
		Id:           c.Id,
		DocumentId:   c.DocumentId,
		PluginId:     c.PluginId,
		Content:      c.Content,
		ChunkIndex:   c.ChunkIndex,
		PageNumber:   c.PageNumber,
		SectionTitle: c.SectionTitle,
		Embedding:    pgvector.NewVector(c.Embedding),
		Metadata:     toJSON(c.Metadata, "{}"),
		CreatedAt:    c.CreatedAt,
	}
}

func (m *ChunkMapper) ToModels(chunks []*entity.Chunk) []*model.DocumentChunk {
	models := make([]*model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
