package entity

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimension is the fixed vector size of every stored chunk.
const EmbeddingDimension = 1536

type Chunk struct {
	Id           uuid.UUID
	DocumentId   uuid.UUID
	PluginId     uuid.UUID
	Content      string
	ChunkIndex   int
	PageNumber   *int
	SectionTitle *string
	Embedding    []float32
	Metadata     map[string]string
	CreatedAt    time.Time
}

// RetrievedChunk is a chunk returned by similarity search.
// Similarity is 1 - cosine distance, in [0,1] for normalized vectors.
type RetrievedChunk struct {
	Chunk        Chunk
	Similarity   float64
	DocumentName string
}
