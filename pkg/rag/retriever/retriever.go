// Package retriever returns the most similar chunks of one plugin's knowledge base.
package retriever

import (
	"context"
	"sort"
	"strings"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/rag/engineerr"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const op = "retriever.Retrieve"

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher runs the storage-side similarity search over one plugin's chunks.
type ChunkSearcher interface {
	SearchByPlugin(ctx context.Context, pluginId uuid.UUID, vector []float32, limit int, threshold float64) ([]*entity.RetrievedChunk, error)
}

type Options struct {
	TopK      int
	Threshold float64
}

func DefaultOptions() Options {
	return Options{TopK: 8, Threshold: 0.4}
}

type Retriever struct {
	embedder QueryEmbedder
	searcher ChunkSearcher
	logger   logger.ILogger
}

func New(embedder QueryEmbedder, searcher ChunkSearcher, log logger.ILogger) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher, logger: log}
}

// Retrieve embeds query and returns at most TopK chunks of pluginId with similarity
// strictly above Threshold, ordered by similarity desc, then chunk index, then document id.
// An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, pluginId uuid.UUID, query string, opts Options) ([]*entity.RetrievedChunk, error) {
	ctx, span := otel.Tracer("ai-plugin-engine/retriever").Start(ctx, op)
	defer span.End()

	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, engineerr.Validation(op, "threshold must be in [0,1], got %v", opts.Threshold)
	}
	if strings.TrimSpace(query) == "" {
		return nil, engineerr.Validation(op, "query is empty")
	}
	span.SetAttributes(
		attribute.String("plugin.id", pluginId.String()),
		attribute.Int("retriever.top_k", opts.TopK),
		attribute.Float64("retriever.threshold", opts.Threshold),
	)

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, engineerr.Wrapf(engineerr.KindRetrieval, op, err, "embedding query")
	}

	found, err := r.searcher.SearchByPlugin(ctx, pluginId, vector, opts.TopK, opts.Threshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, engineerr.Wrapf(engineerr.KindRetrieval, op, err, "searching chunks")
	}

	results := Rank(pluginId, found, opts)
	r.logger.Debug("RETRIEVER", "Chunks retrieved", map[string]interface{}{
		"plugin_id": pluginId.String(),
		"raw":       len(found),
		"kept":      len(results),
	})
	span.SetAttributes(attribute.Int("retriever.results", len(results)))
	return results, nil
}

// Rank applies the retrieval contract to raw candidates from any store:
// plugin isolation, strict threshold, deterministic order and the TopK cut.
func Rank(pluginId uuid.UUID, candidates []*entity.RetrievedChunk, opts Options) []*entity.RetrievedChunk {
	kept := make([]*entity.RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.Chunk.PluginId != pluginId || c.Similarity <= opts.Threshold {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Chunk.ChunkIndex != b.Chunk.ChunkIndex {
			return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
		}
		return a.Chunk.DocumentId.String() < b.Chunk.DocumentId.String()
	})

	if opts.TopK > 0 && len(kept) > opts.TopK {
		kept = kept[:opts.TopK]
	}
	return kept
}
