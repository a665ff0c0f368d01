package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/retry"
)

// QueryCache stores query vectors keyed by model and text.
type QueryCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// Embedder wraps a provider with batching, retry, dimension checks and normalization.
type Embedder struct {
	provider  EmbeddingProvider
	dimension int
	batchSize int
	policy    retry.Policy
	cache     QueryCache
	logger    logger.ILogger
}

type Option func(*Embedder)

func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

func WithPolicy(p retry.Policy) Option {
	return func(e *Embedder) { e.policy = p }
}

func WithQueryCache(c QueryCache) Option {
	return func(e *Embedder) { e.cache = c }
}

func WithLogger(l logger.ILogger) Option {
	return func(e *Embedder) { e.logger = l }
}

func NewEmbedder(provider EmbeddingProvider, dimension int, opts ...Option) *Embedder {
	e := &Embedder{
		provider:  provider,
		dimension: dimension,
		batchSize: 64,
		policy:    retry.DefaultPolicy(),
		logger:    logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) Dimension() int { return e.dimension }

// EmbedDocuments embeds texts in batches. The call is atomic: if any batch fails
// after its retry, no vectors are returned.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := retry.Do(ctx, e.policy, func(callCtx context.Context) ([][]float32, error) {
			return e.embedBatch(callCtx, batch, TaskRetrievalDocument)
		})
		if err != nil {
			e.logger.Error("EMBEDDER", "Batch embedding failed", map[string]interface{}{
				"batch_start": start,
				"batch_size":  len(batch),
				"error":       err.Error(),
			})
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single query, consulting the cache when configured.
// Cache failures are logged and never fail the call.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.provider.Model(), text)
	if e.cache != nil {
		vec, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("EMBEDDER", "Query cache read failed", map[string]interface{}{"error": err.Error()})
		} else if ok && len(vec) == e.dimension {
			return vec, nil
		}
	}

	vecs, err := retry.Do(ctx, e.policy, func(callCtx context.Context) ([][]float32, error) {
		return e.embedBatch(callCtx, []string{text}, TaskRetrievalQuery)
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, vecs[0]); err != nil {
			e.logger.Warn("EMBEDDER", "Query cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return vecs[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	vecs, err := e.provider.Embed(ctx, texts, taskType)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, retry.Permanent(fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), len(texts)))
	}

	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if err := checkDimension(v, e.dimension); err != nil {
			return nil, retry.Permanent(err)
		}
		n, err := normalizeVector(v)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		out[i] = n
	}
	return out, nil
}

func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "|" + text))
	return "embedding:" + hex.EncodeToString(sum[:])
}
