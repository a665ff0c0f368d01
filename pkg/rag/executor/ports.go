// Package executor runs a single plugin over a query or a document: retrieval,
// decision tree, generation, citation checks and the audit record.
package executor

import (
	"context"
	"time"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/rag/decision"
	"ai-plugin-engine/pkg/rag/retriever"

	"github.com/google/uuid"
)

const (
	MaxQueryLength    = 4000
	MaxDocumentLength = 100000
)

// Profile is a resolved plugin with its active tree, if any.
type Profile struct {
	Plugin *entity.Plugin
	Tree   *entity.DecisionTree
}

type Retriever interface {
	Retrieve(ctx context.Context, pluginId uuid.UUID, query string, opts retriever.Options) ([]*entity.RetrievedChunk, error)
}

type TreeEvaluator interface {
	Evaluate(tree *entity.DecisionTree, in decision.Input) (*decision.Outcome, error)
}

// AuditWriter persists one record per finished or failed run.
type AuditWriter interface {
	WriteQuery(ctx context.Context, log *entity.QueryLog) error
	WriteReview(ctx context.Context, log *entity.ReviewLog) error
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func activeTree(p *Profile) *entity.DecisionTree {
	if p == nil || p.Tree == nil || !p.Tree.IsActive {
		return nil
	}
	return p.Tree
}
