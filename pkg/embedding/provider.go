package embedding

import "context"

// Task types passed to providers that distinguish indexing from querying.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// EmbeddingProvider generates one vector per input text, in input order.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	Model() string
	Dimensions() int
}
