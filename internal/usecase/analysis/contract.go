package analysis

import (
	"context"

	"github.com/kailas-cloud/simcheck/internal/domain"
)

// Embedder vectorizes a batch of normalized texts. Output order follows input order.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
