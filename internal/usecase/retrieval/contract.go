package retrieval

import (
	"context"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/repository/corpus"
)

// IndexProvider yields the current searchable index.
type IndexProvider interface {
	Current() (*corpus.Index, error)
}

// Embedder vectorizes the query text for dense scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
