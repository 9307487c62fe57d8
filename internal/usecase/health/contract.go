package health

import (
	"context"

	"github.com/timtro-cloud/trobot/internal/repository/corpus"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexProvider reports whether a retrieval index is loadable.
type IndexProvider interface {
	Current() (*corpus.Index, error)
}
