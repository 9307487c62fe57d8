// Package indexer rebuilds the retrieval corpus: knowledge-base articles,
// visible listings and pricing packages are gathered, indexed for TF-IDF,
// optionally embedded, and swapped in atomically.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/logger"
	"github.com/timtro-cloud/trobot/internal/repository/corpus"
	"go.uber.org/zap"
)

// embedBatchSize bounds one provider call during a rebuild.
const embedBatchSize = 64

// ListingSource supplies the listings to index.
type ListingSource interface {
	Visible(ctx context.Context) ([]domain.Listing, error)
}

// IndexSink persists and publishes the rebuilt index.
type IndexSink interface {
	Replace(ix *corpus.Index) error
}

// IndexProvider reports whether a usable index already exists.
type IndexProvider interface {
	Current() (*corpus.Index, error)
}

// Stats summarizes one rebuild.
type Stats struct {
	Docs    int `json:"docs"`
	Vectors int `json:"vectors"`
	Tokens  int `json:"tokens"`
}

// Service rebuilds the corpus index.
type Service struct {
	listings   ListingSource
	packages   []domain.Package
	embed      domain.BatchEmbedder
	sink       IndexSink
	articleDir string
	now        func() time.Time
}

// New creates the indexer. embed may be nil for a lexical-only index.
func New(
	listings ListingSource,
	packages []domain.Package,
	embed domain.BatchEmbedder,
	sink IndexSink,
	articleDir string,
) *Service {
	return &Service{
		listings:   listings,
		packages:   packages,
		embed:      embed,
		sink:       sink,
		articleDir: articleDir,
		now:        time.Now,
	}
}

// WithClock replaces the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EnsureReady builds the index when none exists yet, so a fresh deploy
// serves sourced answers before anyone calls the reindex endpoint. An
// already-loaded index is left untouched.
func (s *Service) EnsureReady(ctx context.Context, provider IndexProvider) error {
	_, err := provider.Current()
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrIndexNotBuilt) {
		return fmt.Errorf("load index: %w", err)
	}
	if _, err := s.Rebuild(ctx); err != nil {
		return err
	}
	return nil
}

// Rebuild gathers all sources and publishes a fresh index. An embedding
// failure degrades to a lexical-only index rather than failing the rebuild.
func (s *Service) Rebuild(ctx context.Context) (Stats, error) {
	log := logger.FromContext(ctx)

	listings, err := s.listings.Visible(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load listings: %w", err)
	}

	docs, err := corpus.GatherAll(s.articleDir, listings, s.packages)
	if err != nil {
		return Stats{}, fmt.Errorf("gather corpus: %w", err)
	}

	ix := corpus.Build(docs, s.now())
	stats := Stats{Docs: len(docs)}

	if s.embed != nil && len(docs) > 0 {
		vectors, tokens, err := s.embedDocs(ctx, docs)
		if err != nil {
			log.Warn("embedding failed, publishing lexical-only index", zap.Error(err))
		} else if err := ix.AttachVectors(vectors); err != nil {
			log.Warn("vector attach failed, publishing lexical-only index", zap.Error(err))
		} else {
			stats.Vectors = len(vectors)
			stats.Tokens = tokens
		}
	}

	if err := s.sink.Replace(ix); err != nil {
		return Stats{}, fmt.Errorf("publish index: %w", err)
	}

	log.Info("corpus index rebuilt",
		zap.Int("docs", stats.Docs),
		zap.Int("vectors", stats.Vectors),
		zap.Int("tokens", stats.Tokens))
	return stats, nil
}

func (s *Service) embedDocs(ctx context.Context, docs []domain.Document) ([][]float32, int, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Title + " " + d.Text
	}

	vectors := make([][]float32, 0, len(texts))
	var tokens int
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		res, err := s.embed.BatchEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, 0, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		vectors = append(vectors, res.Embeddings...)
		tokens += res.TotalTokens
	}
	return vectors, tokens, nil
}
