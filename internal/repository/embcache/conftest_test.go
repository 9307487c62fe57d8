package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/timtro-cloud/trobot/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn        func(ctx context.Context, key string) ([]byte, error)
	setFn        func(ctx context.Context, key string, value []byte) error
	setWithTTLFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setWithTTLFn != nil {
		return m.setWithTTLFn(ctx, key, value, ttl)
	}
	return nil
}

// mockEmbedder implements the inner embedder contract for tests.
type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	calls      int
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	var prompt, total int
	for i := range texts {
		embeddings[i] = m.result.Embedding
		prompt += m.result.PromptTokens
		total += m.result.TotalTokens
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: prompt,
		TotalTokens:  total,
	}, nil
}

func newTestCachedEmbedder(t *testing.T, inner embedder) (*CachedEmbedder, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(inner, ms, "test:", 0, nil, zap.NewNop()), ms
}
