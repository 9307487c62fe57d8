// Package gencache caches generated answers keyed by the folded query text,
// so repeated questions skip the generation provider while the entry is
// fresh.
package gencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/timtro-cloud/trobot/internal/db"
	"github.com/timtro-cloud/trobot/internal/vntext"
)

// store is the consumer interface for the answer cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache stores generated answers with a TTL.
type Cache struct {
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an answer cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, prefix string, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Cache{
		store:      s,
		prefix:     prefix,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns a cached answer for the query, if one is still fresh.
// Two queries that fold to the same text share an entry.
func (c *Cache) Get(ctx context.Context, query string) (string, bool) {
	data, err := c.store.Get(ctx, c.key(query))
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached answer", zap.Error(err))
		}
		c.incCache("miss")
		return "", false
	}
	c.incCache("hit")
	return string(data), true
}

// Put stores an answer. Failures are logged, not returned: a cache write must
// never fail the chat request it serves.
func (c *Cache) Put(ctx context.Context, query, answer string) {
	if answer == "" {
		return
	}
	if err := c.store.SetWithTTL(ctx, c.key(query), []byte(answer), c.ttl); err != nil {
		c.logger.Warn("Failed to cache answer", zap.Error(err))
	}
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Cache) key(query string) string {
	h := sha256.Sum256([]byte(vntext.Fold(query)))
	return c.prefix + "anscache:" + hex.EncodeToString(h[:])
}
