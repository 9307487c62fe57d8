// Package session keeps per-conversation exchange logs in Redis lists,
// trimmed to a fixed number of most recent exchanges.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timtro-cloud/trobot/internal/domain"
)

// store is the consumer interface for session logs (ISP).
type store interface {
	LPush(ctx context.Context, key string, values ...[]byte) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo implements usecase chat.SessionRepository.
type Repo struct {
	store  store
	prefix string
	limit  int
	ttl    time.Duration
}

// New creates a session repository keeping at most limit exchanges per
// session. Idle sessions expire after ttl (0 = keep forever).
func New(s store, prefix string, limit int, ttl time.Duration) *Repo {
	if limit <= 0 {
		limit = 5
	}
	return &Repo{store: s, prefix: prefix, limit: limit, ttl: ttl}
}

func (r *Repo) key(sessionID string) string {
	return r.prefix + "session:" + sessionID
}

// Append records an exchange and evicts the oldest beyond the limit.
func (r *Repo) Append(ctx context.Context, sessionID string, ex domain.Exchange) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}

	key := r.key(sessionID)
	if err := r.store.LPush(ctx, key, data); err != nil {
		return fmt.Errorf("lpush session %s: %w", sessionID, err)
	}
	if err := r.store.LTrim(ctx, key, 0, int64(r.limit)-1); err != nil {
		return fmt.Errorf("ltrim session %s: %w", sessionID, err)
	}
	if r.ttl > 0 {
		if err := r.store.Expire(ctx, key, r.ttl, false); err != nil {
			return fmt.Errorf("expire session %s: %w", sessionID, err)
		}
	}
	return nil
}

// History returns the retained exchanges, oldest first. A session that was
// never written yields an empty history, not an error.
func (r *Repo) History(ctx context.Context, sessionID string) (*domain.History, error) {
	rows, err := r.store.LRange(ctx, r.key(sessionID), 0, int64(r.limit)-1)
	if err != nil {
		return nil, fmt.Errorf("lrange session %s: %w", sessionID, err)
	}

	// LPUSH stores newest first; walk backwards to restore order.
	entries := make([]domain.Exchange, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var ex domain.Exchange
		if err := json.Unmarshal(rows[i], &ex); err != nil {
			return nil, fmt.Errorf("unmarshal exchange in session %s: %w", sessionID, err)
		}
		entries = append(entries, ex)
	}
	return domain.HistoryFrom(entries, r.limit), nil
}

// Clear removes the whole session log.
func (r *Repo) Clear(ctx context.Context, sessionID string) error {
	if err := r.store.Del(ctx, r.key(sessionID)); err != nil {
		return fmt.Errorf("del session %s: %w", sessionID, err)
	}
	return nil
}
