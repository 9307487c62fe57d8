// Package breaker persists the generation circuit state in Redis so that
// every replica stops calling the provider as soon as one of them hits a
// quota error.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/timtro-cloud/trobot/internal/db"
)

// store is the consumer interface for breaker state (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Repo stores the open-until deadline under a single key whose TTL doubles
// as the cooldown timer.
type Repo struct {
	store  store
	prefix string
	now    func() time.Time
}

// New creates a breaker state repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

func (r *Repo) key() string {
	return r.prefix + "breaker:generation"
}

// Open trips the breaker for the given cooldown. SET NX takes the key when
// the breaker is closed; on a lost race the stored deadline is overwritten
// only when the new one is later, so concurrent replicas never shorten an
// already-running cooldown.
func (r *Repo) Open(ctx context.Context, cooldown time.Duration) error {
	until := r.now().Add(cooldown).Unix()
	value := []byte(strconv.FormatInt(until, 10))

	ok, err := r.store.SetNX(ctx, r.key(), value, cooldown)
	if err != nil {
		return fmt.Errorf("open breaker: %w", err)
	}
	if ok {
		return nil
	}

	if data, err := r.store.Get(ctx, r.key()); err == nil {
		if cur, perr := strconv.ParseInt(string(data), 10, 64); perr == nil && cur >= until {
			return nil
		}
	}
	if err := r.store.SetWithTTL(ctx, r.key(), value, cooldown); err != nil {
		return fmt.Errorf("extend breaker: %w", err)
	}
	return nil
}

// Remaining reports how long the breaker stays open. Zero means closed.
func (r *Repo) Remaining(ctx context.Context) (time.Duration, error) {
	data, err := r.store.Get(ctx, r.key())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read breaker: %w", err)
	}
	until, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse breaker deadline: %w", err)
	}
	remaining := time.Unix(until, 0).Sub(r.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Reset force-closes the breaker.
func (r *Repo) Reset(ctx context.Context) error {
	if err := r.store.Del(ctx, r.key()); err != nil {
		return fmt.Errorf("reset breaker: %w", err)
	}
	return nil
}

// Memory is an in-process breaker store for tests and for running without
// Redis. Not safe for concurrent use across replicas, by definition.
type Memory struct {
	until time.Time
	now   func() time.Time
}

// NewMemory creates an in-process breaker.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// WithClock overrides the time source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Open trips the breaker for the given cooldown, never shortening a
// deadline that is already further out.
func (m *Memory) Open(_ context.Context, cooldown time.Duration) error {
	until := m.now().Add(cooldown)
	if until.After(m.until) {
		m.until = until
	}
	return nil
}

// Remaining reports how long the breaker stays open. Zero means closed.
func (m *Memory) Remaining(_ context.Context) (time.Duration, error) {
	remaining := m.until.Sub(m.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Reset force-closes the breaker.
func (m *Memory) Reset(_ context.Context) error {
	m.until = time.Time{}
	return nil
}
