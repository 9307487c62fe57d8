// Package listing stores rental listings as JSON values in Redis and serves
// the filtered queries the intent engine runs against them.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/timtro-cloud/trobot/internal/db"
	"github.com/timtro-cloud/trobot/internal/domain"
)

// store is the consumer interface for listings (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo implements usecase listing repositories.
type Repo struct {
	store  store
	prefix string
	now    func() time.Time
}

// New creates a listing repository. prefix namespaces all keys.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

func (r *Repo) key(id int64) string {
	return fmt.Sprintf("%slisting:%d", r.prefix, id)
}

func (r *Repo) requestsKey(id int64) string {
	return fmt.Sprintf("%slisting:%d:req24h", r.prefix, id)
}

// Save stores a listing.
func (r *Repo) Save(ctx context.Context, l domain.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal listing %d: %w", l.ID, err)
	}
	if err := r.store.Set(ctx, r.key(l.ID), data); err != nil {
		return fmt.Errorf("set listing %d: %w", l.ID, err)
	}
	return nil
}

// Get retrieves a listing by id.
func (r *Repo) Get(ctx context.Context, id int64) (domain.Listing, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing %d: %w", id, err)
	}
	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.Listing{}, fmt.Errorf("unmarshal listing %d: %w", id, err)
	}
	return l, nil
}

// Delete removes a listing.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("del listing %d: %w", id, err)
	}
	return nil
}

// All returns every stored listing, visible or not.
func (r *Repo) All(ctx context.Context) ([]domain.Listing, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"listing:*")
	if err != nil {
		return nil, fmt.Errorf("scan listings: %w", err)
	}

	listings := make([]domain.Listing, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue // deleted between scan and get
			}
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		var l domain.Listing
		if err := json.Unmarshal(data, &l); err != nil {
			continue // skip malformed entries, counters and other suffix keys
		}
		if l.ID == 0 {
			continue
		}
		listings = append(listings, l)
	}

	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

// Visible returns all listings a renter may see right now.
func (r *Repo) Visible(ctx context.Context) ([]domain.Listing, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	visible := all[:0]
	for _, l := range all {
		if l.Visible(now) {
			visible = append(visible, l)
		}
	}
	return visible, nil
}

// TouchRequests bumps the 24h request counter for a listing. The counter key
// expires a day after its first increment.
func (r *Repo) TouchRequests(ctx context.Context, id int64) error {
	key := r.requestsKey(id)
	if err := r.store.IncrBy(ctx, key, 1); err != nil {
		return fmt.Errorf("incr requests %d: %w", id, err)
	}
	if err := r.store.Expire(ctx, key, 24*time.Hour, true); err != nil {
		return fmt.Errorf("expire requests %d: %w", id, err)
	}
	return nil
}

// Requests24h reads the rolling request counter for a listing.
func (r *Repo) Requests24h(ctx context.Context, id int64) (int, error) {
	data, err := r.store.Get(ctx, r.requestsKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get requests %d: %w", id, err)
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("parse requests %d: %w", id, err)
	}
	return n, nil
}
