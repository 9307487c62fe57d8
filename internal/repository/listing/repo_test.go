package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timtro-cloud/trobot/internal/domain"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestRepo() (*Repo, *memStore) {
	s := newMemStore()
	r := New(s, "test:").WithClock(func() time.Time { return fixedNow })
	return r, s
}

func sample(id int64) domain.Listing {
	return domain.Listing{
		ID:        id,
		Title:     "Phòng trọ gần chợ",
		Category:  domain.CategoryRoom,
		PriceMil:  3.5,
		AreaM2:    20,
		Province:  "Thành phố Hồ Chí Minh",
		Approved:  true,
		CreatedAt: fixedNow.Add(-24 * time.Hour),
		ExpiresAt: fixedNow.Add(30 * 24 * time.Hour),
	}
}

func TestSaveAndGet(t *testing.T) {
	r, _ := newTestRepo()
	ctx := context.Background()

	want := sample(1)
	if err := r.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := r.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != want.ID || got.Title != want.Title || got.PriceMil != want.PriceMil {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newTestRepo()

	_, err := r.Get(context.Background(), 999)
	if !errors.Is(err, domain.ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestVisible_FiltersHiddenListings(t *testing.T) {
	r, _ := newTestRepo()
	ctx := context.Background()

	visible := sample(1)

	unapproved := sample(2)
	unapproved.Approved = false

	rented := sample(3)
	rented.Rented = true

	deleted := sample(4)
	deleted.Deleted = true

	expired := sample(5)
	expired.ExpiresAt = fixedNow.Add(-time.Hour)

	for _, l := range []domain.Listing{visible, unapproved, rented, deleted, expired} {
		if err := r.Save(ctx, l); err != nil {
			t.Fatalf("save %d: %v", l.ID, err)
		}
	}

	got, err := r.Visible(ctx)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("visible = %v, want only listing 1", got)
	}
}

func TestAll_SkipsCounterKeys(t *testing.T) {
	r, _ := newTestRepo()
	ctx := context.Background()

	if err := r.Save(ctx, sample(1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.TouchRequests(ctx, 1); err != nil {
		t.Fatalf("touch: %v", err)
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("all = %v, want 1 listing", all)
	}
}

func TestRequests24h(t *testing.T) {
	r, _ := newTestRepo()
	ctx := context.Background()

	n, err := r.Requests24h(ctx, 7)
	if err != nil || n != 0 {
		t.Fatalf("fresh counter = %d, %v; want 0, nil", n, err)
	}

	for i := 0; i < 3; i++ {
		if err := r.TouchRequests(ctx, 7); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}

	n, err = r.Requests24h(ctx, 7)
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if n != 3 {
		t.Errorf("counter = %d, want 3", n)
	}
}
