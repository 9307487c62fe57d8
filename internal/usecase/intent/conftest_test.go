package intent

import (
	"context"

	"github.com/timtro-cloud/trobot/internal/domain"
)

type mockListings struct {
	visibleFn  func(ctx context.Context) ([]domain.Listing, error)
	getFn      func(ctx context.Context, id int64) (domain.Listing, error)
	requestsFn func(ctx context.Context, id int64) (int, error)
}

func (m *mockListings) Visible(ctx context.Context) ([]domain.Listing, error) {
	if m.visibleFn != nil {
		return m.visibleFn(ctx)
	}
	return nil, nil
}

func (m *mockListings) Get(ctx context.Context, id int64) (domain.Listing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.Listing{}, domain.ErrListingNotFound
}

func (m *mockListings) Requests24h(ctx context.Context, id int64) (int, error) {
	if m.requestsFn != nil {
		return m.requestsFn(ctx, id)
	}
	return 0, nil
}

func fromSlice(listings []domain.Listing) *mockListings {
	return &mockListings{
		visibleFn: func(context.Context) ([]domain.Listing, error) {
			out := make([]domain.Listing, len(listings))
			copy(out, listings)
			return out, nil
		},
		getFn: func(_ context.Context, id int64) (domain.Listing, error) {
			for _, l := range listings {
				if l.ID == id {
					return l, nil
				}
			}
			return domain.Listing{}, domain.ErrListingNotFound
		},
	}
}
