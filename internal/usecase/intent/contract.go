package intent

import (
	"context"

	"github.com/timtro-cloud/trobot/internal/domain"
)

// ListingSource reads listings for deterministic answers.
type ListingSource interface {
	Visible(ctx context.Context) ([]domain.Listing, error)
	Get(ctx context.Context, id int64) (domain.Listing, error)
	Requests24h(ctx context.Context, id int64) (int, error)
}
