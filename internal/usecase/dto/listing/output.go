package listingdto

import (
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

// ListingOutput is the buyer-facing view of a listing. A lapsed lock is
// reported as available.
type ListingOutput struct {
	ID            string     `json:"id"`
	SellerID      string     `json:"seller_id"`
	Title         string     `json:"title"`
	PriceCents    int64      `json:"price_cents"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Locked        bool       `json:"locked"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func ToListingOutput(l *domain.Listing, now time.Time) *ListingOutput {
	out := &ListingOutput{
		ID:         l.ID,
		SellerID:   l.SellerID,
		Title:      l.Title,
		PriceCents: l.PriceCents,
		Currency:   l.Currency,
		Status:     string(l.EffectiveStatus(now)),
		CreatedAt:  l.CreatedAt,
	}
	if l.LockActive(now) {
		out.Locked = true
		out.LockExpiresAt = l.LockExpiresAt
	}
	return out
}
