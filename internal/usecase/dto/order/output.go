package orderdto

import (
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

type OrderOutput struct {
	ID                string    `json:"id"`
	ListingID         string    `json:"listing_id"`
	BuyerID           string    `json:"buyer_id"`
	SellerID          string    `json:"seller_id"`
	Status            string    `json:"status"`
	PriceCents        int64     `json:"price_cents"`
	Currency          string    `json:"currency"`
	PaymentSessionRef string    `json:"payment_session_ref,omitempty"`
	IdempotencyToken  string    `json:"idempotency_token,omitempty"`
	CancelledBy       string    `json:"cancelled_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type TransitionOutput struct {
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func ToOrderOutput(o *domain.Order) *OrderOutput {
	return &OrderOutput{
		ID:                o.ID,
		ListingID:         o.ListingID,
		BuyerID:           o.BuyerID,
		SellerID:          o.SellerID,
		Status:            string(o.Status),
		PriceCents:        o.PriceCents,
		Currency:          o.Currency,
		PaymentSessionRef: o.PaymentSessionRef,
		IdempotencyToken:  o.IdempotencyToken,
		CancelledBy:       o.CancelledBy,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func ToTransitionOutputs(transitions []domain.OrderTransition) []TransitionOutput {
	out := make([]TransitionOutput, len(transitions))
	for i, tr := range transitions {
		out[i] = TransitionOutput{
			From:       string(tr.From),
			To:         string(tr.To),
			Actor:      tr.Actor,
			Reason:     tr.Reason,
			OccurredAt: tr.OccurredAt,
		}
	}
	return out
}
