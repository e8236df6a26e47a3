package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusPendingPayment    OrderStatus = "pending_payment"
	StatusPaymentProcessing OrderStatus = "payment_processing"
	StatusPaid              OrderStatus = "paid"
	StatusCancelled         OrderStatus = "cancelled"
	StatusExpired           OrderStatus = "expired"
	StatusRefunded          OrderStatus = "refunded"
)

// ActorSystem marks transitions driven by the sweeper or by payment events.
const ActorSystem = "system"

// ActiveOrderStatuses are the non-terminal statuses.
var ActiveOrderStatuses = []OrderStatus{StatusPendingPayment, StatusPaymentProcessing}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case StatusPendingPayment, StatusPaymentProcessing, StatusPaid,
		StatusCancelled, StatusExpired, StatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
}

func (s OrderStatus) Active() bool {
	return s == StatusPendingPayment || s == StatusPaymentProcessing
}

func (s OrderStatus) Terminal() bool {
	return !s.Active()
}

// CanTransitionTo is the order state machine.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusPendingPayment:
		switch next {
		case StatusPaymentProcessing, StatusPaid, StatusCancelled, StatusExpired:
			return true
		}
	case StatusPaymentProcessing:
		switch next {
		case StatusPaid, StatusCancelled, StatusExpired:
			return true
		}
	case StatusPaid:
		return next == StatusRefunded
	case StatusCancelled, StatusExpired, StatusRefunded:
		return false
	}
	return false
}

type Order struct {
	ID                string
	ListingID         string
	BuyerID           string
	SellerID          string
	Status            OrderStatus
	PriceCents        int64
	Currency          string
	PaymentSessionRef string
	IdempotencyToken  string
	CancelledBy       string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrderFilter struct {
	UserID string
	// AsBuyer and AsSeller select which side of the order UserID is on.
	AsBuyer  bool
	AsSeller bool
	Status   OrderStatus
	Limit    int
}

// OrderTransition is one row of the order audit trail.
type OrderTransition struct {
	OrderID    string
	From       OrderStatus
	To         OrderStatus
	Actor      string
	Reason     string
	OccurredAt time.Time
}

// NewOrder creates a pending order for the buyer holding the listing lock.
// Price and currency are copied from the listing at this moment.
func NewOrder(id string, listing *Listing, buyerID string, now time.Time) *Order {
	return &Order{
		ID:         id,
		ListingID:  listing.ID,
		BuyerID:    buyerID,
		SellerID:   listing.SellerID,
		Status:     StatusPendingPayment,
		PriceCents: listing.PriceCents,
		Currency:   listing.Currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (o *Order) IsParticipant(userID string) bool {
	return userID != "" && (o.BuyerID == userID || o.SellerID == userID)
}

func (o Order) transition(next OrderStatus, now time.Time) (Order, error) {
	if !o.Status.CanTransitionTo(next) {
		return o, fmt.Errorf("%w: order %s from %s to %s", ErrInvalidTransition, o.ID, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return o, nil
}

// AttachSession moves a pending order into payment processing. Re-attaching the
// session the order already carries is a no-op reported with false.
func (o Order) AttachSession(sessionRef, token string, now time.Time) (Order, bool, error) {
	if sessionRef == "" {
		return o, false, fmt.Errorf("%w: payment session reference is required", ErrInvalidInput)
	}
	if o.Status == StatusPaymentProcessing && o.PaymentSessionRef == sessionRef {
		return o, false, nil
	}
	if o.Status != StatusPendingPayment {
		return o, false, fmt.Errorf("%w: order %s from %s to %s", ErrInvalidTransition, o.ID, o.Status, StatusPaymentProcessing)
	}
	next, err := o.transition(StatusPaymentProcessing, now)
	if err != nil {
		return o, false, err
	}
	next.PaymentSessionRef = sessionRef
	next.IdempotencyToken = token
	return next, true, nil
}

// MarkPaid returns false without error when the order is already paid.
func (o Order) MarkPaid(sessionRef string, now time.Time) (Order, bool, error) {
	if o.Status == StatusPaid {
		return o, false, nil
	}
	next, err := o.transition(StatusPaid, now)
	if err != nil {
		return o, false, err
	}
	if sessionRef != "" {
		next.PaymentSessionRef = sessionRef
	}
	return next, true, nil
}

func (o Order) Expire(now time.Time) (Order, bool, error) {
	if o.Status == StatusExpired {
		return o, false, nil
	}
	next, err := o.transition(StatusExpired, now)
	if err != nil {
		return o, false, err
	}
	return next, true, nil
}

// Cancel requires the actor to be the buyer or the seller.
func (o Order) Cancel(actorID string, now time.Time) (Order, bool, error) {
	if !o.IsParticipant(actorID) {
		return o, false, fmt.Errorf("%w: only buyer or seller can cancel order %s", ErrForbidden, o.ID)
	}
	if o.Status == StatusCancelled {
		return o, false, nil
	}
	next, err := o.transition(StatusCancelled, now)
	if err != nil {
		return o, false, err
	}
	next.CancelledBy = actorID
	return next, true, nil
}

func (o Order) Refund(now time.Time) (Order, bool, error) {
	if o.Status == StatusRefunded {
		return o, false, nil
	}
	next, err := o.transition(StatusRefunded, now)
	if err != nil {
		return o, false, err
	}
	return next, true, nil
}

// CheckoutIdempotencyKey derives the default payment-session token for an
// order, stable within a ten minute window.
func CheckoutIdempotencyKey(orderID string, now time.Time) string {
	return fmt.Sprintf("order_%s_%d", orderID, now.Unix()/600)
}
