package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.orders[order.ID]; ok {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrDuplicateKey)
	}
	// one active order per listing
	if order.Status.Active() {
		for _, o := range r.s.orders {
			if o.ListingID == order.ListingID && o.Status.Active() {
				return fmt.Errorf("active order for listing %s: %w", order.ListingID, domain.ErrDuplicateKey)
			}
		}
	}
	order.Version = 1
	r.s.orders[order.ID] = *order
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	defer r.s.lock(ctx)()

	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return &o, nil
}

func (r *OrderRepository) GetBySessionRef(ctx context.Context, sessionRef string) (*domain.Order, error) {
	defer r.s.lock(ctx)()

	for _, o := range r.s.orders {
		if sessionRef != "" && o.PaymentSessionRef == sessionRef {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("order with session %s: %w", sessionRef, domain.ErrNotFound)
}

func (r *OrderRepository) FindActiveByListingAndBuyer(ctx context.Context, listingID, buyerID string) (*domain.Order, error) {
	defer r.s.lock(ctx)()

	for _, o := range r.s.orders {
		if o.ListingID == listingID && o.BuyerID == buyerID && o.Status.Active() {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("active order for listing %s: %w", listingID, domain.ErrNotFound)
}

func (r *OrderRepository) FindActiveByListing(ctx context.Context, listingID string) ([]*domain.Order, error) {
	defer r.s.lock(ctx)()

	var out []*domain.Order
	for _, o := range r.s.orders {
		if o.ListingID == listingID && o.Status.Active() {
			c := o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	defer r.s.lock(ctx)()

	var out []*domain.Order
	for _, o := range r.s.orders {
		side := (filter.AsBuyer && o.BuyerID == filter.UserID) || (filter.AsSeller && o.SellerID == filter.UserID)
		if !side {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		c := o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *OrderRepository) CompareAndSwap(ctx context.Context, order *domain.Order, expectedVersion int64) error {
	defer r.s.lock(ctx)()

	current, ok := r.s.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("order %s at version %d: %w", order.ID, expectedVersion, domain.ErrStaleVersion)
	}
	order.Version = expectedVersion + 1
	r.s.orders[order.ID] = *order
	return nil
}

func (r *OrderRepository) AppendTransition(ctx context.Context, transition domain.OrderTransition) error {
	defer r.s.lock(ctx)()

	r.s.transitions = append(r.s.transitions, transition)
	return nil
}

func (r *OrderRepository) ListTransitions(ctx context.Context, orderID string) ([]domain.OrderTransition, error) {
	defer r.s.lock(ctx)()

	var out []domain.OrderTransition
	for _, tr := range r.s.transitions {
		if tr.OrderID == orderID {
			out = append(out, tr)
		}
	}
	return out, nil
}
