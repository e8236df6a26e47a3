package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/txn"
	orderdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/order"
)

const defaultOrderListLimit = 50

type OrderUsecase interface {
	CreateOrder(ctx context.Context, listingID, buyerID string) (*domain.Order, bool, error)
	AttachPaymentSession(ctx context.Context, orderID, sessionRef, idempotencyToken string) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID, sessionRef string) (*domain.Order, bool, error)
	ExpireOrder(ctx context.Context, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, actorID string) (*domain.Order, error)
	RefundOrder(ctx context.Context, orderID, actorID string) (*domain.Order, error)

	GetOrderByID(ctx context.Context, orderID, viewerID string) (*domain.Order, error)
	GetOrderBySession(ctx context.Context, sessionRef, viewerID string) (*domain.Order, error)
	GetOrders(ctx context.Context, input *orderdto.ListOrdersInput) ([]*domain.Order, error)
	GetOrderHistory(ctx context.Context, orderID, viewerID string) ([]domain.OrderTransition, error)
}

type DefaultOrderUsecase struct {
	Tx          txn.Manager
	OrderRepo   domain.OrderRepository
	ListingRepo domain.ListingRepository
	Clock       clock.Clock
	Events      *EventNotifier
	Metrics     *metrics.MarketMetrics

	writer *orderWriter
}

func NewDefaultOrderUsecase(
	tx txn.Manager,
	orderRepo domain.OrderRepository,
	listingRepo domain.ListingRepository,
	clk clock.Clock,
	events *EventNotifier,
	m *metrics.MarketMetrics,
) *DefaultOrderUsecase {
	return &DefaultOrderUsecase{
		Tx:          tx,
		OrderRepo:   orderRepo,
		ListingRepo: listingRepo,
		Clock:       clk,
		Events:      events,
		Metrics:     m,
		writer:      &orderWriter{orders: orderRepo, events: events, metrics: m},
	}
}

// CreateOrder opens a pending order for the buyer holding an active lock on
// the listing. An existing active order for the same buyer and listing is
// returned instead, with created=false.
func (uc *DefaultOrderUsecase) CreateOrder(ctx context.Context, listingID, buyerID string) (*domain.Order, bool, error) {
	now := uc.Clock.Now()

	var (
		order   *domain.Order
		created bool
	)
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		listing, err := uc.ListingRepo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if !listing.HeldBy(buyerID) || !listing.LockActive(now) {
			return fmt.Errorf("%w: listing %s", domain.ErrListingNotLocked, listingID)
		}

		existing, err := uc.OrderRepo.FindActiveByListingAndBuyer(ctx, listingID, buyerID)
		if err == nil {
			order = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		o := domain.NewOrder(uuid.NewString(), listing, buyerID, now)
		if err := uc.OrderRepo.Create(ctx, o); err != nil {
			return err
		}
		if err := uc.OrderRepo.AppendTransition(ctx, domain.OrderTransition{
			OrderID:    o.ID,
			To:         o.Status,
			Actor:      buyerID,
			Reason:     "order created",
			OccurredAt: now,
		}); err != nil {
			return err
		}

		uc.Metrics.OrderTransition("", string(o.Status))
		uc.Events.Notify(ctx, domain.OrderEvent(domain.EventOrderCreated, o, now))
		order, created = o, true
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		// lost a concurrent create for the same lock
		existing, findErr := uc.OrderRepo.FindActiveByListingAndBuyer(ctx, listingID, buyerID)
		if findErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("%w: listing %s already has an active order", domain.ErrListingNotLocked, listingID)
	}
	if err != nil {
		return nil, false, err
	}
	return order, created, nil
}

// AttachPaymentSession records the provider checkout session on a pending
// order. The buyer must still hold an active lock.
func (uc *DefaultOrderUsecase) AttachPaymentSession(ctx context.Context, orderID, sessionRef, idempotencyToken string) (*domain.Order, error) {
	now := uc.Clock.Now()

	var result *domain.Order
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := uc.OrderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if idempotencyToken == "" {
			idempotencyToken = domain.CheckoutIdempotencyKey(order.ID, now)
		}

		next, changed, err := order.AttachSession(sessionRef, idempotencyToken, now)
		if err != nil {
			return err
		}
		if !changed {
			result = order
			return nil
		}

		listing, err := uc.ListingRepo.GetByID(ctx, order.ListingID)
		if err != nil {
			return err
		}
		if !listing.HeldBy(order.BuyerID) || !listing.LockActive(now) {
			return fmt.Errorf("%w: lock on listing %s has lapsed", domain.ErrListingNotLocked, order.ListingID)
		}

		result, err = uc.writer.apply(ctx, order, next, order.BuyerID, "payment session attached", now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPaid moves the order to paid and the listing to sold in one
// transaction. Calling it again on a paid order returns applied=false.
func (uc *DefaultOrderUsecase) MarkPaid(ctx context.Context, orderID, sessionRef string) (*domain.Order, bool, error) {
	now := uc.Clock.Now()

	var (
		result  *domain.Order
		applied bool
	)
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := uc.OrderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		next, changed, err := order.MarkPaid(sessionRef, now)
		if err != nil {
			return err
		}
		if !changed {
			result = order
			return nil
		}

		listing, err := uc.ListingRepo.GetByID(ctx, order.ListingID)
		if err != nil {
			return err
		}
		sold, err := listing.Sell(order.BuyerID, now)
		if err != nil {
			return err
		}
		if err := uc.ListingRepo.CompareAndSwap(ctx, &sold, listing.Version); err != nil {
			return err
		}

		result, err = uc.writer.apply(ctx, order, next, domain.ActorSystem, "payment confirmed", now)
		if err != nil {
			return err
		}
		applied = true
		uc.Metrics.OrderPaid(result.Currency, result.PriceCents)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

// ExpireOrder ends an active order and releases the lock if its buyer still holds it.
func (uc *DefaultOrderUsecase) ExpireOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return uc.closeOrder(ctx, orderID, domain.ActorSystem, "order expired", func(o *domain.Order) (domain.Order, bool, error) {
		return o.Expire(uc.Clock.Now())
	})
}

// CancelOrder is ExpireOrder initiated by the buyer or the seller.
func (uc *DefaultOrderUsecase) CancelOrder(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	return uc.closeOrder(ctx, orderID, actorID, "order cancelled", func(o *domain.Order) (domain.Order, bool, error) {
		return o.Cancel(actorID, uc.Clock.Now())
	})
}

func (uc *DefaultOrderUsecase) closeOrder(
	ctx context.Context,
	orderID, actor, reason string,
	transition func(o *domain.Order) (domain.Order, bool, error),
) (*domain.Order, error) {
	now := uc.Clock.Now()

	var result *domain.Order
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := uc.OrderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		next, changed, err := transition(order)
		if err != nil {
			return err
		}
		if !changed {
			result = order
			return nil
		}

		result, err = uc.writer.apply(ctx, order, next, actor, reason, now)
		if err != nil {
			return err
		}
		return uc.releaseHeldLock(ctx, order.ListingID, order.BuyerID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *DefaultOrderUsecase) releaseHeldLock(ctx context.Context, listingID, buyerID string) error {
	now := uc.Clock.Now()

	listing, err := uc.ListingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !listing.HeldBy(buyerID) {
		return nil
	}
	next, _ := listing.Release(now)
	if err := uc.ListingRepo.CompareAndSwap(ctx, &next, listing.Version); err != nil {
		return err
	}
	uc.Events.Notify(ctx, domain.ListingEvent(domain.EventListingReleased, &next, now))
	return nil
}

// RefundOrder moves a paid order to refunded. The listing stays sold.
func (uc *DefaultOrderUsecase) RefundOrder(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	now := uc.Clock.Now()
	if actorID == "" {
		actorID = domain.ActorSystem
	}

	var result *domain.Order
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := uc.OrderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		next, changed, err := order.Refund(now)
		if err != nil {
			return err
		}
		if !changed {
			result = order
			return nil
		}
		result, err = uc.writer.apply(ctx, order, next, actorID, "charge refunded", now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetOrderByID hides orders from anyone but their buyer and seller. An empty
// viewerID is an internal caller.
func (uc *DefaultOrderUsecase) GetOrderByID(ctx context.Context, orderID, viewerID string) (*domain.Order, error) {
	order, err := uc.OrderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return visibleTo(order, viewerID)
}

func (uc *DefaultOrderUsecase) GetOrderBySession(ctx context.Context, sessionRef, viewerID string) (*domain.Order, error) {
	order, err := uc.OrderRepo.GetBySessionRef(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	return visibleTo(order, viewerID)
}

func (uc *DefaultOrderUsecase) GetOrders(ctx context.Context, input *orderdto.ListOrdersInput) ([]*domain.Order, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	filter := domain.OrderFilter{
		UserID: input.UserID,
		Limit:  input.Limit,
	}
	switch input.As {
	case orderdto.AsBuyer:
		filter.AsBuyer = true
	case orderdto.AsSeller:
		filter.AsSeller = true
	case "":
		filter.AsBuyer, filter.AsSeller = true, true
	default:
		return nil, fmt.Errorf("%w: unknown side %q", domain.ErrInvalidInput, input.As)
	}
	if input.Status != "" {
		status, err := domain.ParseOrderStatus(input.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	if filter.Limit <= 0 || filter.Limit > defaultOrderListLimit {
		filter.Limit = defaultOrderListLimit
	}
	return uc.OrderRepo.List(ctx, filter)
}

func (uc *DefaultOrderUsecase) GetOrderHistory(ctx context.Context, orderID, viewerID string) ([]domain.OrderTransition, error) {
	if _, err := uc.GetOrderByID(ctx, orderID, viewerID); err != nil {
		return nil, err
	}
	return uc.OrderRepo.ListTransitions(ctx, orderID)
}

func visibleTo(order *domain.Order, viewerID string) (*domain.Order, error) {
	if viewerID != "" && !order.IsParticipant(viewerID) {
		return nil, fmt.Errorf("order %s: %w", order.ID, domain.ErrNotFound)
	}
	return order, nil
}
