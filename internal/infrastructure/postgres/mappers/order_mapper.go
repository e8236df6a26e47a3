package mappers

import (
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/models"
)

func ToDomainOrder(model *models.OrderModel) *domain.Order {
	order := &domain.Order{
		ID:               model.ID,
		ListingID:        model.ListingID,
		BuyerID:          model.BuyerID,
		SellerID:         model.SellerID,
		Status:           domain.OrderStatus(model.Status),
		PriceCents:       model.PriceCents,
		Currency:         model.Currency,
		IdempotencyToken: model.IdempotencyToken,
		CancelledBy:      model.CancelledBy,
		Version:          model.Version,
		CreatedAt:        model.CreatedAt.UTC(),
		UpdatedAt:        model.UpdatedAt.UTC(),
	}
	if model.PaymentSessionRef != nil {
		order.PaymentSessionRef = *model.PaymentSessionRef
	}
	return order
}

func ToGORMOrder(order *domain.Order) *models.OrderModel {
	model := &models.OrderModel{
		ID:               order.ID,
		ListingID:        order.ListingID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		Status:           string(order.Status),
		PriceCents:       order.PriceCents,
		Currency:         order.Currency,
		IdempotencyToken: order.IdempotencyToken,
		CancelledBy:      order.CancelledBy,
		Version:          order.Version,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	// session refs are unique when present
	if order.PaymentSessionRef != "" {
		ref := order.PaymentSessionRef
		model.PaymentSessionRef = &ref
	}
	return model
}

func ToDomainTransition(model *models.OrderTransitionModel) domain.OrderTransition {
	return domain.OrderTransition{
		OrderID:    model.OrderID,
		From:       domain.OrderStatus(model.FromStatus),
		To:         domain.OrderStatus(model.ToStatus),
		Actor:      model.Actor,
		Reason:     model.Reason,
		OccurredAt: model.OccurredAt.UTC(),
	}
}

func ToGORMTransition(t domain.OrderTransition) *models.OrderTransitionModel {
	return &models.OrderTransitionModel{
		OrderID:    t.OrderID,
		FromStatus: string(t.From),
		ToStatus:   string(t.To),
		Actor:      t.Actor,
		Reason:     t.Reason,
		OccurredAt: t.OccurredAt,
	}
}
