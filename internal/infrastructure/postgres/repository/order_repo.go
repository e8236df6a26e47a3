package repository

import (
	"context"
	"fmt"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DefaultOrderRepository struct {
	DB *gorm.DB
}

func NewDefaultOrderRepository(db *gorm.DB) *DefaultOrderRepository {
	return &DefaultOrderRepository{DB: db}
}

func activeStatuses() []string {
	out := make([]string, len(domain.ActiveOrderStatuses))
	for i, st := range domain.ActiveOrderStatuses {
		out[i] = string(st)
	}
	return out
}

// Create fails with domain.ErrDuplicateKey when the listing already has an
// active order.
func (r *DefaultOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	order.Version = 1
	model := mappers.ToGORMOrder(order)
	if err := postgres.Conn(ctx, r.DB).Create(model).Error; err != nil {
		return postgres.TranslateError(err, "create order %s", order.ID)
	}
	return nil
}

func (r *DefaultOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	// ids are uuids; anything else cannot exist
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}

	var model models.OrderModel
	if err := postgres.Conn(ctx, r.DB).First(&model, "id = ?", orderID).Error; err != nil {
		return nil, postgres.TranslateError(err, "order %s", orderID)
	}
	return mappers.ToDomainOrder(&model), nil
}

func (r *DefaultOrderRepository) GetBySessionRef(ctx context.Context, sessionRef string) (*domain.Order, error) {
	var model models.OrderModel
	if err := postgres.Conn(ctx, r.DB).First(&model, "payment_session_ref = ?", sessionRef).Error; err != nil {
		return nil, postgres.TranslateError(err, "order with session %s", sessionRef)
	}
	return mappers.ToDomainOrder(&model), nil
}

func (r *DefaultOrderRepository) FindActiveByListingAndBuyer(ctx context.Context, listingID, buyerID string) (*domain.Order, error) {
	var model models.OrderModel
	err := postgres.Conn(ctx, r.DB).
		Where("listing_id = ? AND buyer_id = ? AND status IN ?", listingID, buyerID, activeStatuses()).
		First(&model).Error
	if err != nil {
		return nil, postgres.TranslateError(err, "active order for listing %s", listingID)
	}
	return mappers.ToDomainOrder(&model), nil
}

func (r *DefaultOrderRepository) FindActiveByListing(ctx context.Context, listingID string) ([]*domain.Order, error) {
	var orderModels []models.OrderModel
	err := postgres.Conn(ctx, r.DB).
		Where("listing_id = ? AND status IN ?", listingID, activeStatuses()).
		Find(&orderModels).Error
	if err != nil {
		return nil, postgres.TranslateError(err, "active orders for listing %s", listingID)
	}
	return toDomainOrders(orderModels), nil
}

func (r *DefaultOrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	query := postgres.Conn(ctx, r.DB).Model(&models.OrderModel{})

	switch {
	case filter.AsBuyer && filter.AsSeller:
		query = query.Where("buyer_id = ? OR seller_id = ?", filter.UserID, filter.UserID)
	case filter.AsBuyer:
		query = query.Where("buyer_id = ?", filter.UserID)
	case filter.AsSeller:
		query = query.Where("seller_id = ?", filter.UserID)
	default:
		return nil, nil
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var orderModels []models.OrderModel
	if err := query.Order("created_at DESC").Find(&orderModels).Error; err != nil {
		return nil, postgres.TranslateError(err, "list orders")
	}
	return toDomainOrders(orderModels), nil
}

func (r *DefaultOrderRepository) CompareAndSwap(ctx context.Context, order *domain.Order, expectedVersion int64) error {
	db := postgres.Conn(ctx, r.DB)

	var sessionRef interface{}
	if order.PaymentSessionRef != "" {
		sessionRef = order.PaymentSessionRef
	}

	result := db.Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", order.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":              string(order.Status),
			"payment_session_ref": sessionRef,
			"idempotency_token":   order.IdempotencyToken,
			"cancelled_by":        order.CancelledBy,
			"version":             expectedVersion + 1,
			"updated_at":          order.UpdatedAt,
		})
	if result.Error != nil {
		return postgres.TranslateError(result.Error, "update order %s", order.ID)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return postgres.TranslateError(err, "order %s", order.ID)
		}
		if count == 0 {
			return fmt.Errorf("order %s: %w", order.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("order %s at version %d: %w", order.ID, expectedVersion, domain.ErrStaleVersion)
	}

	order.Version = expectedVersion + 1
	return nil
}

func (r *DefaultOrderRepository) AppendTransition(ctx context.Context, transition domain.OrderTransition) error {
	if err := postgres.Conn(ctx, r.DB).Create(mappers.ToGORMTransition(transition)).Error; err != nil {
		return postgres.TranslateError(err, "append transition for order %s", transition.OrderID)
	}
	return nil
}

func (r *DefaultOrderRepository) ListTransitions(ctx context.Context, orderID string) ([]domain.OrderTransition, error) {
	var transitionModels []models.OrderTransitionModel
	err := postgres.Conn(ctx, r.DB).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&transitionModels).Error
	if err != nil {
		return nil, postgres.TranslateError(err, "transitions for order %s", orderID)
	}

	out := make([]domain.OrderTransition, len(transitionModels))
	for i := range transitionModels {
		out[i] = mappers.ToDomainTransition(&transitionModels[i])
	}
	return out, nil
}

func toDomainOrders(orderModels []models.OrderModel) []*domain.Order {
	out := make([]*domain.Order, len(orderModels))
	for i := range orderModels {
		out[i] = mappers.ToDomainOrder(&orderModels[i])
	}
	return out
}
