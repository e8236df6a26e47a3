package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
	orderdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/order"
)

type MarketHandler struct {
	listings usecase.ListingUsecase
	locks    usecase.LockUsecase
	orders   usecase.OrderUsecase
	sweeper  usecase.SweeperUsecase
	ledger   usecase.LedgerUsecase
}

func NewMarketHandler(
	listings usecase.ListingUsecase,
	locks usecase.LockUsecase,
	orders usecase.OrderUsecase,
	sweeper usecase.SweeperUsecase,
	ledger usecase.LedgerUsecase,
) *MarketHandler {
	return &MarketHandler{
		listings: listings,
		locks:    locks,
		orders:   orders,
		sweeper:  sweeper,
		ledger:   ledger,
	}
}

func (h *MarketHandler) GetListing(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	out, err := h.listings.GetListing(ctx, field(r, "listing_id"))
	if err != nil {
		return nil, toStatus("GetListing", err)
	}
	return encode("GetListing", out)
}

func (h *MarketHandler) AcquireLock(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	listingID := field(r, "listing_id")
	expiresAt, err := h.locks.Acquire(ctx, listingID, callerID(ctx))
	if err != nil {
		return nil, toStatus("AcquireLock", err)
	}
	return encode("AcquireLock", map[string]interface{}{
		"listing_id": listingID,
		"expires_at": expiresAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *MarketHandler) ReleaseLock(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	if err := h.locks.Release(ctx, field(r, "listing_id"), callerID(ctx)); err != nil {
		return nil, toStatus("ReleaseLock", err)
	}
	return &structpb.Struct{}, nil
}

func (h *MarketHandler) CreateOrder(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	order, created, err := h.orders.CreateOrder(ctx, field(r, "listing_id"), callerID(ctx))
	if err != nil {
		return nil, toStatus("CreateOrder", err)
	}
	return encode("CreateOrder", map[string]interface{}{
		"created": created,
		"order":   orderdto.ToOrderOutput(order),
	})
}

func (h *MarketHandler) GetOrder(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	order, err := h.orders.GetOrderByID(ctx, field(r, "order_id"), callerID(ctx))
	if err != nil {
		return nil, toStatus("GetOrder", err)
	}
	return encode("GetOrder", orderdto.ToOrderOutput(order))
}

func (h *MarketHandler) CancelOrder(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	order, err := h.orders.CancelOrder(ctx, field(r, "order_id"), callerID(ctx))
	if err != nil {
		return nil, toStatus("CancelOrder", err)
	}
	return encode("CancelOrder", orderdto.ToOrderOutput(order))
}

func (h *MarketHandler) RefundOrder(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	order, err := h.orders.RefundOrder(ctx, field(r, "order_id"), callerID(ctx))
	if err != nil {
		return nil, toStatus("RefundOrder", err)
	}
	return encode("RefundOrder", orderdto.ToOrderOutput(order))
}

func (h *MarketHandler) RunSweep(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	report, err := h.sweeper.SweepExpired(ctx, usecase.TriggerManual)
	if err != nil {
		return nil, toStatus("RunSweep", err)
	}
	return encode("RunSweep", report)
}

// PurgeEvents accepts an optional "older_than" Go duration string.
func (h *MarketHandler) PurgeEvents(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	var age time.Duration
	if raw := field(r, "older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, toStatus("PurgeEvents", fmt.Errorf("%w: older_than must be a positive duration", domain.ErrInvalidInput))
		}
		age = d
	}
	deleted, err := h.ledger.PurgeOlderThan(ctx, age)
	if err != nil {
		return nil, toStatus("PurgeEvents", err)
	}
	return structpb.NewStruct(map[string]interface{}{"deleted": deleted})
}

func field(r *structpb.Struct, name string) string {
	if r == nil {
		return ""
	}
	return r.GetFields()[name].GetStringValue()
}

// encode converts a JSON-tagged value into a Struct.
func encode(method string, v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, toStatus(method, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, toStatus(method, err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, toStatus(method, err)
	}
	return s, nil
}
