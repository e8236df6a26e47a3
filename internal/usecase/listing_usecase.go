package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaevor/go-nanoid"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/txn"
	listingdto "github.com/LavaJover/lockin-market-service/internal/usecase/dto/listing"
)

const (
	defaultCurrency         = "usd"
	defaultListingListLimit = 50
	maxListingListLimit     = 200
)

// buyerVisibleStatuses: locked listings stay visible and are flagged as such.
var buyerVisibleStatuses = []domain.ListingStatus{domain.ListingAvailable, domain.ListingLocked}

type ListingUsecase interface {
	CreateListing(ctx context.Context, input *listingdto.CreateListingInput) (*domain.Listing, error)
	GetListing(ctx context.Context, listingID string) (*listingdto.ListingOutput, error)
	ListVisible(ctx context.Context, input *listingdto.ListListingsInput) ([]*listingdto.ListingOutput, error)
	UpdatePrice(ctx context.Context, listingID, sellerID string, priceCents int64) (*domain.Listing, error)
	Delist(ctx context.Context, listingID, sellerID string) (*domain.Listing, error)
}

type DefaultListingUsecase struct {
	Tx          txn.Manager
	ListingRepo domain.ListingRepository
	Clock       clock.Clock
	Events      *EventNotifier

	writer *orderWriter
}

func NewDefaultListingUsecase(
	tx txn.Manager,
	listingRepo domain.ListingRepository,
	orderRepo domain.OrderRepository,
	clk clock.Clock,
	events *EventNotifier,
	m *metrics.MarketMetrics,
) *DefaultListingUsecase {
	return &DefaultListingUsecase{
		Tx:          tx,
		ListingRepo: listingRepo,
		Clock:       clk,
		Events:      events,
		writer:      &orderWriter{orders: orderRepo, events: events, metrics: m},
	}
}

func (uc *DefaultListingUsecase) CreateListing(ctx context.Context, input *listingdto.CreateListingInput) (*domain.Listing, error) {
	if input.SellerID == "" {
		return nil, fmt.Errorf("%w: seller id is required", domain.ErrInvalidInput)
	}
	if input.PriceCents <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrInvalidInput)
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	idGenerator, err := nanoid.Standard(21)
	if err != nil {
		return nil, err
	}

	now := uc.Clock.Now()
	listing := &domain.Listing{
		ID:         idGenerator(),
		SellerID:   input.SellerID,
		Title:      strings.TrimSpace(input.Title),
		PriceCents: input.PriceCents,
		Currency:   currency,
		Status:     domain.ListingAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.ListingRepo.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (uc *DefaultListingUsecase) GetListing(ctx context.Context, listingID string) (*listingdto.ListingOutput, error) {
	listing, err := uc.ListingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return listingdto.ToListingOutput(listing, uc.Clock.Now()), nil
}

func (uc *DefaultListingUsecase) ListVisible(ctx context.Context, input *listingdto.ListListingsInput) ([]*listingdto.ListingOutput, error) {
	filter := domain.ListingFilter{
		SellerID:      input.SellerID,
		MinPriceCents: input.MinPriceCents,
		MaxPriceCents: input.MaxPriceCents,
		Limit:         input.Limit,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListingListLimit
	}
	if filter.Limit > maxListingListLimit {
		filter.Limit = maxListingListLimit
	}

	listings, err := uc.ListingRepo.List(ctx, buyerVisibleStatuses, filter)
	if err != nil {
		return nil, err
	}

	now := uc.Clock.Now()
	out := make([]*listingdto.ListingOutput, len(listings))
	for i, l := range listings {
		out[i] = listingdto.ToListingOutput(l, now)
	}
	return out, nil
}

// UpdatePrice never touches existing orders; they carry their own price snapshot.
func (uc *DefaultListingUsecase) UpdatePrice(ctx context.Context, listingID, sellerID string, priceCents int64) (*domain.Listing, error) {
	now := uc.Clock.Now()

	var result *domain.Listing
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		listing, err := uc.ListingRepo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		next, err := listing.Reprice(sellerID, priceCents, now)
		if err != nil {
			return err
		}
		if err := uc.ListingRepo.CompareAndSwap(ctx, &next, listing.Version); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delist takes a listing off the market, cancelling any order in flight on it.
func (uc *DefaultListingUsecase) Delist(ctx context.Context, listingID, sellerID string) (*domain.Listing, error) {
	now := uc.Clock.Now()

	var result *domain.Listing
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		listing, err := uc.ListingRepo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		next, changed, err := listing.Delist(sellerID, now)
		if err != nil {
			return err
		}
		if !changed {
			result = listing
			return nil
		}
		if err := uc.ListingRepo.CompareAndSwap(ctx, &next, listing.Version); err != nil {
			return err
		}
		if _, err := uc.writer.closeActive(ctx, listingID, sellerID, "listing delisted", now); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
