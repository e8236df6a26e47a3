package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultListingRepository struct {
	DB *gorm.DB
}

func NewDefaultListingRepository(db *gorm.DB) *DefaultListingRepository {
	return &DefaultListingRepository{DB: db}
}

func (r *DefaultListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	listing.Version = 1
	model := mappers.ToGORMListing(listing)
	if err := postgres.Conn(ctx, r.DB).Create(model).Error; err != nil {
		return postgres.TranslateError(err, "create listing %s", listing.ID)
	}
	return nil
}

func (r *DefaultListingRepository) GetByID(ctx context.Context, listingID string) (*domain.Listing, error) {
	var model models.ListingModel
	if err := postgres.Conn(ctx, r.DB).First(&model, "id = ?", listingID).Error; err != nil {
		return nil, postgres.TranslateError(err, "listing %s", listingID)
	}
	return mappers.ToDomainListing(&model), nil
}

// CompareAndSwap writes listing only if the stored row is still at
// expectedVersion, bumping the version on success.
func (r *DefaultListingRepository) CompareAndSwap(ctx context.Context, listing *domain.Listing, expectedVersion int64) error {
	db := postgres.Conn(ctx, r.DB)

	var lockExpiresAt interface{}
	if listing.LockExpiresAt != nil {
		lockExpiresAt = *listing.LockExpiresAt
	}

	result := db.Model(&models.ListingModel{}).
		Where("id = ? AND version = ?", listing.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":           listing.Title,
			"price_cents":     listing.PriceCents,
			"currency":        listing.Currency,
			"status":          string(listing.Status),
			"lock_expires_at": lockExpiresAt,
			"locked_by":       listing.LockedBy,
			"version":         expectedVersion + 1,
			"updated_at":      listing.UpdatedAt,
		})
	if result.Error != nil {
		return postgres.TranslateError(result.Error, "update listing %s", listing.ID)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.ListingModel{}).Where("id = ?", listing.ID).Count(&count).Error; err != nil {
			return postgres.TranslateError(err, "listing %s", listing.ID)
		}
		if count == 0 {
			return fmt.Errorf("listing %s: %w", listing.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("listing %s at version %d: %w", listing.ID, expectedVersion, domain.ErrStaleVersion)
	}

	listing.Version = expectedVersion + 1
	return nil
}

func (r *DefaultListingRepository) FindExpiredLocks(ctx context.Context, now time.Time, limit int) ([]*domain.Listing, error) {
	var listingModels []models.ListingModel
	err := postgres.Conn(ctx, r.DB).
		Where("status = ? AND lock_expires_at <= ?", string(domain.ListingLocked), now).
		Order("lock_expires_at ASC").
		Limit(limit).
		Find(&listingModels).Error
	if err != nil {
		return nil, postgres.TranslateError(err, "find expired locks")
	}
	return toDomainListings(listingModels), nil
}

func (r *DefaultListingRepository) List(ctx context.Context, statuses []domain.ListingStatus, filter domain.ListingFilter) ([]*domain.Listing, error) {
	query := postgres.Conn(ctx, r.DB).Model(&models.ListingModel{})

	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, st := range statuses {
			raw[i] = string(st)
		}
		query = query.Where("status IN ?", raw)
	}
	if filter.SellerID != "" {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.MinPriceCents > 0 {
		query = query.Where("price_cents >= ?", filter.MinPriceCents)
	}
	if filter.MaxPriceCents > 0 {
		query = query.Where("price_cents <= ?", filter.MaxPriceCents)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var listingModels []models.ListingModel
	if err := query.Order("created_at DESC").Find(&listingModels).Error; err != nil {
		return nil, postgres.TranslateError(err, "list listings")
	}
	return toDomainListings(listingModels), nil
}

func toDomainListings(listingModels []models.ListingModel) []*domain.Listing {
	out := make([]*domain.Listing, len(listingModels))
	for i := range listingModels {
		out[i] = mappers.ToDomainListing(&listingModels[i])
	}
	return out
}
