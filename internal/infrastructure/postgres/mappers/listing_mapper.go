package mappers

import (
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/models"
)

func ToDomainListing(model *models.ListingModel) *domain.Listing {
	listing := &domain.Listing{
		ID:         model.ID,
		SellerID:   model.SellerID,
		Title:      model.Title,
		PriceCents: model.PriceCents,
		Currency:   model.Currency,
		Status:     domain.ListingStatus(model.Status),
		LockedBy:   model.LockedBy,
		Version:    model.Version,
		CreatedAt:  model.CreatedAt.UTC(),
		UpdatedAt:  model.UpdatedAt.UTC(),
	}
	if model.LockExpiresAt != nil {
		exp := model.LockExpiresAt.UTC()
		listing.LockExpiresAt = &exp
	}
	return listing
}

func ToGORMListing(listing *domain.Listing) *models.ListingModel {
	return &models.ListingModel{
		ID:            listing.ID,
		SellerID:      listing.SellerID,
		Title:         listing.Title,
		PriceCents:    listing.PriceCents,
		Currency:      listing.Currency,
		Status:        string(listing.Status),
		LockExpiresAt: listing.LockExpiresAt,
		LockedBy:      listing.LockedBy,
		Version:       listing.Version,
		CreatedAt:     listing.CreatedAt,
		UpdatedAt:     listing.UpdatedAt,
	}
}
