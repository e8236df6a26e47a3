package repository

import (
	"context"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultEventLedgerRepository struct {
	DB *gorm.DB
}

func NewDefaultEventLedgerRepository(db *gorm.DB) *DefaultEventLedgerRepository {
	return &DefaultEventLedgerRepository{DB: db}
}

func (r *DefaultEventLedgerRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := postgres.Conn(ctx, r.DB).
		Model(&models.WebhookEventModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, postgres.TranslateError(err, "lookup webhook event %s", eventID)
	}
	return count > 0, nil
}

// Insert relies on the primary key on event_id; a second insert of the same
// id fails with domain.ErrDuplicateKey.
func (r *DefaultEventLedgerRepository) Insert(ctx context.Context, event *domain.WebhookEvent) error {
	model, err := mappers.ToGORMWebhookEvent(event)
	if err != nil {
		return err
	}
	if err := postgres.Conn(ctx, r.DB).Create(model).Error; err != nil {
		return postgres.TranslateError(err, "record webhook event %s", event.EventID)
	}
	return nil
}

// DeleteOlderThan removes at most limit of the oldest records processed before cutoff.
func (r *DefaultEventLedgerRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	db := postgres.Conn(ctx, r.DB)

	oldest := db.Model(&models.WebhookEventModel{}).
		Select("event_id").
		Where("processed_at < ?", cutoff).
		Order("processed_at ASC").
		Limit(limit)

	result := db.Where("event_id IN (?)", oldest).Delete(&models.WebhookEventModel{})
	if result.Error != nil {
		return 0, postgres.TranslateError(result.Error, "purge webhook events")
	}
	return result.RowsAffected, nil
}
