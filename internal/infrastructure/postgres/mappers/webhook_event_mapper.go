package mappers

import (
	"encoding/json"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/postgres/models"
)

func ToGORMWebhookEvent(event *domain.WebhookEvent) (*models.WebhookEventModel, error) {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return &models.WebhookEventModel{
		EventID:     event.EventID,
		EventType:   event.EventType,
		ProcessedAt: event.ProcessedAt,
		Metadata:    string(raw),
	}, nil
}

func ToDomainWebhookEvent(model *models.WebhookEventModel) (*domain.WebhookEvent, error) {
	event := &domain.WebhookEvent{
		EventID:     model.EventID,
		EventType:   model.EventType,
		ProcessedAt: model.ProcessedAt.UTC(),
	}
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &event.Metadata); err != nil {
			return nil, err
		}
	}
	return event, nil
}
