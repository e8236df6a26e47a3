package models

import "time"

type WebhookEventModel struct {
	EventID     string    `gorm:"primaryKey"`
	EventType   string    `gorm:"not null"`
	ProcessedAt time.Time `gorm:"not null;index"`
	Metadata    string    `gorm:"type:jsonb"`
}

func (WebhookEventModel) TableName() string { return "webhook_events" }
