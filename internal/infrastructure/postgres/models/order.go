package models

import "time"

type OrderModel struct {
	ID                string `gorm:"primaryKey;type:uuid"`
	ListingID         string `gorm:"not null;index"`
	BuyerID           string `gorm:"not null;index"`
	SellerID          string `gorm:"not null;index"`
	Status            string `gorm:"not null"`
	PriceCents        int64  `gorm:"not null"`
	Currency          string `gorm:"size:3;not null"`
	PaymentSessionRef *string
	IdempotencyToken  string
	CancelledBy       string
	Version           int64 `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (OrderModel) TableName() string { return "orders" }

// OrderTransitionModel is the append-only audit trail of order status changes.
type OrderTransitionModel struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID    string `gorm:"type:uuid;not null;index"`
	FromStatus string
	ToStatus   string `gorm:"not null"`
	Actor      string `gorm:"not null"`
	Reason     string
	OccurredAt time.Time `gorm:"not null"`
}

func (OrderTransitionModel) TableName() string { return "order_transitions" }
