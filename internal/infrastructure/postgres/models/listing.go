package models

import "time"

type ListingModel struct {
	ID            string `gorm:"primaryKey;size:32"`
	SellerID      string `gorm:"not null;index"`
	Title         string
	PriceCents    int64  `gorm:"not null"`
	Currency      string `gorm:"size:3;not null"`
	Status        string `gorm:"not null"`
	LockExpiresAt *time.Time
	LockedBy      string
	Version       int64 `gorm:"not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ListingModel) TableName() string { return "listings" }
