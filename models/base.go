package models

import (
	"time"

	"gorm.io/gorm"
)

// Base is embedded by every table keyed by a generated uuid.
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = newId()
	}
	return nil
}

func (b *Base) GetId() string {
	return b.ID
}

// Ledgered is implemented by every transaction variant that moves a project's cash.
type Ledgered interface {
	SummaryKeys() []SummaryKey
}
