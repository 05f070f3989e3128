package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store is a vendor storefront. StripeAccountID references its connected account.
type Store struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID         uuid.UUID       `gorm:"column:owner_id;type:uuid;not null"`
	Name            string          `gorm:"column:name;not null"`
	Slug            string          `gorm:"column:slug;not null;uniqueIndex"`
	Description     *string         `gorm:"column:description"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CommissionRate  decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null;default:5.00"`
	StripeAccountID *string         `gorm:"column:stripe_account_id"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// HasPaymentAccount reports whether a connected account reference is set.
func (s Store) HasPaymentAccount() bool {
	return s.StripeAccountID != nil && *s.StripeAccountID != ""
}
