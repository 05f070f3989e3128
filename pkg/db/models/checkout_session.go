package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutSession indexes a processor session id to the order and connected
// account that own it, so verification does not have to search every account.
type CheckoutSession struct {
	SessionID       string    `gorm:"column:session_id;primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	StoreID         uuid.UUID `gorm:"column:store_id;type:uuid;not null"`
	StripeAccountID string    `gorm:"column:stripe_account_id;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
