package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted when an order and its items are persisted.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID       `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	StoreID          uuid.UUID       `json:"store_id"`
	CustomerID       *uuid.UUID      `json:"customer_id,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	ItemCount        int             `json:"item_count"`
}

// OrderPaidEvent is emitted once per order, on the pending -> paid transition.
type OrderPaidEvent struct {
	OrderID          uuid.UUID       `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	StoreID          uuid.UUID       `json:"store_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	PaymentIntentID  string          `json:"payment_intent_id,omitempty"`
	Source           string          `json:"source"`
	PaidAt           time.Time       `json:"paid_at"`
}

// StorePaymentAccountSyncedEvent is emitted when a store's connected account
// reference changes.
type StorePaymentAccountSyncedEvent struct {
	StoreID           uuid.UUID `json:"store_id"`
	StripeAccountID   string    `json:"stripe_account_id"`
	PreviousAccountID string    `json:"previous_account_id,omitempty"`
	Source            string    `json:"source"`
}
