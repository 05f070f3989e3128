package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-backend/internal/cart"
)

// CreateSessionRequest is the body of POST /checkout. Commission is accepted
// for wire compatibility with existing clients; the fee is always taken from
// the order's persisted commission_amount.
type CreateSessionRequest struct {
	OrderID         string           `json:"orderId" validate:"required,uuid"`
	Items           []cart.Item      `json:"items" validate:"required,min=1,dive"`
	CustomerEmail   string           `json:"customerEmail" validate:"omitempty,email"`
	StripeAccountID string           `json:"stripeAccountId" validate:"required"`
	Commission      *decimal.Decimal `json:"commission"`
}

// Normalize trims free-form fields.
func (r CreateSessionRequest) Normalize() CreateSessionRequest {
	r.OrderID = strings.TrimSpace(r.OrderID)
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.StripeAccountID = strings.TrimSpace(r.StripeAccountID)
	return r
}

type CreateSessionResult struct {
	SessionID string `json:"sessionId"`
}

type VerifyResult struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"orderNumber"`
}
