package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-backend/internal/cart"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// CreateOrderRequest is the checkout form submitted with the client cart.
type CreateOrderRequest struct {
	Cart            cart.Cart              `json:"cart" validate:"required"`
	CustomerEmail   string                 `json:"customerEmail" validate:"required,email,max=320"`
	CustomerName    string                 `json:"customerName" validate:"required,max=200"`
	CustomerPhone   string                 `json:"customerPhone" validate:"omitempty,max=40"`
	ShippingAddress types.AddressSnapshot  `json:"shippingAddress" validate:"required"`
	BillingAddress  *types.AddressSnapshot `json:"billingAddress" validate:"omitempty"`
}

// ToInput converts the request into a service input for the given customer.
func (r CreateOrderRequest) ToInput(customerID *uuid.UUID) CreateOrderInput {
	input := CreateOrderInput{
		Cart:            r.Cart,
		CustomerID:      customerID,
		CustomerEmail:   strings.TrimSpace(r.CustomerEmail),
		CustomerName:    strings.TrimSpace(r.CustomerName),
		ShippingAddress: r.ShippingAddress,
		BillingAddress:  r.BillingAddress,
	}
	if phone := strings.TrimSpace(r.CustomerPhone); phone != "" {
		input.CustomerPhone = &phone
	}
	return input
}

// CreateOrderInput carries everything needed to persist an order.
type CreateOrderInput struct {
	Cart            cart.Cart
	CustomerID      *uuid.UUID
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   *string
	ShippingAddress types.AddressSnapshot
	// BillingAddress defaults to the shipping address when nil.
	BillingAddress *types.AddressSnapshot
}

// CreateOrderResult is returned to the client so it can open a checkout session.
type CreateOrderResult struct {
	OrderID          uuid.UUID       `json:"orderId"`
	OrderNumber      string          `json:"orderNumber"`
	StoreID          uuid.UUID       `json:"storeId"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	StripeAccountID  string          `json:"stripeAccountId"`
}

// ConfirmPaymentResult reports whether this call moved the order to paid.
type ConfirmPaymentResult struct {
	OrderID      uuid.UUID
	OrderNumber  string
	Transitioned bool
}

type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type OrderDTO struct {
	ID                    uuid.UUID             `json:"id"`
	OrderNumber           string                `json:"orderNumber"`
	StoreID               uuid.UUID             `json:"storeId"`
	Status                enums.OrderStatus     `json:"status"`
	CustomerEmail         string                `json:"customerEmail"`
	CustomerName          string                `json:"customerName"`
	CustomerPhone         *string               `json:"customerPhone,omitempty"`
	TotalAmount           decimal.Decimal       `json:"totalAmount"`
	CommissionAmount      decimal.Decimal       `json:"commissionAmount"`
	StripePaymentIntentID *string               `json:"stripePaymentIntentId,omitempty"`
	ShippingAddress       types.AddressSnapshot `json:"shippingAddress"`
	BillingAddress        types.AddressSnapshot `json:"billingAddress"`
	PaidAt                *time.Time            `json:"paidAt,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	Items                 []OrderItemDTO        `json:"items"`
}

// FromModel maps an order row with its items into the API shape.
func FromModel(m *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                    m.ID,
		OrderNumber:           m.OrderNumber,
		StoreID:               m.StoreID,
		Status:                m.Status,
		CustomerEmail:         m.CustomerEmail,
		CustomerName:          m.CustomerName,
		CustomerPhone:         m.CustomerPhone,
		TotalAmount:           m.TotalAmount,
		CommissionAmount:      m.CommissionAmount,
		StripePaymentIntentID: m.StripePaymentIntentID,
		ShippingAddress:       m.ShippingAddress,
		BillingAddress:        m.BillingAddress,
		PaidAt:                m.PaidAt,
		CreatedAt:             m.CreatedAt,
		Items:                 make([]OrderItemDTO, 0, len(m.Items)),
	}
	for _, item := range m.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Total:       item.Total,
		})
	}
	return dto
}
