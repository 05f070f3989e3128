package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// Order is a customer's purchase from a single store.
// CommissionAmount is fixed at creation and never recomputed.
type Order struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber           string                `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	CustomerID            *uuid.UUID            `gorm:"column:customer_id;type:uuid"`
	StoreID               uuid.UUID             `gorm:"column:store_id;type:uuid;not null"`
	Status                enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	CustomerEmail         string                `gorm:"column:customer_email;not null"`
	CustomerName          string                `gorm:"column:customer_name;not null"`
	CustomerPhone         *string               `gorm:"column:customer_phone"`
	TotalAmount           decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CommissionAmount      decimal.Decimal       `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	StripePaymentIntentID *string               `gorm:"column:stripe_payment_intent_id"`
	ShippingAddress       types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress        types.AddressSnapshot `gorm:"column:billing_address;type:jsonb;not null"`
	PaidAt                *time.Time            `gorm:"column:paid_at"`
	Items                 []OrderItem           `gorm:"foreignKey:OrderID"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem snapshots the product price at order time.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
