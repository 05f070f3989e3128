package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/cart"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

const (
	orderNumberAttempts   = 3
	orderNumberRetryDelay = 5 * time.Millisecond
)

// Service defines order creation, reads and payment confirmation.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	Get(ctx context.Context, orderID, customerID uuid.UUID) (*OrderDTO, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string, source enums.ConfirmationSource) (*ConfirmPaymentResult, error)
}

// ConfirmationRecorder observes payment confirmations for metrics.
type ConfirmationRecorder interface {
	IncConfirmation(source, outcome string)
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Stores   storeReader
	Products productReader
	Outbox   outbox.Emitter
	Metrics  ConfirmationRecorder
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	stores   storeReader
	products productReader
	outbox   outbox.Emitter
	metrics  ConfirmationRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("store reader required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		stores:   params.Stores,
		products: params.Products,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     logg,
		now:      clock,
	}, nil
}

// Create validates the cart against the live catalog and persists the order,
// its items and an order_created event in one transaction.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	c := input.Cart

	store, err := s.stores.FindByID(ctx, c.StoreID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if !store.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	if !store.HasPaymentAccount() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is not set up for payments yet")
	}
	if !money.ValidRate(store.CommissionRate) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store commission rate out of range")
	}

	catalog, err := s.products.FindForStore(ctx, store.ID, c.ProductIDs())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	items := make([]models.OrderItem, 0, len(c.Items))
	subtotal := decimal.Zero
	for _, line := range c.Items {
		product, ok := catalog[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available from this store").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		total := money.LineTotal(product.Price, line.Quantity)
		subtotal = subtotal.Add(total)
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Price,
			Total:       total,
		})
	}
	commission := money.Commission(subtotal, store.CommissionRate)

	shipping := input.ShippingAddress.Normalize()
	billing := shipping
	if input.BillingAddress != nil && !input.BillingAddress.IsZero() {
		billing = input.BillingAddress.Normalize()
	}

	// A colliding order number is regenerated; anything else fails the call.
	var order *models.Order
	numbering := retry.WithMaxRetries(orderNumberAttempts-1, retry.NewConstant(orderNumberRetryDelay))
	err = retry.Do(ctx, numbering, func(ctx context.Context) error {
		number, err := NewOrderNumber(s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order = &models.Order{
			ID:               uuid.New(),
			OrderNumber:      number,
			CustomerID:       input.CustomerID,
			StoreID:          store.ID,
			Status:           enums.OrderStatusPending,
			CustomerEmail:    input.CustomerEmail,
			CustomerName:     input.CustomerName,
			CustomerPhone:    input.CustomerPhone,
			TotalAmount:      subtotal,
			CommissionAmount: commission,
			ShippingAddress:  shipping,
			BillingAddress:   billing,
			Items:            cloneItems(items),
		}
		err = s.persist(ctx, order, input.CustomerID)
		if err == nil {
			return nil
		}
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		if db.IsUniqueViolation(err, "ux_orders_order_number") {
			return retry.RetryableError(wrapped)
		}
		return wrapped
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(s.logg.WithStoreID(ctx, store.ID.String()), order.ID.String())
	s.logg.Info(logCtx, "order created")

	return &CreateOrderResult{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		StoreID:          store.ID,
		TotalAmount:      order.TotalAmount,
		CommissionAmount: order.CommissionAmount,
		StripeAccountID:  *store.StripeAccountID,
	}, nil
}

// persist writes the order, its items and the order_created event in one
// transaction.
func (s *service) persist(ctx context.Context, order *models.Order, actor *uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.Actor{UserID: actor},
			Data: payloads.OrderCreatedEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				StoreID:          order.StoreID,
				CustomerID:       order.CustomerID,
				TotalAmount:      order.TotalAmount,
				CommissionAmount: order.CommissionAmount,
				ItemCount:        len(order.Items),
			},
		})
	})
}

func (s *service) Get(ctx context.Context, orderID, customerID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindForCustomer(ctx, orderID, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := FromModel(order)
	return &dto, nil
}

// ConfirmPayment moves an order to paid at most once. Repeated or concurrent
// calls for a paid order succeed without a second transition or event.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string, source enums.ConfirmationSource) (*ConfirmPaymentResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var result *ConfirmPaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		paidAt := s.now().UTC()

		transitioned, err := repo.MarkPaid(ctx, orderID, paidAt)
		if err != nil {
			return err
		}
		if paymentIntentID != "" {
			if _, err := repo.AttachPaymentIntent(ctx, orderID, paymentIntentID); err != nil {
				return err
			}
		}

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		result = &ConfirmPaymentResult{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			Transitioned: transitioned,
		}
		if !transitioned {
			return nil
		}

		intentID := paymentIntentID
		if intentID == "" && order.StripePaymentIntentID != nil {
			intentID = *order.StripePaymentIntentID
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.Actor{System: string(source)},
			OccurredAt:    paidAt,
			Data: payloads.OrderPaidEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				StoreID:          order.StoreID,
				TotalAmount:      order.TotalAmount,
				CommissionAmount: order.CommissionAmount,
				PaymentIntentID:  intentID,
				Source:           string(source),
				PaidAt:           paidAt,
			},
		})
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment")
	}

	outcome := "already_paid"
	if result.Transitioned {
		outcome = "transitioned"
		s.logg.Info(s.logg.WithField(ctx, "source", source), "order marked paid")
	}
	if s.metrics != nil {
		s.metrics.IncConfirmation(string(source), outcome)
	}
	return result, nil
}

func validateCreateInput(input CreateOrderInput) error {
	if err := input.Cart.Validate(); err != nil {
		if errors.Is(err, cart.ErrEmpty) {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if input.CustomerEmail == "" || input.CustomerName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name and email are required")
	}
	if input.ShippingAddress.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	return nil
}

func cloneItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	copy(out, items)
	return out
}
