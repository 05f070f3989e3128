package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/cart"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	AttachPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error)
}

type storeReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type sessionIndex interface {
	Save(ctx context.Context, row *models.CheckoutSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
}

type sessionGateway interface {
	CreateCheckoutSession(ctx context.Context, req pkgstripe.SessionRequest) (*pkgstripe.Session, error)
}

// Recorder observes checkout activity for metrics.
type Recorder interface {
	IncSessionCreated()
	IncProcessorError(operation string)
	IncSessionLookup(path string)
	IncAccountLookup(outcome string)
}

type SessionService interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResult, error)
}

type SessionServiceParams struct {
	Orders   orderReader
	Stores   storeReader
	Sessions sessionIndex
	Gateway  sessionGateway
	BaseURL  string
	Metrics  Recorder
	Logger   *logger.Logger
}

type sessionService struct {
	orders   orderReader
	stores   storeReader
	sessions sessionIndex
	gateway  sessionGateway
	baseURL  string
	metrics  Recorder
	logg     *logger.Logger
}

func NewSessionService(params SessionServiceParams) (SessionService, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("store reader required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session index required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if strings.TrimSpace(params.BaseURL) == "" {
		return nil, fmt.Errorf("public base url required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &sessionService{
		orders:   params.Orders,
		stores:   params.Stores,
		sessions: params.Sessions,
		gateway:  params.Gateway,
		baseURL:  strings.TrimRight(params.BaseURL, "/"),
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// CreateSession opens a hosted checkout session on the store's connected
// account for a pending order. Amounts come from the persisted order: item
// price snapshots for line items and commission_amount for the application
// fee. The client items only contribute display fields.
func (s *sessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResult, error) {
	req = req.Normalize()
	orderID, err := validateSessionRequest(req)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid").
			WithDetails(map[string]any{"status": order.Status})
	}

	store, err := s.stores.FindByID(ctx, order.StoreID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if !store.HasPaymentAccount() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is not set up for payments yet")
	}
	if *store.StripeAccountID != req.StripeAccountID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination account does not match the order's store")
	}

	lineItems, err := buildLineItems(order, req.Items)
	if err != nil {
		return nil, err
	}
	if req.Commission != nil && !req.Commission.Round(money.Places).Equal(order.CommissionAmount) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"client_commission": req.Commission.String(),
			"order_commission":  order.CommissionAmount.String(),
		})
		s.logg.Warn(logCtx, "client commission differs from the order; using the order's")
	}

	email := req.CustomerEmail
	if email == "" {
		email = order.CustomerEmail
	}
	sess, err := s.gateway.CreateCheckoutSession(ctx, pkgstripe.SessionRequest{
		AccountID:      req.StripeAccountID,
		OrderID:        order.ID.String(),
		CustomerEmail:  email,
		SuccessURL:     fmt.Sprintf("%s/checkout/success?session_id=%s", s.baseURL, pkgstripe.CheckoutSessionIDPlaceholder),
		CancelURL:      s.baseURL + "/checkout/cancel",
		ApplicationFee: money.ToMinorUnits(order.CommissionAmount),
		LineItems:      lineItems,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncProcessorError("create_session")
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncSessionCreated()
	}

	// The session exists from here on; its metadata carries the order id, so
	// write-back failures are logged and reconciliation can still succeed.
	logCtx := s.logg.WithField(ctx, "session_id", sess.ID)
	if err := s.sessions.Save(ctx, &models.CheckoutSession{
		SessionID:       sess.ID,
		OrderID:         order.ID,
		StoreID:         store.ID,
		StripeAccountID: req.StripeAccountID,
	}); err != nil {
		s.logg.Error(logCtx, "failed to index checkout session", err)
	}
	if sess.PaymentIntentID != "" {
		if _, err := s.orders.AttachPaymentIntent(ctx, order.ID, sess.PaymentIntentID); err != nil {
			s.logg.Error(logCtx, "failed to attach payment intent", err)
		}
	}
	s.logg.Info(logCtx, "checkout session created")

	return &CreateSessionResult{SessionID: sess.ID}, nil
}

func validateSessionRequest(req CreateSessionRequest) (uuid.UUID, error) {
	if req.OrderID == "" || len(req.Items) == 0 || req.StripeAccountID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required parameters")
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId must be a valid uuid")
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be at least 1").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if item.Product.Price.IsNegative() {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
	}
	if req.Commission != nil && req.Commission.IsNegative() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "commission must not be negative")
	}
	return orderID, nil
}

// buildLineItems prices each persisted order item and decorates it with the
// client's display fields. Every client item must belong to the order.
func buildLineItems(order *models.Order, items []cart.Item) ([]pkgstripe.LineItem, error) {
	display := make(map[uuid.UUID]cart.ProductSnapshot, len(items))
	for _, item := range items {
		display[item.ProductID] = item.Product
	}
	inOrder := make(map[uuid.UUID]struct{}, len(order.Items))
	out := make([]pkgstripe.LineItem, 0, len(order.Items))
	for _, oi := range order.Items {
		inOrder[oi.ProductID] = struct{}{}
		li := pkgstripe.LineItem{
			Name:       oi.ProductName,
			UnitAmount: money.ToMinorUnits(oi.Price),
			Quantity:   int64(oi.Quantity),
		}
		if snap, ok := display[oi.ProductID]; ok {
			if strings.TrimSpace(snap.Name) != "" {
				li.Name = snap.Name
			}
			li.Description = snap.Description
			li.ImageURL = snap.ImageURL
		}
		out = append(out, li)
	}
	for productID := range display {
		if _, ok := inOrder[productID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item is not part of the order").
				WithDetails(map[string]any{"productId": productID})
		}
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	return out, nil
}
