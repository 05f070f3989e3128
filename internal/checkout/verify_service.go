package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

const defaultSearchConcurrency = 4

type accountLister interface {
	ListWithPaymentAccount(ctx context.Context) ([]models.Store, error)
}

type sessionRetriever interface {
	GetCheckoutSession(ctx context.Context, accountID, sessionID string) (*pkgstripe.Session, error)
}

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string, source enums.ConfirmationSource) (*orders.ConfirmPaymentResult, error)
}

type orderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type VerificationService interface {
	Verify(ctx context.Context, sessionID string) (*VerifyResult, error)
}

type VerificationServiceParams struct {
	Orders            orderLookup
	Confirmer         paymentConfirmer
	Stores            accountLister
	Sessions          sessionIndex
	Gateway           sessionRetriever
	SearchConcurrency int
	Metrics           Recorder
	Logger            *logger.Logger
}

type verificationService struct {
	orders      orderLookup
	confirmer   paymentConfirmer
	stores      accountLister
	sessions    sessionIndex
	gateway     sessionRetriever
	concurrency int
	metrics     Recorder
	logg        *logger.Logger
}

func NewVerificationService(params VerificationServiceParams) (VerificationService, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order lookup required")
	}
	if params.Confirmer == nil {
		return nil, fmt.Errorf("payment confirmer required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("account lister required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session index required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	concurrency := params.SearchConcurrency
	if concurrency <= 0 {
		concurrency = defaultSearchConcurrency
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &verificationService{
		orders:      params.Orders,
		confirmer:   params.Confirmer,
		stores:      params.Stores,
		sessions:    params.Sessions,
		gateway:     params.Gateway,
		concurrency: concurrency,
		metrics:     params.Metrics,
		logg:        logg,
	}, nil
}

// Verify resolves a returning session to its order and confirms payment when
// the processor reports it paid.
func (s *verificationService) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing session id")
	}
	ctx = s.logg.WithField(ctx, "session_id", sessionID)

	sess, err := s.locate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	orderID, err := uuid.Parse(sess.OrderID())
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if sess.IsPaid() {
		if _, err := s.confirmer.ConfirmPayment(ctx, order.ID, sess.PaymentIntentID, enums.ConfirmationSourceVerification); err != nil {
			return nil, err
		}
	}
	return &VerifyResult{Success: true, OrderNumber: order.OrderNumber}, nil
}

// locate uses the session index and falls back to probing every connected account.
func (s *verificationService) locate(ctx context.Context, sessionID string) (*pkgstripe.Session, error) {
	row, err := s.sessions.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		s.recordLookup("index")
		sess, err := s.gateway.GetCheckoutSession(ctx, row.StripeAccountID, sessionID)
		if err != nil {
			if pkgstripe.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
			}
			s.recordProcessorError("retrieve_session")
			return nil, err
		}
		return sess, nil
	case !db.IsNotFound(err):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "session index lookup failed; searching accounts")
	}

	stores, err := s.stores.ListWithPaymentAccount(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list connected accounts")
	}
	if len(stores) == 0 {
		s.recordLookup("miss")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no connected accounts found")
	}

	sess, store := s.search(ctx, sessionID, stores)
	if sess == nil {
		s.recordLookup("miss")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	s.recordLookup("search")

	if orderID, err := uuid.Parse(sess.OrderID()); err == nil {
		if err := s.sessions.Save(ctx, &models.CheckoutSession{
			SessionID:       sess.ID,
			OrderID:         orderID,
			StoreID:         store.ID,
			StripeAccountID: sess.AccountID,
		}); err != nil {
			s.logg.Error(ctx, "failed to backfill session index", err)
		}
	}
	return sess, nil
}

// search queries accounts with bounded concurrency; the first successful
// retrieval wins. A failing account counts as a miss and is logged.
func (s *verificationService) search(ctx context.Context, sessionID string, stores []models.Store) (*pkgstripe.Session, *models.Store) {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu         sync.Mutex
		found      *pkgstripe.Session
		owner      *models.Store
		accountErr error
	)

	g, gctx := errgroup.WithContext(searchCtx)
	g.SetLimit(s.concurrency)
	for i := range stores {
		store := &stores[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sess, err := s.gateway.GetCheckoutSession(gctx, *store.StripeAccountID, sessionID)
			if err != nil {
				if pkgstripe.IsNotFound(err) {
					s.recordAccountLookup("miss")
				} else if gctx.Err() == nil {
					s.recordAccountLookup("error")
					s.recordProcessorError("retrieve_session")
					mu.Lock()
					accountErr = multierr.Append(accountErr, err)
					mu.Unlock()
				}
				return nil
			}
			s.recordAccountLookup("hit")
			mu.Lock()
			if found == nil {
				found = sess
				owner = store
				cancel()
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if found != nil {
		return found, owner
	}
	if accountErr != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"failed_accounts": len(multierr.Errors(accountErr)),
			"error":           accountErr.Error(),
		})
		s.logg.Warn(logCtx, "connected account search had failing accounts")
	}
	return nil, nil
}

func (s *verificationService) recordLookup(path string) {
	if s.metrics != nil {
		s.metrics.IncSessionLookup(path)
	}
}

func (s *verificationService) recordAccountLookup(outcome string) {
	if s.metrics != nil {
		s.metrics.IncAccountLookup(outcome)
	}
}

func (s *verificationService) recordProcessorError(op string) {
	if s.metrics != nil {
		s.metrics.IncProcessorError(op)
	}
}
