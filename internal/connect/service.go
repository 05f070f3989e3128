// Package connect provisions connected payment accounts for stores and hands
// back onboarding links.
package connect

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

const syncSource = "provisioning"

type storeReader interface {
	FindOwnedBy(ctx context.Context, id, ownerID uuid.UUID) (*models.Store, error)
}

type accountSyncer interface {
	SyncPaymentAccount(ctx context.Context, storeID uuid.UUID, accountID, source string) (bool, error)
}

type gateway interface {
	CreateExpressAccount(ctx context.Context, req pkgstripe.AccountRequest) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
}

type errorRecorder interface {
	IncProcessorError(operation string)
}

// OnboardInput identifies the store and the owner requesting onboarding.
type OnboardInput struct {
	StoreID uuid.UUID
	OwnerID uuid.UUID
	Email   string
}

type OnboardResult struct {
	URL       string `json:"url"`
	AccountID string `json:"-"`
	Created   bool   `json:"-"`
}

type Service interface {
	Onboard(ctx context.Context, input OnboardInput) (*OnboardResult, error)
}

type ServiceParams struct {
	Stores  storeReader
	Syncer  accountSyncer
	Gateway gateway
	BaseURL string
	Metrics errorRecorder
	Logger  *logger.Logger
}

type service struct {
	stores  storeReader
	syncer  accountSyncer
	gateway gateway
	baseURL string
	metrics errorRecorder
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Stores == nil {
		return nil, fmt.Errorf("store reader required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("account syncer required")
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
	return &service{
		stores:  params.Stores,
		syncer:  params.Syncer,
		gateway: params.Gateway,
		baseURL: strings.TrimRight(params.BaseURL, "/"),
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// Onboard creates the store's connected account when it has none, then
// returns a fresh onboarding link. Links are short-lived so one is minted on
// every call.
func (s *service) Onboard(ctx context.Context, input OnboardInput) (*OnboardResult, error) {
	email := strings.TrimSpace(input.Email)
	if input.StoreID == uuid.Nil || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and email are required")
	}
	ctx = s.logg.WithStoreID(ctx, input.StoreID.String())

	store, err := s.stores.FindOwnedBy(ctx, input.StoreID, input.OwnerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}

	result := &OnboardResult{}
	if store.HasPaymentAccount() {
		result.AccountID = *store.StripeAccountID
	} else {
		accountID, err := s.gateway.CreateExpressAccount(ctx, pkgstripe.AccountRequest{
			StoreID: store.ID.String(),
			Email:   email,
		})
		if err != nil {
			s.recordError("create_account")
			return nil, err
		}
		if _, err := s.syncer.SyncPaymentAccount(ctx, store.ID, accountID, syncSource); err != nil {
			return nil, err
		}
		result.AccountID = accountID
		result.Created = true
		s.logg.Info(s.logg.WithField(ctx, "stripe_account_id", accountID), "connected account created")
	}

	storeURL := fmt.Sprintf("%s/dashboard/stores/%s", s.baseURL, store.ID)
	url, err := s.gateway.CreateOnboardingLink(ctx, result.AccountID, storeURL+"?refresh=true", storeURL)
	if err != nil {
		s.recordError("create_account_link")
		return nil, err
	}
	result.URL = url
	return result, nil
}

func (s *service) recordError(op string) {
	if s.metrics != nil {
		s.metrics.IncProcessorError(op)
	}
}
