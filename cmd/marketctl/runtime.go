package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/marketplace-backend/internal/checkout"
	"github.com/angelmondragon/marketplace-backend/internal/connect"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/products"
	"github.com/angelmondragon/marketplace-backend/internal/stores"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

const serviceName = "marketctl"

type pendingLister interface {
	CountPendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// runtime carries the services a command needs. close releases the
// underlying connections.
type runtime struct {
	verifier   checkout.VerificationService
	onboarder  connect.Service
	pending    pendingLister
	staleAfter time.Duration
	close      func()
}

type runtimeFactory func(ctx context.Context) (*runtime, error)

// bootstrap wires the same services the API runs, minus the HTTP layer.
func bootstrap(ctx context.Context) (*runtime, error) {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	closeDB := func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}

	rt, err := wire(ctx, cfg, logg, dbClient)
	if err != nil {
		closeDB()
		return nil, err
	}
	rt.close = closeDB
	return rt, nil
}

func wire(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*runtime, error) {
	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, fmt.Errorf("stripe client: %w", err)
	}
	gateway := pkgstripe.NewGateway(stripeClient)

	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	storeRepo := stores.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)

	accounts, err := stores.NewAccountService(storeRepo, dbClient, emitter, logg)
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Tx:       dbClient,
		Stores:   storeRepo,
		Products: products.NewRepository(conn),
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}
	verifier, err := checkout.NewVerificationService(checkout.VerificationServiceParams{
		Orders:            orderRepo,
		Confirmer:         orderService,
		Stores:            storeRepo,
		Sessions:          checkout.NewSessionRepository(conn),
		Gateway:           gateway,
		SearchConcurrency: cfg.Stripe.SearchConcurrency,
		Logger:            logg,
	})
	if err != nil {
		return nil, err
	}
	onboarder, err := connect.NewService(connect.ServiceParams{
		Stores:  storeRepo,
		Syncer:  accounts,
		Gateway: gateway,
		BaseURL: cfg.App.PublicURL,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	return &runtime{
		verifier:   verifier,
		onboarder:  onboarder,
		pending:    orderRepo,
		staleAfter: cfg.Checkout.PendingStaleAfter,
	}, nil
}

func (r *runtime) Close() {
	if r != nil && r.close != nil {
		r.close()
	}
}
