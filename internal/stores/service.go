package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentAccountSyncer records a store's connected account reference.
type PaymentAccountSyncer interface {
	SyncPaymentAccount(ctx context.Context, storeID uuid.UUID, accountID, source string) (bool, error)
}

// AccountService writes connected-account references. Provisioning and
// account.updated webhooks both overwrite the column; the processor is the
// source of truth, so the last writer wins.
type AccountService struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewAccountService(repo *Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (*AccountService, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &AccountService{repo: repo, tx: tx, outbox: emitter, logg: logg}, nil
}

// SyncPaymentAccount overwrites the store's account reference and reports
// whether the stored value changed. A store_payment_account_synced event is
// emitted in the same transaction on change.
func (s *AccountService) SyncPaymentAccount(ctx context.Context, storeID uuid.UUID, accountID, source string) (bool, error) {
	if storeID == uuid.Nil || accountID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "store id and account id are required")
	}
	ctx = s.logg.WithStoreID(ctx, storeID.String())

	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		previous, err := s.repo.WithTx(tx).SetPaymentAccount(ctx, storeID, accountID)
		if err != nil {
			return err
		}
		prev := ""
		if previous != nil {
			prev = *previous
		}
		if prev == accountID {
			return nil
		}
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStorePaymentAccountSynced,
			AggregateType: enums.AggregateStore,
			AggregateID:   storeID,
			Actor:         &outbox.Actor{System: source},
			Data: payloads.StorePaymentAccountSyncedEvent{
				StoreID:           storeID,
				StripeAccountID:   accountID,
				PreviousAccountID: prev,
				Source:            source,
			},
		})
	})
	if err != nil {
		if db.IsNotFound(err) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update store payment account")
	}
	if changed {
		s.logg.Info(s.logg.WithField(ctx, "source", source), "store payment account updated")
	}
	return changed, nil
}
