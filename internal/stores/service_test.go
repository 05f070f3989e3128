package stores

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

func TestSyncPaymentAccountEmitsOnlyOnChange(t *testing.T) {
	conn := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(conn)
	svc, err := NewAccountService(NewRepository(conn), db.FromGorm(conn), outbox.NewService(outboxRepo, nil), nil)
	require.NoError(t, err)
	store := dbtest.SeedStore(t, conn, "5.00", "")
	ctx := context.Background()

	changed, err := svc.SyncPaymentAccount(ctx, store.ID, "acct_1", "webhook")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.SyncPaymentAccount(ctx, store.ID, "acct_1", "webhook")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.SyncPaymentAccount(ctx, store.ID, "acct_2", "provisioning")
	require.NoError(t, err)
	assert.True(t, changed)

	count, err := outboxRepo.CountForAggregate(string(enums.EventStorePaymentAccountSynced), store.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = svc.SyncPaymentAccount(ctx, uuid.New(), "acct_3", "webhook")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
