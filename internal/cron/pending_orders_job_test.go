package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type gaugeSpy struct {
	value int
	calls int
}

func (g *gaugeSpy) SetStalePendingOrders(count int) {
	g.value = count
	g.calls++
}

func TestPendingOrdersJobReportsWithoutMutating(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := dbtest.SeedStore(t, conn, "5.00", "acct_1")
	stale := dbtest.SeedPendingOrder(t, conn, store.ID, "10.00", "0.50", now.Add(-48*time.Hour))
	dbtest.SeedPendingOrder(t, conn, store.ID, "20.00", "1.00", now.Add(-time.Hour))

	gauge := &gaugeSpy{}
	job, err := NewPendingOrdersJob(PendingOrdersJobParams{
		Logger:     logger.Nop(),
		Orders:     orders.NewRepository(conn),
		Gauge:      gauge,
		StaleAfter: 24 * time.Hour,
	})
	require.NoError(t, err)
	job.(*pendingOrdersJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, gauge.value)
	assert.Equal(t, 1, gauge.calls)

	var got models.Order
	require.NoError(t, conn.First(&got, "id = ?", stale.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
}

func TestPendingOrdersJobZeroesGaugeWhenClean(t *testing.T) {
	conn := dbtest.Open(t)
	gauge := &gaugeSpy{value: 9}
	job, err := NewPendingOrdersJob(PendingOrdersJobParams{
		Logger: logger.Nop(),
		Orders: orders.NewRepository(conn),
		Gauge:  gauge,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, gauge.value)
}
