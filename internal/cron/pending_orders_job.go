package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	defaultStaleAfter  = 24 * time.Hour
	defaultReportLimit = 50
)

type pendingOrderReader interface {
	CountPendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type staleGauge interface {
	SetStalePendingOrders(count int)
}

type PendingOrdersJobParams struct {
	Logger      *logger.Logger
	Orders      pendingOrderReader
	Gauge       staleGauge
	StaleAfter  time.Duration
	ReportLimit int
}

// NewPendingOrdersJob reports orders that stayed pending past the threshold.
// It only observes; pending orders are never cancelled or mutated.
func NewPendingOrdersJob(params PendingOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	limit := params.ReportLimit
	if limit <= 0 {
		limit = defaultReportLimit
	}
	return &pendingOrdersJob{
		logg:       params.Logger,
		orders:     params.Orders,
		gauge:      params.Gauge,
		staleAfter: staleAfter,
		limit:      limit,
		now:        time.Now,
	}, nil
}

type pendingOrdersJob struct {
	logg       *logger.Logger
	orders     pendingOrderReader
	gauge      staleGauge
	staleAfter time.Duration
	limit      int
	now        func() time.Time
}

func (j *pendingOrdersJob) Name() string { return "stale-pending-orders" }

func (j *pendingOrdersJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	count, err := j.orders.CountPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count stale pending orders: %w", err)
	}
	if j.gauge != nil {
		j.gauge.SetStalePendingOrders(int(count))
	}
	ctx = j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "stale_count": count})
	if count == 0 {
		j.logg.Info(ctx, "no stale pending orders")
		return nil
	}

	stale, err := j.orders.ListPendingBefore(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list stale pending orders: %w", err)
	}
	for _, order := range stale {
		j.logg.Warn(j.logg.WithFields(j.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"order_number": order.OrderNumber,
			"store_id":     order.StoreID.String(),
			"created_at":   order.CreatedAt,
			"total_amount": order.TotalAmount.StringFixed(2),
		}), "order pending past threshold")
	}
	return nil
}
