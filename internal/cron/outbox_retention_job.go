package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	// Retention is how many days published rows are kept.
	Retention int
	// MinAttempts guards terminal rows: they are pruned only after at least
	// this many publish attempts.
	MinAttempts int
}

// NewOutboxRetentionJob deletes outbox rows the publisher has finished with.
// Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		pruner:      params.Repository,
		keepDays:    positiveOr(params.Retention, outboxRetentionDays),
		minAttempts: positiveOr(params.MinAttempts, outboxMinAttempts),
		clock:       time.Now,
	}
	return job, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	pruner      outboxPruner
	keepDays    int
	minAttempts int
	clock       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.clock().UTC().AddDate(0, 0, -j.keepDays)

	var pruned int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		pruned, err = j.pruner.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		return err
	}); err != nil {
		return fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.DateOnly), err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": pruned,
	}), "outbox rows pruned")
	return nil
}
