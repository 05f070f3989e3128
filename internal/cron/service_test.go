package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

type recordingMetrics struct {
	success, failure []string
	observed         int
}

func (r *recordingMetrics) ObserveDuration(string, time.Duration) { r.observed++ }
func (r *recordingMetrics) IncSuccess(job string)                 { r.success = append(r.success, job) }
func (r *recordingMetrics) IncFailure(job string)                 { r.failure = append(r.failure, job) }

func newTestService(t *testing.T, lock Lock, metrics jobRecorder, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics,
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndCollectsFailures(t *testing.T) {
	ok := &countingJob{name: "ok"}
	first := &countingJob{name: "first", err: errors.New("boom")}
	second := &countingJob{name: "second", err: errors.New("bang")}
	lock := &fakeLock{}
	metrics := &recordingMetrics{}
	svc := newTestService(t, lock, metrics, first, ok, second)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "first: boom")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, second.runs)
	assert.Equal(t, []string{"ok"}, metrics.success)
	assert.Equal(t, []string{"first", "second"}, metrics.failure)
	assert.Equal(t, 3, metrics.observed)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
}

func TestRunOnceSkipsWhileLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &fakeLock{held: true}, nil, job)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunOnceSurfacesLockError(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &fakeLock{acquireErr: errors.New("redis down")}, nil, job)

	assert.ErrorContains(t, svc.RunOnce(context.Background()), "redis down")
	assert.Zero(t, job.runs)
}

func TestRunNamedRunsOnlySelectedJobs(t *testing.T) {
	a := &countingJob{name: "a"}
	b := &countingJob{name: "b"}
	svc := newTestService(t, &fakeLock{}, nil, a, b)

	require.NoError(t, svc.RunNamed(context.Background(), "b"))
	assert.Zero(t, a.runs)
	assert.Equal(t, 1, b.runs)

	assert.ErrorContains(t, svc.RunNamed(context.Background(), "nope"), `unknown cron job "nope"`)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "job"}
	svc := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Zero(t, job.runs)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	_, err = NewService(ServiceParams{Lock: &fakeLock{}, Registry: registry})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop(), Registry: registry})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{}})
	assert.Error(t, err)
}
