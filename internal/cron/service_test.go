package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
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

func TestRunOnceContinuesPastFailingJob(t *testing.T) {
	ok := &stubJob{name: "qr-code-cleanup"}
	bad := &stubJob{name: "billing-event-retention", err: errors.New("boom")}
	registry, err := NewRegistry(bad, ok)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	jobMetrics := metrics.NewCronJobMetrics(reg)
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: lock, Metrics: jobMetrics})
	require.NoError(t, err)

	err = service.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "billing-event-retention: boom")
	assert.Equal(t, 1, bad.runs)
	assert.Equal(t, 1, ok.runs, "a failing job must not starve the rest")
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &stubJob{name: "qr-code-cleanup"}
	registry, err := NewRegistry(job)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: &fakeLock{held: true}})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &stubJob{name: "qr-code-cleanup"}
	registry, err := NewRegistry(job)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: &fakeLock{}, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	err = service.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, job.runs, 2)
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
