package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

// Stripe retries a webhook for up to three days; ids must outlive that window.
const (
	defaultEventRetention = 30 * 24 * time.Hour
	minEventRetention     = 4 * 24 * time.Hour
)

type BillingEventRetentionJobParams struct {
	Logger    *logger.Logger
	Purger    processedEventPurger
	Retention time.Duration
}

type processedEventPurger interface {
	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

// NewBillingEventRetentionJob forgets processed gateway event ids past retention.
func NewBillingEventRetentionJob(params BillingEventRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("membership ledger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultEventRetention
	}
	if retention < minEventRetention {
		retention = minEventRetention
	}
	return &billingEventRetentionJob{
		logg:      params.Logger,
		purger:    params.Purger,
		retention: retention,
		now:       time.Now,
	}, nil
}

type billingEventRetentionJob struct {
	logg      *logger.Logger
	purger    processedEventPurger
	retention time.Duration
	now       func() time.Time
}

func (j *billingEventRetentionJob) Name() string { return "billing-event-retention" }

func (j *billingEventRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purger.PurgeProcessedEvents(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("billing event retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "billing event retention cleanup complete")
	return nil
}
