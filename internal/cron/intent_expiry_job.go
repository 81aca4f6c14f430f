package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/clouddrivehq/clouddrive-backend/pkg/logger"
)

const defaultExpiryBatchSize = 100

// IntentExpiryJobParams configure the payment expiry sweeper.
type IntentExpiryJobParams struct {
	Logger    *logger.Logger
	Payments  intentExpirer
	BatchSize int
}

type intentExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// NewIntentExpiryJob builds the cron job that rejects payment intents whose
// payment window lapsed without verification.
func NewIntentExpiryJob(params IntentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultExpiryBatchSize
	}
	return &intentExpiryJob{
		logg:      params.Logger,
		payments:  params.Payments,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type intentExpiryJob struct {
	logg      *logger.Logger
	payments  intentExpirer
	batchSize int
	now       func() time.Time
}

func (j *intentExpiryJob) Name() string { return "intent-expiry" }

func (j *intentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.payments.ExpireStale(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("expire stale intents: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": expired})
	j.logg.Info(logCtx, "intent expiry loop complete")
	return nil
}
