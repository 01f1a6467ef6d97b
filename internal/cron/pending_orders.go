package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
)

const (
	defaultPendingTTL = 48 * time.Hour
	defaultBatchSize  = 200
	maxBatchesPerRun  = 50
)

type pendingCanceler interface {
	CancelPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// PendingOrderExpiryParams configure the pending-payment expiry job.
type PendingOrderExpiryParams struct {
	Logger    *logger.Logger
	Orders    pendingCanceler
	TTL       time.Duration
	BatchSize int
	Now       func() time.Time
}

// PendingOrderExpiry cancels paid orders whose payment never arrived.
type PendingOrderExpiry struct {
	logg      *logger.Logger
	orders    pendingCanceler
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

// NewPendingOrderExpiry builds the job.
func NewPendingOrderExpiry(params PendingOrderExpiryParams) (*PendingOrderExpiry, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &PendingOrderExpiry{
		logg:      params.Logger,
		orders:    params.Orders,
		ttl:       ttl,
		batchSize: batch,
		now:       now,
	}, nil
}

func (j *PendingOrderExpiry) Name() string { return "pending-order-expiry" }

// Run cancels in batches until a short batch shows the backlog is drained.
func (j *PendingOrderExpiry) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for i := 0; i < maxBatchesPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ids, err := j.orders.CancelPendingBefore(ctx, cutoff, j.batchSize)
		if err != nil {
			return total, fmt.Errorf("cancel pending orders: %w", err)
		}
		for _, id := range ids {
			j.logg.Info(j.logg.WithOrderID(ctx, id.String()), "orders.pending_payment_expired")
		}
		total += len(ids)
		if len(ids) < j.batchSize {
			break
		}
	}
	return total, nil
}
