package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/tenant"
)

// DeliveryWorker polls for due scheduled messages and hands them to a sender.
type DeliveryWorker struct {
	messages *service.MessageService
	sender   service.Sender
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
	batch    int
	now      func() time.Time
}

// DeliveryOptions tune the worker. Zero values fall back to a one minute interval and a
// batch of 100.
type DeliveryOptions struct {
	Interval time.Duration
	Batch    int
	Now      func() time.Time
}

// NewDeliveryWorker builds the worker. metrics may be nil.
func NewDeliveryWorker(messages *service.MessageService, sender service.Sender, logger *zap.Logger, metrics *observability.Metrics, opts DeliveryOptions) *DeliveryWorker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DeliveryWorker{
		messages: messages,
		sender:   sender,
		logger:   logger,
		metrics:  metrics,
		interval: opts.Interval,
		batch:    opts.Batch,
		now:      opts.Now,
	}
}

// Run polls until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) {
	w.logger.Info("delivery worker started", zap.Duration("interval", w.interval), zap.Int("batch", w.batch))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("delivery poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("delivery worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce delivers one batch of due messages and returns how many were attempted. Each
// message is delivered in its own tenant's session.
func (w *DeliveryWorker) RunOnce(ctx context.Context) (int, error) {
	due, err := w.messages.ListDue(ctx, w.now().UTC(), w.batch)
	if err != nil {
		return 0, err
	}
	for _, m := range due {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		mctx := tenant.WithIdentity(ctx, tenant.Identity{TenantID: m.TenantID})
		outcome, err := w.messages.Deliver(mctx, m.ID, w.sender)
		w.metrics.RecordDelivery(outcome)
		if err != nil {
			w.logger.Error("message delivery errored",
				zap.String("message_id", m.ID.String()),
				zap.String("tenant_id", m.TenantID.String()),
				zap.Error(err))
			continue
		}
		w.logger.Debug("message processed",
			zap.String("message_id", m.ID.String()),
			zap.String("outcome", outcome))
	}
	return len(due), nil
}
