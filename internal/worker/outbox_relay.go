package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/clock"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/service"
)

const (
	defaultRelayInterval = time.Second
	defaultRelayBatch    = 100
)

// OutboxRelay publishes committed ticket events to the sink in commit order
// and marks them published. Delivery is at least once: an event whose mark
// fails is published again on the next pass.
type OutboxRelay struct {
	events    repository.TicketEventRepository
	sink      events.Sink
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	batchSize int
}

// RelayOptions tunes polling.
type RelayOptions struct {
	Interval  time.Duration
	BatchSize int
	Clock     clock.Clock
	Metrics   *observability.Metrics
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(repo repository.TicketEventRepository, sink events.Sink, logger *zap.Logger, opts RelayOptions) *OutboxRelay {
	if opts.Interval <= 0 {
		opts.Interval = defaultRelayInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRelayBatch
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxRelay{
		events:    repo,
		sink:      sink,
		clock:     opts.Clock,
		logger:    logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another pass so a backlog drains without waiting for the ticker.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", zap.Duration("interval", r.interval), zap.Int("batch", r.batchSize))
	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					r.logger.Warn("outbox relay pass failed", zap.Error(err))
				}
				break
			}
			if n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many events were marked.
// Publishing stops at the first sink failure so later events never
// overtake an earlier one.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.events.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unpublished events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(pending))
	var publishErr error
	for _, evt := range pending {
		if err := r.sink.Publish(ctx, evt); err != nil {
			publishErr = fmt.Errorf("publish event %s: %w", evt.ID, err)
			break
		}
		ids = append(ids, evt.ID)
	}

	if len(ids) > 0 {
		if err := r.events.MarkPublished(ctx, ids, r.clock.Now()); err != nil {
			return 0, fmt.Errorf("mark events published: %w", err)
		}
		r.metrics.RecordRelayed(len(ids))
	}
	return len(ids), publishErr
}

// StartNotificationWorker registers in-process notification handlers on
// the dispatcher the relay feeds.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
