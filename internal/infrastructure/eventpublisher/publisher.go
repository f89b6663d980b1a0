package eventpublisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/infrastructure/metrics"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// EventPublisher drains the outbox table: it polls for unpublished events,
// hands them to a Publisher, and marks them published. Delivery is
// at-least-once; consumers must dedupe on event ID.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	batchSize  int
	interval   time.Duration
	retention  time.Duration
}

// Publisher delivers one event to an external system.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	// BatchSize is how many events one poll drains.
	BatchSize int
	// Interval is the polling cadence.
	Interval time.Duration
	// Retention is how long published events stay before pruning; zero
	// disables pruning.
	Retention time.Duration
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
	}
}

// Start runs the polling loop until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info("event publisher started",
		slog.Int("batch_size", ep.batchSize),
		slog.Duration("interval", ep.interval))

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	// Drain whatever accumulated before the process came up.
	if err := ep.processEvents(ctx); err != nil {
		ep.logger.Error("error processing events on start", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info("event publisher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := ep.processEvents(ctx); err != nil {
				ep.logger.Error("error processing events", slog.String("error", err.Error()))
			}
			ep.prune(ctx)
		}
	}
}

// processEvents fetches and publishes a batch of unpublished events.
func (ep *EventPublisher) processEvents(ctx context.Context) error {
	events, err := ep.outboxRepo.GetUnpublished(ctx, ep.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	ep.logger.Debug("processing outbox events", slog.Int("count", len(events)))

	for _, event := range events {
		if err := ep.publishEvent(ctx, event); err != nil {
			ep.metrics.RecordOutboxError()
			ep.logger.Error("failed to publish event",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.EventType),
				slog.String("error", err.Error()))
			// Leave the event unpublished; the next poll retries it.
			continue
		}

		if err := ep.outboxRepo.MarkPublished(ctx, event.ID, time.Now()); err != nil {
			ep.metrics.RecordOutboxError()
			ep.logger.Error("failed to mark event as published",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()))
			// The event was delivered but stays marked unpublished, so the
			// next poll delivers it again. At-least-once, not exactly-once.
			continue
		}

		ep.metrics.RecordOutboxPublished()
	}

	return nil
}

func (ep *EventPublisher) publishEvent(ctx context.Context, event *domain.OutboxEvent) error {
	if err := ep.publisher.Publish(ctx, event); err != nil {
		return err
	}

	ep.logger.Debug("event published",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_type", event.AggregateType),
		slog.String("aggregate_id", event.AggregateID))

	return nil
}

// prune drops published events older than the retention window.
func (ep *EventPublisher) prune(ctx context.Context) {
	if ep.retention <= 0 {
		return
	}
	if err := ep.outboxRepo.DeletePublished(ctx, time.Now().Add(-ep.retention)); err != nil {
		ep.logger.Error("failed to prune published events", slog.String("error", err.Error()))
	}
}

// LogPublisher writes events to the log. It is the stock Publisher for
// deployments without a broker.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event with its full payload.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info("EVENT PUBLISHED",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_type", event.AggregateType),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("payload", string(payload)))

	return nil
}
