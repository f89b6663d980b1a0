package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

const outboxColumns = `id, aggregate_id, aggregate_type, event_type, payload,
	created_at, published_at, published`

// Create creates a new outbox event within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	pgxTx := tx.(*Tx).PgxTx()

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type,
			payload, created_at, published_at, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		payload,
		event.CreatedAt,
		event.PublishedAt,
		event.Published,
	)

	return err
}

// GetUnpublished retrieves unpublished events, oldest first.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE published = FALSE
		ORDER BY created_at, id
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOutboxEvents(rows)
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET published = TRUE, published_at = $2 WHERE id = $1`,
		id, publishedAt)

	return err
}

// GetByAggregate retrieves events for a specific aggregate.
func (r *OutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4`,
		aggregateType, aggregateID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOutboxEvents(rows)
}

// DeletePublished deletes published events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM outbox_events WHERE published = TRUE AND created_at < $1`,
		before)

	return err
}

func scanOutboxEvent(row pgx.Row) (*domain.OutboxEvent, error) {
	var (
		e       domain.OutboxEvent
		payload []byte
	)

	err := row.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType,
		&payload, &e.CreatedAt, &e.PublishedAt, &e.Published)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, err
		}
	}

	return &e, nil
}

func collectOutboxEvents(rows pgx.Rows) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent

	for rows.Next() {
		event, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
