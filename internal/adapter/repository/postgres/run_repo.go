package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbase/ledgermatch/internal/domain"
)

// RunRepository implements usecase.RunRepository. Runs are written outside
// the per-transaction routing transactions so an aborted run still leaves a
// record.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

const runColumns = `id, scope_account_id, scope_batch_id, status, processed,
	auto_accepted, pending_review, unmatched, downgraded, skipped, errors,
	started_at, completed_at`

// Create creates a matcher run.
func (r *RunRepository) Create(ctx context.Context, run *domain.MatcherRun) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matcher_runs (id, scope_account_id, scope_batch_id, status,
			processed, auto_accepted, pending_review, unmatched, downgraded,
			skipped, errors, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID,
		run.ScopeAccountID,
		run.ScopeBatchID,
		run.Status,
		run.Processed,
		run.AutoAccepted,
		run.PendingReview,
		run.Unmatched,
		run.Downgraded,
		run.Skipped,
		run.Errors,
		run.StartedAt,
		run.CompletedAt,
	)

	return err
}

// Update rewrites a run's status and counters.
func (r *RunRepository) Update(ctx context.Context, run *domain.MatcherRun) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE matcher_runs
		SET status = $2, processed = $3, auto_accepted = $4, pending_review = $5,
			unmatched = $6, downgraded = $7, skipped = $8, errors = $9,
			completed_at = $10
		WHERE id = $1`,
		run.ID,
		run.Status,
		run.Processed,
		run.AutoAccepted,
		run.PendingReview,
		run.Unmatched,
		run.Downgraded,
		run.Skipped,
		run.Errors,
		run.CompletedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

// GetByID retrieves a run by ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.MatcherRun, error) {
	run, err := scanRun(r.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM matcher_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}

		return nil, err
	}

	return run, nil
}

// List lists runs, most recent first.
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*domain.MatcherRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM matcher_runs ORDER BY id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.MatcherRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*domain.MatcherRun, error) {
	var run domain.MatcherRun

	err := row.Scan(&run.ID, &run.ScopeAccountID, &run.ScopeBatchID, &run.Status,
		&run.Processed, &run.AutoAccepted, &run.PendingReview, &run.Unmatched,
		&run.Downgraded, &run.Skipped, &run.Errors, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}

	return &run, nil
}
