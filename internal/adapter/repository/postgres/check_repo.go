package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// CheckRepository implements usecase.CheckRepository. Open-check idempotence
// rests on a partial unique index over (fingerprint) WHERE status = 'open':
// two scanners racing on the same finding cannot both insert.
type CheckRepository struct {
	pool *pgxpool.Pool
}

// NewCheckRepository creates a new CheckRepository.
func NewCheckRepository(pool *pgxpool.Pool) *CheckRepository {
	return &CheckRepository{pool: pool}
}

const checkColumns = `id, check_type, severity, status, fingerprint,
	bank_txn_ids, match_ids, account_id, detail, resolution_action,
	resolution_note, created_at, resolved_at`

// Create creates a consistency check. An open check with the same
// fingerprint reports domain.ErrDuplicateCheck.
func (r *CheckRepository) Create(ctx context.Context, tx usecase.Transaction, check *domain.ConsistencyCheck) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO consistency_checks (id, check_type, severity, status,
			fingerprint, bank_txn_ids, match_ids, account_id, detail,
			resolution_action, resolution_note, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		check.ID,
		check.CheckType,
		check.Severity,
		check.Status,
		check.Fingerprint,
		check.BankTxnIDs,
		check.MatchIDs,
		check.AccountID,
		check.Detail,
		check.ResolutionAction,
		check.ResolutionNote,
		check.CreatedAt,
		check.ResolvedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateCheck
		}

		return err
	}

	return nil
}

// GetByID retrieves a check by ID.
func (r *CheckRepository) GetByID(ctx context.Context, id string) (*domain.ConsistencyCheck, error) {
	check, err := scanCheck(r.pool.QueryRow(ctx,
		`SELECT `+checkColumns+` FROM consistency_checks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCheckNotFound
		}

		return nil, err
	}

	return check, nil
}

// FindOpenByFingerprint returns the open check carrying the fingerprint, or
// domain.ErrCheckNotFound.
func (r *CheckRepository) FindOpenByFingerprint(ctx context.Context, fingerprint string) (*domain.ConsistencyCheck, error) {
	check, err := scanCheck(r.pool.QueryRow(ctx,
		`SELECT `+checkColumns+` FROM consistency_checks WHERE fingerprint = $1 AND status = 'open'`,
		fingerprint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCheckNotFound
		}

		return nil, err
	}

	return check, nil
}

// List lists checks, newest first, optionally narrowed by status, type or
// severity.
func (r *CheckRepository) List(ctx context.Context, filter usecase.CheckFilter) ([]*domain.ConsistencyCheck, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+checkColumns+`
		FROM consistency_checks
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR check_type = $2)
		  AND ($3::text IS NULL OR severity = $3)
		ORDER BY id DESC
		LIMIT $4 OFFSET $5`,
		filter.Status, filter.Type, filter.Severity, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectChecks(rows)
}

// Resolve closes an open check. Resolving a resolved check reports
// domain.AlreadyProcessedError; resolution is terminal.
func (r *CheckRepository) Resolve(ctx context.Context, id string, action domain.ResolutionAction, note string, resolvedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE consistency_checks
		SET status = 'resolved', resolution_action = $2, resolution_note = $3,
			resolved_at = $4
		WHERE id = $1 AND status = 'open'`,
		id, action, note, resolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = r.pool.QueryRow(ctx,
		`SELECT status FROM consistency_checks WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrCheckNotFound
		}

		return err
	}

	return domain.NewAlreadyProcessedError("consistency_check", id, status)
}

// ListOpenByMatchIDs returns open checks implicating any of the matches at
// or above the severity.
func (r *CheckRepository) ListOpenByMatchIDs(ctx context.Context, matchIDs []string, minSeverity domain.Severity) ([]*domain.ConsistencyCheck, error) {
	if len(matchIDs) == 0 {
		return nil, nil
	}

	severities := make([]string, 0, 4)
	for _, s := range []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical} {
		if s.AtLeast(minSeverity) {
			severities = append(severities, string(s))
		}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+checkColumns+`
		FROM consistency_checks
		WHERE status = 'open'
		  AND match_ids && $1
		  AND severity = ANY($2)
		ORDER BY id`,
		matchIDs, severities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectChecks(rows)
}

// CountOpenBySeverity counts open checks per severity.
func (r *CheckRepository) CountOpenBySeverity(ctx context.Context) (map[domain.Severity]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT severity, COUNT(*)
		FROM consistency_checks
		WHERE status = 'open'
		GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Severity]int)
	for rows.Next() {
		var (
			severity domain.Severity
			count    int
		)

		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}

		out[severity] = count
	}

	return out, rows.Err()
}

func scanCheck(row pgx.Row) (*domain.ConsistencyCheck, error) {
	var c domain.ConsistencyCheck

	err := row.Scan(&c.ID, &c.CheckType, &c.Severity, &c.Status, &c.Fingerprint,
		&c.BankTxnIDs, &c.MatchIDs, &c.AccountID, &c.Detail,
		&c.ResolutionAction, &c.ResolutionNote, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func collectChecks(rows pgx.Rows) ([]*domain.ConsistencyCheck, error) {
	var checks []*domain.ConsistencyCheck

	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}

		checks = append(checks, check)
	}

	return checks, rows.Err()
}
