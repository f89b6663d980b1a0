package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// MatchRepository implements usecase.MatchRepository. Match records are
// append-only; status updates never rewrite the pairing itself.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

const matchColumns = `id, bank_txn_id, entry_ids, score, breakdown, status,
	version, run_id, superseded_by, reason, created_at, updated_at, resolved_at`

// Create creates a reconciliation match.
func (r *MatchRepository) Create(ctx context.Context, tx usecase.Transaction, match *domain.ReconciliationMatch) error {
	pgxTx := tx.(*Tx).PgxTx()

	breakdown, err := json.Marshal(match.Breakdown)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO reconciliation_matches (id, bank_txn_id, entry_ids, score,
			breakdown, status, version, run_id, superseded_by, reason,
			created_at, updated_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		match.ID,
		match.BankTxnID,
		match.EntryIDs,
		match.Score,
		breakdown,
		match.Status,
		match.Version,
		match.RunID,
		match.SupersededBy,
		match.Reason,
		match.CreatedAt,
		match.UpdatedAt,
		match.ResolvedAt,
	)

	return err
}

// GetByID retrieves a match by ID.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*domain.ReconciliationMatch, error) {
	return getMatch(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves a match with a FOR UPDATE lock.
func (r *MatchRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.ReconciliationMatch, error) {
	return getMatch(ctx, txQuerier(tx), id, true)
}

func getMatch(ctx context.Context, q querier, id string, forUpdate bool) (*domain.ReconciliationMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM reconciliation_matches WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	match, err := scanMatch(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}

		return nil, err
	}

	return match, nil
}

// ListByTxn returns every match ever proposed for a bank transaction,
// whatever its status.
func (r *MatchRepository) ListByTxn(ctx context.Context, bankTxnID string) ([]*domain.ReconciliationMatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM reconciliation_matches WHERE bank_txn_id = $1 ORDER BY id`,
		bankTxnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMatches(rows)
}

// ListByStatus lists matches in one status, best score first.
func (r *MatchRepository) ListByStatus(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.ReconciliationMatch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM reconciliation_matches
		WHERE status = $1
		ORDER BY score DESC, id
		LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMatches(rows)
}

// UpdateStatus moves a match to a new status and bumps the version. Reason
// is kept unless a new one is given; the row must already be locked.
func (r *MatchRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.MatchStatus, reason string, resolvedAt *time.Time, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE reconciliation_matches
		SET status = $2,
			reason = CASE WHEN $3 = '' THEN reason ELSE $3 END,
			resolved_at = $4,
			version = version + 1,
			updated_at = $5
		WHERE id = $1`,
		id, status, reason, resolvedAt, updatedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrMatchNotFound
	}

	return nil
}

// SetSupersededBy links a superseded match to its replacement.
func (r *MatchRepository) SetSupersededBy(ctx context.Context, tx usecase.Transaction, id, successorID string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE reconciliation_matches SET superseded_by = $2, updated_at = $3 WHERE id = $1`,
		id, successorID, updatedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrMatchNotFound
	}

	return nil
}

// ListOpenOlderThan returns pending_review matches created before the cutoff.
func (r *MatchRepository) ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.ReconciliationMatch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM reconciliation_matches
		WHERE status = 'pending_review' AND created_at < $1
		ORDER BY id`,
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMatches(rows)
}

// ListDuplicateSettledTxns returns bank transactions claimed by more than one
// settled match.
func (r *MatchRepository) ListDuplicateSettledTxns(ctx context.Context) (map[string][]string, error) {
	return r.collectDuplicates(ctx, `
		SELECT bank_txn_id, array_agg(id ORDER BY id)
		FROM reconciliation_matches
		WHERE status IN ('auto_accepted', 'accepted')
		GROUP BY bank_txn_id
		HAVING COUNT(*) > 1`)
}

// ListDuplicateSettledEntries returns journal entries claimed by more than
// one settled match.
func (r *MatchRepository) ListDuplicateSettledEntries(ctx context.Context) (map[string][]string, error) {
	return r.collectDuplicates(ctx, `
		SELECT e.entry_id, array_agg(m.id ORDER BY m.id)
		FROM reconciliation_matches m
		CROSS JOIN LATERAL unnest(m.entry_ids) AS e(entry_id)
		WHERE m.status IN ('auto_accepted', 'accepted')
		GROUP BY e.entry_id
		HAVING COUNT(*) > 1`)
}

func (r *MatchRepository) collectDuplicates(ctx context.Context, query string) (map[string][]string, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var (
			id       string
			matchIDs []string
		)

		if err := rows.Scan(&id, &matchIDs); err != nil {
			return nil, err
		}

		out[id] = matchIDs
	}

	return out, rows.Err()
}

// ListSettledTxnsByAccount returns bank transactions with a settled match
// against the account, most recent first.
func (r *MatchRepository) ListSettledTxnsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.BankTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT t.id, t.batch_id, t.source_account_id, t.txn_date,
			t.direction, t.amount, t.currency, t.description, t.reference,
			t.status, t.version, t.created_at, t.updated_at
		FROM bank_transactions t
		JOIN reconciliation_matches m ON m.bank_txn_id = t.id
		WHERE t.source_account_id = $1
		  AND m.status IN ('auto_accepted', 'accepted')
		ORDER BY t.txn_date DESC, t.id DESC
		LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTxns(rows)
}

// Stats aggregates match counts, transaction coverage and the score
// distribution.
func (r *MatchRepository) Stats(ctx context.Context) (*domain.ReconciliationStats, error) {
	stats := &domain.ReconciliationStats{
		ByMatchStatus: make(map[domain.MatchStatus]int),
	}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'matched')
		FROM bank_transactions`).
		Scan(&stats.TotalTransactions, &stats.MatchedTransactions)
	if err != nil {
		return nil, err
	}
	if stats.TotalTransactions > 0 {
		stats.MatchRate = float64(stats.MatchedTransactions) / float64(stats.TotalTransactions)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, LEAST(score / 10, 9), COUNT(*)
		FROM reconciliation_matches
		GROUP BY status, LEAST(score / 10, 9)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status domain.MatchStatus
			bucket int
			count  int
		)

		if err := rows.Scan(&status, &bucket, &count); err != nil {
			return nil, err
		}

		stats.ByMatchStatus[status] += count
		stats.ScoreHistogram[bucket] += count
	}

	return stats, rows.Err()
}

func scanMatch(row pgx.Row) (*domain.ReconciliationMatch, error) {
	var (
		m         domain.ReconciliationMatch
		breakdown []byte
	)

	err := row.Scan(&m.ID, &m.BankTxnID, &m.EntryIDs, &m.Score, &breakdown,
		&m.Status, &m.Version, &m.RunID, &m.SupersededBy, &m.Reason,
		&m.CreatedAt, &m.UpdatedAt, &m.ResolvedAt)
	if err != nil {
		return nil, err
	}

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &m.Breakdown); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

func collectMatches(rows pgx.Rows) ([]*domain.ReconciliationMatch, error) {
	var matches []*domain.ReconciliationMatch

	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}

		matches = append(matches, match)
	}

	return matches, rows.Err()
}
