package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository. A journal entry and
// its lines are written together; lines are immutable outside ReplaceLines.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

const entryColumns = `id, entry_date, memo, source_type, status, version,
	reversal_of, reversed_by, posted_at, created_at, updated_at`

const lineColumns = `id, entry_id, account_id, direction, amount, currency,
	fx_rate, event_type, position`

// Create creates an entry together with its lines.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO journal_entries (id, entry_date, memo, source_type, status,
			version, reversal_of, reversed_by, posted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.EntryDate,
		entry.Memo,
		entry.SourceType,
		entry.Status,
		entry.Version,
		entry.ReversalOf,
		entry.ReversedBy,
		entry.PostedAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return insertLines(ctx, pgxTx, entry.ID, entry.Lines)
}

func insertLines(ctx context.Context, pgxTx pgx.Tx, entryID string, lines []domain.JournalLine) error {
	if len(lines) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO journal_lines (id, entry_id, account_id, direction,
				amount, currency, fx_rate, event_type, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID,
			entryID,
			l.AccountID,
			l.Direction,
			decimalToNumeric(l.Amount),
			l.Currency,
			decimalPtrToNumeric(l.FxRate),
			l.EventType,
			l.Position,
		)
	}

	br := pgxTx.SendBatch(ctx, batch)
	for range lines {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}

	return br.Close()
}

// GetByID retrieves an entry with its lines.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return getEntry(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves an entry with a FOR UPDATE lock on the entry
// row. Lines are read without locks; they only change through ReplaceLines,
// which takes the same entry lock.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	return getEntry(ctx, txQuerier(tx), id, true)
}

func getEntry(ctx context.Context, q querier, id string, forUpdate bool) (*domain.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	entry, err := scanEntry(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}

		return nil, err
	}

	lines, err := loadLines(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	entry.Lines = lines[id]

	return entry, nil
}

// GetByIDs retrieves entries with their lines. Missing IDs are simply absent
// from the result.
func (r *EntryRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.JournalEntry, error) {
	return listEntries(ctx, r.pool,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = ANY($1) ORDER BY id`, ids)
}

// GetByIDsForUpdate locks entries in sorted-ID order so concurrent decisions
// over overlapping entry sets cannot deadlock.
func (r *EntryRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.JournalEntry, error) {
	return listEntries(ctx, txQuerier(tx),
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
}

// UpdateStatus moves an entry to a new status and bumps the version. The row
// must already be locked; optimistic version checks happen in the usecase.
func (r *EntryRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.EntryStatus, postedAt *time.Time, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE journal_entries
		SET status = $2, posted_at = $3, version = version + 1, updated_at = $4
		WHERE id = $1`,
		id, status, postedAt, updatedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// SetReversedBy links an entry to the reversal that voided it.
func (r *EntryRepository) SetReversedBy(ctx context.Context, tx usecase.Transaction, id, reversalID string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE journal_entries SET reversed_by = $2, updated_at = $3 WHERE id = $1`,
		id, reversalID, updatedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// ReplaceLines swaps a draft entry's lines wholesale, optionally rewrites
// the memo, and bumps the version.
func (r *EntryRepository) ReplaceLines(ctx context.Context, tx usecase.Transaction, entryID string, lines []domain.JournalLine, memo *string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx,
		`UPDATE journal_entries
		 SET version = version + 1, memo = COALESCE($3, memo), updated_at = $2
		 WHERE id = $1`,
		entryID, updatedAt, memo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	if _, err := pgxTx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id = $1`, entryID); err != nil {
		return err
	}

	return insertLines(ctx, pgxTx, entryID, lines)
}

// List lists entries, optionally narrowed by status or touched account.
func (r *EntryRepository) List(ctx context.Context, filter usecase.EntryFilter) ([]*domain.JournalEntry, error) {
	return listEntries(ctx, r.pool, `
		SELECT `+entryColumns+`
		FROM journal_entries e
		WHERE ($1::text IS NULL OR e.status = $1)
		  AND ($2::text IS NULL OR EXISTS (
				SELECT 1 FROM journal_lines l
				WHERE l.entry_id = e.id AND l.account_id = $2))
		ORDER BY e.id
		LIMIT $3 OFFSET $4`,
		filter.Status, filter.AccountID, filter.Limit, filter.Offset)
}

// ListCandidates returns posted and draft entries that touch the account
// within the date window and have not been reversed or reconciled.
func (r *EntryRepository) ListCandidates(ctx context.Context, accountID string, from, to time.Time, limit int) ([]*domain.JournalEntry, error) {
	return listEntries(ctx, r.pool, `
		SELECT `+entryColumns+`
		FROM journal_entries e
		WHERE e.status IN ('posted', 'draft')
		  AND e.reversed_by IS NULL
		  AND e.entry_date BETWEEN $2 AND $3
		  AND EXISTS (
				SELECT 1 FROM journal_lines l
				WHERE l.entry_id = e.id AND l.account_id = $1)
		ORDER BY e.id
		LIMIT $4`,
		accountID, from, to, limit)
}

func listEntries(ctx context.Context, q querier, query string, args ...any) ([]*domain.JournalEntry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.JournalEntry
	ids := make([]string, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		ids = append(ids, entry.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	lines, err := loadLines(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		entry.Lines = lines[entry.ID]
	}

	return entries, nil
}

func scanEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var e domain.JournalEntry

	err := row.Scan(&e.ID, &e.EntryDate, &e.Memo, &e.SourceType, &e.Status,
		&e.Version, &e.ReversalOf, &e.ReversedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func loadLines(ctx context.Context, q querier, entryIDs []string) (map[string][]domain.JournalLine, error) {
	byEntry := make(map[string][]domain.JournalLine, len(entryIDs))
	if len(entryIDs) == 0 {
		return byEntry, nil
	}

	rows, err := q.Query(ctx,
		`SELECT `+lineColumns+` FROM journal_lines WHERE entry_id = ANY($1) ORDER BY entry_id, position`,
		entryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l      domain.JournalLine
			amount pgtype.Numeric
			fxRate pgtype.Numeric
		)

		err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Direction,
			&amount, &l.Currency, &fxRate, &l.EventType, &l.Position)
		if err != nil {
			return nil, err
		}

		l.Amount = numericToDecimal(amount)
		l.FxRate = numericToDecimalPtr(fxRate)
		byEntry[l.EntryID] = append(byEntry[l.EntryID], l)
	}

	return byEntry, rows.Err()
}
