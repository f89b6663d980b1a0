package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
)

// LedgerRepository implements usecase.LedgerRepository. All queries
// aggregate over posted and reconciled entries; drafts and voids never hit
// the books.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// CheckConsistency sums both sides of the ledger.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var debits, credits pgtype.Numeric

	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(l.amount) FILTER (WHERE l.direction = 'debit'), 0),
			COALESCE(SUM(l.amount) FILTER (WHERE l.direction = 'credit'), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.status IN ('posted', 'reconciled')`).
		Scan(&debits, &credits)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToDecimal(debits), numericToDecimal(credits), nil
}

// TrialBalance returns per-account debit and credit totals. Accounts with no
// posted lines appear with zero totals.
func (r *LedgerRepository) TrialBalance(ctx context.Context) ([]*domain.TrialBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.name, a.type,
			COALESCE(t.debits, 0), COALESCE(t.credits, 0)
		FROM accounts a
		LEFT JOIN (
			SELECT l.account_id,
				SUM(l.amount) FILTER (WHERE l.direction = 'debit') AS debits,
				SUM(l.amount) FILTER (WHERE l.direction = 'credit') AS credits
			FROM journal_lines l
			JOIN journal_entries e ON e.id = l.entry_id
			WHERE e.status IN ('posted', 'reconciled')
			GROUP BY l.account_id
		) t ON t.account_id = a.id
		ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TrialBalanceRow
	for rows.Next() {
		var (
			row     domain.TrialBalanceRow
			debits  pgtype.Numeric
			credits pgtype.Numeric
		)

		err := rows.Scan(&row.AccountID, &row.AccountName, &row.AccountType, &debits, &credits)
		if err != nil {
			return nil, err
		}

		row.Debits = numericToDecimal(debits)
		row.Credits = numericToDecimal(credits)
		out = append(out, &row)
	}

	return out, rows.Err()
}

// TypeTotals returns net balances per account type on each type's normal
// side. Types with no posted lines are absent from the map.
func (r *LedgerRepository) TypeTotals(ctx context.Context) (map[domain.AccountType]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.type,
			COALESCE(SUM(CASE WHEN l.direction = 'debit' THEN l.amount ELSE -l.amount END), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id
		WHERE e.status IN ('posted', 'reconciled')
		GROUP BY a.type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.AccountType]decimal.Decimal)
	for rows.Next() {
		var (
			accountType domain.AccountType
			net         pgtype.Numeric
		)

		if err := rows.Scan(&accountType, &net); err != nil {
			return nil, err
		}

		total := numericToDecimal(net)
		if accountType.NormalSide() == domain.DirectionCredit {
			total = total.Neg()
		}
		out[accountType] = total
	}

	return out, rows.Err()
}

// ListAccountLines returns posted lines against one account since the given
// time, oldest first.
func (r *LedgerRepository) ListAccountLines(ctx context.Context, accountID string, since time.Time) ([]*domain.AccountLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.entry_id, l.direction, l.amount, e.entry_date
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE l.account_id = $1
		  AND e.status IN ('posted', 'reconciled')
		  AND e.entry_date >= $2
		ORDER BY e.entry_date, l.id`,
		accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AccountLine
	for rows.Next() {
		var (
			line   domain.AccountLine
			amount pgtype.Numeric
		)

		err := rows.Scan(&line.LineID, &line.EntryID, &line.Direction, &amount, &line.EntryDate)
		if err != nil {
			return nil, err
		}

		line.Amount = numericToDecimal(amount)
		out = append(out, &line)
	}

	return out, rows.Err()
}
