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

// StatementRepository implements usecase.StatementRepository.
type StatementRepository struct {
	pool *pgxpool.Pool
}

// NewStatementRepository creates a new StatementRepository.
func NewStatementRepository(pool *pgxpool.Pool) *StatementRepository {
	return &StatementRepository{pool: pool}
}

const txnColumns = `id, batch_id, source_account_id, txn_date, direction,
	amount, currency, description, reference, status, version, created_at, updated_at`

// CreateBatch creates a statement batch.
func (r *StatementRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, batch *domain.StatementBatch) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO statement_batches (id, source_account_id, statement_date,
			opening_balance, closing_balance, txn_count, balance_ok, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		batch.ID,
		batch.SourceAccountID,
		batch.StatementDate,
		decimalToNumeric(batch.OpeningBalance),
		decimalToNumeric(batch.ClosingBalance),
		batch.TxnCount,
		batch.BalanceOK,
		batch.ImportedAt,
	)

	return err
}

// GetBatchByID retrieves a statement batch by ID.
func (r *StatementRepository) GetBatchByID(ctx context.Context, id string) (*domain.StatementBatch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, source_account_id, statement_date, opening_balance,
			closing_balance, txn_count, balance_ok, imported_at
		FROM statement_batches WHERE id = $1`, id)

	var (
		b       domain.StatementBatch
		opening pgtype.Numeric
		closing pgtype.Numeric
	)

	err := row.Scan(&b.ID, &b.SourceAccountID, &b.StatementDate,
		&opening, &closing, &b.TxnCount, &b.BalanceOK, &b.ImportedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}

		return nil, err
	}

	b.OpeningBalance = numericToDecimal(opening)
	b.ClosingBalance = numericToDecimal(closing)

	return &b, nil
}

// CreateTxn creates a bank transaction.
func (r *StatementRepository) CreateTxn(ctx context.Context, tx usecase.Transaction, txn *domain.BankTransaction) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO bank_transactions (id, batch_id, source_account_id, txn_date,
			direction, amount, currency, description, reference, status, version,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		txn.ID,
		txn.BatchID,
		txn.SourceAccountID,
		txn.TxnDate,
		txn.Direction,
		decimalToNumeric(txn.Amount),
		txn.Currency,
		txn.Description,
		txn.Reference,
		txn.Status,
		txn.Version,
		txn.CreatedAt,
		txn.UpdatedAt,
	)

	return err
}

// GetTxnByID retrieves a bank transaction by ID.
func (r *StatementRepository) GetTxnByID(ctx context.Context, id string) (*domain.BankTransaction, error) {
	return getTxn(ctx, r.pool, id, false)
}

// GetTxnByIDForUpdate retrieves a bank transaction with a FOR UPDATE lock.
func (r *StatementRepository) GetTxnByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.BankTransaction, error) {
	return getTxn(ctx, txQuerier(tx), id, true)
}

func getTxn(ctx context.Context, q querier, id string, forUpdate bool) (*domain.BankTransaction, error) {
	query := `SELECT ` + txnColumns + ` FROM bank_transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	txn, err := scanTxn(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTxnNotFound
		}

		return nil, err
	}

	return txn, nil
}

// UpdateTxnStatus moves a transaction to a new status and bumps the version.
// The row must already be locked.
func (r *StatementRepository) UpdateTxnStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.TxnStatus, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `
		UPDATE bank_transactions
		SET status = $2, version = version + 1, updated_at = $3
		WHERE id = $1`,
		id, status, updatedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTxnNotFound
	}

	return nil
}

// ListTxns lists bank transactions, optionally narrowed by status, account
// or batch.
func (r *StatementRepository) ListTxns(ctx context.Context, filter usecase.TxnFilter) ([]*domain.BankTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txnColumns+`
		FROM bank_transactions
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR source_account_id = $2)
		  AND ($3::text IS NULL OR batch_id = $3)
		ORDER BY id
		LIMIT $4 OFFSET $5`,
		filter.Status, filter.AccountID, filter.BatchID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTxns(rows)
}

// ListUnreconciled pages through transactions still awaiting a settled match
// within the scope.
func (r *StatementRepository) ListUnreconciled(ctx context.Context, scope usecase.RunScope, limit, offset int) ([]*domain.BankTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txnColumns+`
		FROM bank_transactions
		WHERE status <> 'matched'
		  AND ($1::text IS NULL OR source_account_id = $1)
		  AND ($2::text IS NULL OR batch_id = $2)
		ORDER BY id
		LIMIT $3 OFFSET $4`,
		scope.AccountID, scope.BatchID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTxns(rows)
}

func scanTxn(row pgx.Row) (*domain.BankTransaction, error) {
	var (
		t      domain.BankTransaction
		amount pgtype.Numeric
	)

	err := row.Scan(&t.ID, &t.BatchID, &t.SourceAccountID, &t.TxnDate,
		&t.Direction, &amount, &t.Currency, &t.Description, &t.Reference,
		&t.Status, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Amount = numericToDecimal(amount)

	return &t, nil
}

func collectTxns(rows pgx.Rows) ([]*domain.BankTransaction, error) {
	var txns []*domain.BankTransaction

	for rows.Next() {
		txn, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}

		txns = append(txns, txn)
	}

	return txns, rows.Err()
}
