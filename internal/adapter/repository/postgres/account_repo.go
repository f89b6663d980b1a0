package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbase/ledgermatch/internal/domain"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, name, type, currency, active, created_at, updated_at`

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, name, type, currency, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID,
		account.Name,
		account.Type,
		account.Currency,
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	)

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// GetByIDs retrieves accounts by IDs. Missing IDs are simply absent from the
// result.
func (r *AccountRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// SetActive flips the active flag on an account.
func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET active = $2, updated_at = $3 WHERE id = $1`,
		id, active, updatedAt)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account

	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Currency, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	var accounts []*domain.Account

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}

		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}
