package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/infrastructure/metrics"
)

// StatementUseCase ingests bank statement batches and serves transaction
// queries.
type StatementUseCase struct {
	txManager   TransactionManager
	stmtRepo    StatementRepository
	accountRepo AccountRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

// NewStatementUseCase creates a new StatementUseCase.
func NewStatementUseCase(
	txManager TransactionManager,
	stmtRepo StatementRepository,
	accountRepo AccountRepository,
	idGen IDGenerator,
	m *metrics.Metrics,
) *StatementUseCase {
	return &StatementUseCase{
		txManager:   txManager,
		stmtRepo:    stmtRepo,
		accountRepo: accountRepo,
		idGen:       idGen,
		metrics:     m,
	}
}

// TxnInput is one statement row.
type TxnInput struct {
	TxnDate     time.Time
	Direction   domain.TxnDirection
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   string
}

// IngestStatementInput carries a full statement import.
type IngestStatementInput struct {
	SourceAccountID string
	StatementDate   time.Time
	OpeningBalance  decimal.Decimal
	ClosingBalance  decimal.Decimal
	Transactions    []TxnInput
}

// IngestStatement validates and stores a statement batch with its
// transactions in one database transaction. A statement whose opening
// balance plus signed transaction amounts misses its closing balance is
// still stored, flagged BalanceOK=false; its transactions are matchable
// but never auto-accepted.
func (uc *StatementUseCase) IngestStatement(ctx context.Context, input IngestStatementInput) (*domain.StatementBatch, []*domain.BankTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	// 1. Validate the account and the rows.
	if err := domain.ValidateID(input.SourceAccountID); err != nil {
		return nil, nil, err
	}
	if len(input.Transactions) == 0 {
		return nil, nil, domain.NewValidationError("transactions", "statement has no transactions")
	}

	account, err := uc.accountRepo.GetByID(ctx, input.SourceAccountID)
	if err != nil {
		return nil, nil, err
	}
	if !account.Active {
		return nil, nil, domain.ErrAccountInactive
	}

	now := time.Now().UTC()
	batchID := uc.idGen.Generate()

	txns := make([]*domain.BankTransaction, 0, len(input.Transactions))
	for i, row := range input.Transactions {
		txn := &domain.BankTransaction{
			ID:              uc.idGen.Generate(),
			BatchID:         batchID,
			SourceAccountID: account.ID,
			TxnDate:         row.TxnDate,
			Direction:       row.Direction,
			Amount:          row.Amount,
			Currency:        row.Currency,
			Description:     row.Description,
			Reference:       row.Reference,
			Status:          domain.TxnStatusUnmatched,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := txn.Validate(); err != nil {
			return nil, nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if txn.Currency != account.Currency {
			return nil, nil, domain.NewValidationError(
				fmt.Sprintf("transactions[%d].currency", i),
				fmt.Sprintf("statement currency %s does not match account currency %s", txn.Currency, account.Currency))
		}
		txns = append(txns, txn)
	}

	// 2. Balance check. Failure flags the batch rather than refusing it;
	// the statement is still evidence, just weaker.
	batch := &domain.StatementBatch{
		ID:              batchID,
		SourceAccountID: account.ID,
		StatementDate:   input.StatementDate,
		OpeningBalance:  input.OpeningBalance,
		ClosingBalance:  input.ClosingBalance,
		TxnCount:        len(txns),
		BalanceOK:       domain.StatementBalances(input.OpeningBalance, input.ClosingBalance, txns),
		ImportedAt:      now,
	}

	// 3. Store everything atomically.
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.stmtRepo.CreateBatch(ctx, tx, batch); err != nil {
		return nil, nil, err
	}
	for _, txn := range txns {
		if err := uc.stmtRepo.CreateTxn(ctx, tx, txn); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	if uc.metrics != nil {
		uc.metrics.BatchesIngested.Inc()
		uc.metrics.TxnsIngested.Add(float64(len(txns)))
		if !batch.BalanceOK {
			uc.metrics.BatchBalanceFailures.Inc()
		}
	}

	return batch, txns, nil
}

// GetBatch retrieves a statement batch by ID.
func (uc *StatementUseCase) GetBatch(ctx context.Context, id string) (*domain.StatementBatch, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	return uc.stmtRepo.GetBatchByID(ctx, id)
}

// GetTransaction retrieves a bank transaction by ID.
func (uc *StatementUseCase) GetTransaction(ctx context.Context, id string) (*domain.BankTransaction, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	return uc.stmtRepo.GetTxnByID(ctx, id)
}

// ListTransactions lists bank transactions with optional filters.
func (uc *StatementUseCase) ListTransactions(ctx context.Context, filter TxnFilter) ([]*domain.BankTransaction, error) {
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.stmtRepo.ListTxns(ctx, filter)
}
