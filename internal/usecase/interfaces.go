package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Account, error)
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// EntryRepository defines data access for journal entries and their lines.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	GetByID(ctx context.Context, id string) (*domain.JournalEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.JournalEntry, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.JournalEntry, error)
	// GetByIDsForUpdate locks entries in sorted-ID order.
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.JournalEntry, error)
	// UpdateStatus bumps the version; the row must already be locked.
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.EntryStatus, postedAt *time.Time, updatedAt time.Time) error
	SetReversedBy(ctx context.Context, tx Transaction, id, reversalID string, updatedAt time.Time) error
	ReplaceLines(ctx context.Context, tx Transaction, entryID string, lines []domain.JournalLine, memo *string, updatedAt time.Time) error
	List(ctx context.Context, filter EntryFilter) ([]*domain.JournalEntry, error)
	// ListCandidates returns posted, unreconciled, unreversed entries that
	// touch the account within the date window, plus drafts for visibility.
	ListCandidates(ctx context.Context, accountID string, from, to time.Time, limit int) ([]*domain.JournalEntry, error)
}

// EntryFilter narrows entry listings.
type EntryFilter struct {
	Status    *domain.EntryStatus
	AccountID *string
	Limit     int
	Offset    int
}

// StatementRepository defines data access for statement batches and bank
// transactions.
type StatementRepository interface {
	CreateBatch(ctx context.Context, tx Transaction, batch *domain.StatementBatch) error
	GetBatchByID(ctx context.Context, id string) (*domain.StatementBatch, error)
	CreateTxn(ctx context.Context, tx Transaction, txn *domain.BankTransaction) error
	GetTxnByID(ctx context.Context, id string) (*domain.BankTransaction, error)
	GetTxnByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.BankTransaction, error)
	// UpdateTxnStatus bumps the version; the row must already be locked.
	UpdateTxnStatus(ctx context.Context, tx Transaction, id string, status domain.TxnStatus, updatedAt time.Time) error
	ListTxns(ctx context.Context, filter TxnFilter) ([]*domain.BankTransaction, error)
	// ListUnreconciled pages through transactions still awaiting a settled
	// match (unmatched or pending) within the scope.
	ListUnreconciled(ctx context.Context, scope RunScope, limit, offset int) ([]*domain.BankTransaction, error)
}

// TxnFilter narrows bank transaction listings.
type TxnFilter struct {
	Status    *domain.TxnStatus
	AccountID *string
	BatchID   *string
	Limit     int
	Offset    int
}

// RunScope bounds a matcher run to an account, a batch, or both.
type RunScope struct {
	AccountID *string
	BatchID   *string
}

// MatchRepository defines data access for reconciliation matches.
type MatchRepository interface {
	Create(ctx context.Context, tx Transaction, match *domain.ReconciliationMatch) error
	GetByID(ctx context.Context, id string) (*domain.ReconciliationMatch, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.ReconciliationMatch, error)
	ListByTxn(ctx context.Context, bankTxnID string) ([]*domain.ReconciliationMatch, error)
	ListByStatus(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.ReconciliationMatch, error)
	// UpdateStatus bumps the version; the row must already be locked.
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.MatchStatus, reason string, resolvedAt *time.Time, updatedAt time.Time) error
	SetSupersededBy(ctx context.Context, tx Transaction, id, successorID string, updatedAt time.Time) error
	// ListOpenOlderThan returns pending_review matches created before the
	// cutoff.
	ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.ReconciliationMatch, error)
	// ListDuplicateSettledTxns returns bank transaction IDs claimed by more
	// than one settled match, with the implicated match IDs.
	ListDuplicateSettledTxns(ctx context.Context) (map[string][]string, error)
	// ListDuplicateSettledEntries returns journal entry IDs claimed by more
	// than one settled match, with the implicated match IDs.
	ListDuplicateSettledEntries(ctx context.Context) (map[string][]string, error)
	// ListSettledTxnsByAccount returns bank transactions with a settled
	// match against the account, most recent first. Used for
	// history-pattern scoring.
	ListSettledTxnsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.BankTransaction, error)
	Stats(ctx context.Context) (*domain.ReconciliationStats, error)
}

// RunRepository defines data access for matcher runs.
type RunRepository interface {
	Create(ctx context.Context, run *domain.MatcherRun) error
	Update(ctx context.Context, run *domain.MatcherRun) error
	GetByID(ctx context.Context, id string) (*domain.MatcherRun, error)
	List(ctx context.Context, limit, offset int) ([]*domain.MatcherRun, error)
}

// CheckRepository defines data access for consistency checks.
type CheckRepository interface {
	// Create reports domain.ErrDuplicateCheck when an open check already
	// carries the fingerprint.
	Create(ctx context.Context, tx Transaction, check *domain.ConsistencyCheck) error
	GetByID(ctx context.Context, id string) (*domain.ConsistencyCheck, error)
	// FindOpenByFingerprint returns nil, domain.ErrCheckNotFound when no
	// open check carries the fingerprint.
	FindOpenByFingerprint(ctx context.Context, fingerprint string) (*domain.ConsistencyCheck, error)
	List(ctx context.Context, filter CheckFilter) ([]*domain.ConsistencyCheck, error)
	// Resolve closes an open check; resolving a resolved check reports
	// domain.AlreadyProcessedError.
	Resolve(ctx context.Context, id string, action domain.ResolutionAction, note string, resolvedAt time.Time) error
	// ListOpenByMatchIDs returns open checks implicating any of the matches
	// at or above the severity.
	ListOpenByMatchIDs(ctx context.Context, matchIDs []string, minSeverity domain.Severity) ([]*domain.ConsistencyCheck, error)
	CountOpenBySeverity(ctx context.Context) (map[domain.Severity]int, error)
}

// CheckFilter narrows consistency check listings.
type CheckFilter struct {
	Status   *domain.CheckStatus
	Type     *domain.CheckType
	Severity *domain.Severity
	Limit    int
	Offset   int
}

// LedgerRepository defines ledger-wide aggregate queries.
type LedgerRepository interface {
	// CheckConsistency sums debits and credits across posted and reconciled
	// entries.
	CheckConsistency(ctx context.Context) (totalDebits, totalCredits decimal.Decimal, err error)
	TrialBalance(ctx context.Context) ([]*domain.TrialBalanceRow, error)
	// TypeTotals returns net balances per account type on each type's
	// normal side.
	TypeTotals(ctx context.Context) (map[domain.AccountType]decimal.Decimal, error)
	// ListAccountLines returns posted lines against one account since the
	// given time, oldest first.
	ListAccountLines(ctx context.Context, accountID string, since time.Time) ([]*domain.AccountLine, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation when the store reports a transient failure
// such as a deadlock or serialization error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
