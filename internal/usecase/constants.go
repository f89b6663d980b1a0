package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// MatcherPageSize is how many bank transactions a matcher run pulls per
	// page.
	MatcherPageSize = 200

	// CandidateWindowDays bounds how far an entry date may sit from the
	// transaction date and still be fetched as a candidate. Scoring applies
	// its own bands within the window.
	CandidateWindowDays = 45

	// CandidateFetchLimit caps candidates fetched per transaction.
	CandidateFetchLimit = 100

	// HistoryFetchLimit caps prior settled transactions fetched for
	// history scoring.
	HistoryFetchLimit = 50

	// StatsCacheTTL is how long reconciliation stats stay cached.
	StatsCacheTTL = 30 * time.Second

	// TransferScanLookback bounds how far back the unpaired-transfer
	// detection reads clearing-account lines.
	TransferScanLookback = 30 * 24 * time.Hour
)
