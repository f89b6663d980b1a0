package domain

import "time"

// RunStatus is the lifecycle state of a matcher run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	// RunStatusAborted means the run was cancelled mid-way. Transactions
	// already routed stay committed; the counters cover only those.
	RunStatusAborted RunStatus = "aborted"
)

// MatcherRun records one pass of the matcher over a scope of unreconciled
// bank transactions.
type MatcherRun struct {
	ID             string
	ScopeAccountID *string
	ScopeBatchID   *string
	Status         RunStatus
	Processed      int
	AutoAccepted   int
	PendingReview  int
	Unmatched      int
	// Downgraded counts transactions whose best score cleared the
	// auto-accept threshold but were routed to review anyway (failed batch
	// balance, draft candidate, or a prior rejection on the transaction).
	Downgraded  int
	Skipped     int
	Errors      int
	StartedAt   time.Time
	CompletedAt *time.Time
}
