package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/infrastructure/metrics"
)

const statsCacheKey = "reconciliation:stats"

// ReviewUseCase handles the human side of matching: listing the review
// queue, accepting and rejecting matches, and reconciliation reporting.
type ReviewUseCase struct {
	txManager   TransactionManager
	matchRepo   MatchRepository
	stmtRepo    StatementRepository
	checkRepo   CheckRepository
	outboxRepo  OutboxRepository
	ledgerUC    *LedgerUseCase
	consistency domain.ConsistencyPolicy
	idGen       IDGenerator
	cache       Cache
	metrics     *metrics.Metrics
	retrier     Retrier
	logger      *slog.Logger
}

// NewReviewUseCase creates a new ReviewUseCase.
func NewReviewUseCase(
	txManager TransactionManager,
	matchRepo MatchRepository,
	stmtRepo StatementRepository,
	checkRepo CheckRepository,
	outboxRepo OutboxRepository,
	ledgerUC *LedgerUseCase,
	consistency domain.ConsistencyPolicy,
	idGen IDGenerator,
	cache Cache,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ReviewUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewUseCase{
		txManager:   txManager,
		matchRepo:   matchRepo,
		stmtRepo:    stmtRepo,
		checkRepo:   checkRepo,
		outboxRepo:  outboxRepo,
		ledgerUC:    ledgerUC,
		consistency: consistency,
		idGen:       idGen,
		cache:       cache,
		metrics:     m,
		logger:      logger,
	}
}

// WithRetrier re-runs decision transactions on transient store failures.
// Decisions race the matcher for the same transaction and match rows, so
// deadlocks are expected under load.
func (uc *ReviewUseCase) WithRetrier(r Retrier) *ReviewUseCase {
	uc.retrier = r
	return uc
}

func (uc *ReviewUseCase) retry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}
	return uc.retrier.Retry(ctx, op)
}

// AcceptMatchInput carries an accept decision.
type AcceptMatchInput struct {
	MatchID         string
	ExpectedVersion int64
	Note            string
}

// RejectMatchInput carries a reject decision. Reason is mandatory.
type RejectMatchInput struct {
	MatchID         string
	ExpectedVersion int64
	Reason          string
}

// BatchResult is the per-item outcome of a batch decision.
type BatchResult struct {
	MatchID string
	Match   *domain.ReconciliationMatch
	Err     error
}

// ListPending returns the review queue, highest score first.
func (uc *ReviewUseCase) ListPending(ctx context.Context, limit, offset int) ([]*domain.ReconciliationMatch, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.matchRepo.ListByStatus(ctx, domain.MatchStatusPendingReview, limit, offset)
}

// GetMatch retrieves a match by ID.
func (uc *ReviewUseCase) GetMatch(ctx context.Context, id string) (*domain.ReconciliationMatch, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	return uc.matchRepo.GetByID(ctx, id)
}

// AcceptMatch confirms a pending match: the journal entries flip to
// reconciled, the bank transaction to matched. Open consistency checks at
// or above the blocking severity refuse the accept.
//
// Locks are taken in the matcher's order, bank transaction before match.
func (uc *ReviewUseCase) AcceptMatch(ctx context.Context, input AcceptMatchInput) (*domain.ReconciliationMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	if err := validateDecision(input.MatchID, input.ExpectedVersion); err != nil {
		return nil, err
	}

	// 1. Refuse early when open checks implicate the match. The check runs
	// again under the lock below; this read just fails fast.
	blocking, err := uc.checkRepo.ListOpenByMatchIDs(ctx, []string{input.MatchID}, uc.consistency.BlockSeverity)
	if err != nil {
		return nil, err
	}
	if len(blocking) > 0 {
		uc.metrics.RecordReviewBlocked()
		return nil, newConsistencyBlock(input.MatchID, blocking)
	}

	if err := uc.retry(ctx, func() error {
		return uc.acceptMatchTx(ctx, input)
	}); err != nil {
		return nil, err
	}

	uc.metrics.RecordReviewDecision("accepted")
	uc.invalidateStats(ctx)

	return uc.matchRepo.GetByID(ctx, input.MatchID)
}

// acceptMatchTx is the transactional core of AcceptMatch, run under the
// retrier.
func (uc *ReviewUseCase) acceptMatchTx(ctx context.Context, input AcceptMatchInput) error {
	// Read the match to learn its bank transaction, then lock in order.
	match, err := uc.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	txn, err := uc.stmtRepo.GetTxnByIDForUpdate(ctx, tx, match.BankTxnID)
	if err != nil {
		return err
	}
	if txn.Status == domain.TxnStatusMatched {
		return domain.NewAlreadyProcessedError("bank_transaction", txn.ID, string(txn.Status))
	}

	locked, err := uc.matchRepo.GetByIDForUpdate(ctx, tx, input.MatchID)
	if err != nil {
		return err
	}
	if locked.Status != domain.MatchStatusPendingReview {
		return domain.NewAlreadyProcessedError("reconciliation_match", locked.ID, string(locked.Status))
	}
	if locked.Version != input.ExpectedVersion {
		return domain.NewConflictError("reconciliation_match", locked.ID, input.ExpectedVersion, locked.Version)
	}

	blocking, err := uc.checkRepo.ListOpenByMatchIDs(ctx, []string{locked.ID}, uc.consistency.BlockSeverity)
	if err != nil {
		return err
	}
	if len(blocking) > 0 {
		uc.metrics.RecordReviewBlocked()
		return newConsistencyBlock(locked.ID, blocking)
	}

	// Reconcile the entries and settle both sides.
	if err := uc.ledgerUC.ReconcileEntriesTx(ctx, tx, locked.EntryIDs, now); err != nil {
		return err
	}

	if err := uc.matchRepo.UpdateStatus(ctx, tx, locked.ID, domain.MatchStatusAccepted, input.Note, &now, now); err != nil {
		return err
	}

	if err := uc.stmtRepo.UpdateTxnStatus(ctx, tx, txn.ID, domain.TxnStatusMatched, now); err != nil {
		return err
	}

	if err := uc.emitDecisionEvent(ctx, tx, locked, domain.MatchStatusAccepted, domain.EventTypeMatchAccepted, input.Note); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RejectMatch declines a pending match. The pairing is tombstoned: the
// matcher never proposes the same entry set for this transaction again.
// The bank transaction returns to the unmatched pool.
func (uc *ReviewUseCase) RejectMatch(ctx context.Context, input RejectMatchInput) (*domain.ReconciliationMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	if err := validateDecision(input.MatchID, input.ExpectedVersion); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, domain.ErrRejectReasonRequired
	}

	if err := uc.retry(ctx, func() error {
		return uc.rejectMatchTx(ctx, input)
	}); err != nil {
		return nil, err
	}

	uc.metrics.RecordReviewDecision("rejected")
	uc.invalidateStats(ctx)

	return uc.matchRepo.GetByID(ctx, input.MatchID)
}

// rejectMatchTx is the transactional core of RejectMatch, run under the
// retrier.
func (uc *ReviewUseCase) rejectMatchTx(ctx context.Context, input RejectMatchInput) error {
	match, err := uc.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	txn, err := uc.stmtRepo.GetTxnByIDForUpdate(ctx, tx, match.BankTxnID)
	if err != nil {
		return err
	}

	locked, err := uc.matchRepo.GetByIDForUpdate(ctx, tx, input.MatchID)
	if err != nil {
		return err
	}
	if locked.Status != domain.MatchStatusPendingReview {
		return domain.NewAlreadyProcessedError("reconciliation_match", locked.ID, string(locked.Status))
	}
	if locked.Version != input.ExpectedVersion {
		return domain.NewConflictError("reconciliation_match", locked.ID, input.ExpectedVersion, locked.Version)
	}

	if err := uc.matchRepo.UpdateStatus(ctx, tx, locked.ID, domain.MatchStatusRejected, input.Reason, &now, now); err != nil {
		return err
	}

	if txn.Status == domain.TxnStatusPending {
		if err := uc.stmtRepo.UpdateTxnStatus(ctx, tx, txn.ID, domain.TxnStatusUnmatched, now); err != nil {
			return err
		}
	}

	if err := uc.emitDecisionEvent(ctx, tx, locked, domain.MatchStatusRejected, domain.EventTypeMatchRejected, input.Reason); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// BatchAccept applies accept decisions independently; one failure never
// stops the rest.
func (uc *ReviewUseCase) BatchAccept(ctx context.Context, inputs []AcceptMatchInput) []BatchResult {
	results := make([]BatchResult, 0, len(inputs))
	for _, input := range inputs {
		match, err := uc.AcceptMatch(ctx, input)
		results = append(results, BatchResult{MatchID: input.MatchID, Match: match, Err: err})
	}
	return results
}

// BatchReject applies reject decisions independently.
func (uc *ReviewUseCase) BatchReject(ctx context.Context, inputs []RejectMatchInput) []BatchResult {
	results := make([]BatchResult, 0, len(inputs))
	for _, input := range inputs {
		match, err := uc.RejectMatch(ctx, input)
		results = append(results, BatchResult{MatchID: input.MatchID, Match: match, Err: err})
	}
	return results
}

// Stats reports reconciliation coverage. Results are cached briefly; the
// cache is best-effort and never fails the read.
func (uc *ReviewUseCase) Stats(ctx context.Context) (*domain.ReconciliationStats, error) {
	if data, err := uc.cache.Get(ctx, statsCacheKey); err == nil {
		var cached domain.ReconciliationStats
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return &cached, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		uc.logger.Warn("stats cache read failed", "error", err)
	}

	stats, err := uc.matchRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	open, err := uc.checkRepo.CountOpenBySeverity(ctx)
	if err != nil {
		return nil, err
	}
	stats.OpenChecks = open
	stats.GeneratedAt = time.Now().UTC()

	if data, err := json.Marshal(stats); err == nil {
		if err := uc.cache.Set(ctx, statsCacheKey, data, StatsCacheTTL); err != nil {
			uc.logger.Warn("stats cache write failed", "error", err)
		}
	}

	return stats, nil
}

func (uc *ReviewUseCase) invalidateStats(ctx context.Context) {
	if err := uc.cache.Delete(ctx, statsCacheKey); err != nil {
		uc.logger.Warn("stats cache invalidation failed", "error", err)
	}
}

func (uc *ReviewUseCase) emitDecisionEvent(ctx context.Context, tx Transaction, match *domain.ReconciliationMatch, status domain.MatchStatus, eventType, reason string) error {
	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   match.ID,
		AggregateType: domain.AggregateTypeMatch,
		EventType:     eventType,
		Payload: toPayloadMap(domain.MatchRoutedEvent{
			MatchID:   match.ID,
			BankTxnID: match.BankTxnID,
			EntryIDs:  match.EntryIDs,
			Score:     match.Score,
			Status:    string(status),
			Reason:    reason,
		}),
		CreatedAt: time.Now().UTC(),
	})
}

func validateDecision(matchID string, expectedVersion int64) error {
	if err := domain.ValidateID(matchID); err != nil {
		return err
	}
	if expectedVersion < 1 {
		return domain.NewValidationError("expected_version", "must be a positive version number")
	}
	return nil
}

func newConsistencyBlock(matchID string, checks []*domain.ConsistencyCheck) error {
	ids := make([]string, 0, len(checks))
	for _, c := range checks {
		ids = append(ids, c.ID)
	}
	return &domain.ConsistencyBlockError{MatchID: matchID, CheckIDs: ids}
}
