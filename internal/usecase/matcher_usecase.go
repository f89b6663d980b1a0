package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/infrastructure/metrics"
)

// MatcherUseCase drives matching runs: it pages through unreconciled bank
// transactions, scores candidate entry sets, and routes each transaction by
// threshold. Every transaction is handled independently; one failure never
// aborts the rest of the run.
type MatcherUseCase struct {
	txManager   TransactionManager
	matchRepo   MatchRepository
	stmtRepo    StatementRepository
	entryRepo   EntryRepository
	accountRepo AccountRepository
	runRepo     RunRepository
	outboxRepo  OutboxRepository
	ledgerUC    *LedgerUseCase
	checker     *ConsistencyUseCase
	scorer      *ScoringEngine
	routing     domain.RoutingPolicy
	idGen       IDGenerator
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewMatcherUseCase creates a new MatcherUseCase.
func NewMatcherUseCase(
	txManager TransactionManager,
	matchRepo MatchRepository,
	stmtRepo StatementRepository,
	entryRepo EntryRepository,
	accountRepo AccountRepository,
	runRepo RunRepository,
	outboxRepo OutboxRepository,
	ledgerUC *LedgerUseCase,
	checker *ConsistencyUseCase,
	scorer *ScoringEngine,
	routing domain.RoutingPolicy,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MatcherUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatcherUseCase{
		txManager:   txManager,
		matchRepo:   matchRepo,
		stmtRepo:    stmtRepo,
		entryRepo:   entryRepo,
		accountRepo: accountRepo,
		runRepo:     runRepo,
		outboxRepo:  outboxRepo,
		ledgerUC:    ledgerUC,
		checker:     checker,
		scorer:      scorer,
		routing:     routing,
		idGen:       idGen,
		metrics:     m,
		logger:      logger,
	}
}

type routeOutcome int

const (
	outcomeSkipped routeOutcome = iota
	outcomeAutoAccepted
	outcomePendingReview
	outcomeUnmatched
)

// Run executes one matching pass over the scope. Cancelling the context
// aborts the run between transactions; work already committed stays.
func (uc *MatcherUseCase) Run(ctx context.Context, scope RunScope) (*domain.MatcherRun, error) {
	started := time.Now().UTC()

	run := &domain.MatcherRun{
		ID:             uc.idGen.Generate(),
		ScopeAccountID: scope.AccountID,
		ScopeBatchID:   scope.BatchID,
		Status:         domain.RunStatusRunning,
		StartedAt:      started,
	}

	if err := uc.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	txns, err := uc.collectScope(ctx, scope)
	if err != nil {
		uc.finishRun(run, domain.RunStatusFailed)
		return run, err
	}

	aborted := false
	for _, txn := range txns {
		if ctx.Err() != nil {
			aborted = true
			break
		}

		outcome, downgraded, err := uc.processTxn(ctx, run.ID, txn.ID)
		run.Processed++
		if err != nil {
			run.Errors++
			uc.logger.Error("matcher: transaction failed",
				"run_id", run.ID, "bank_txn_id", txn.ID, "error", err)
			continue
		}

		if downgraded {
			run.Downgraded++
		}
		switch outcome {
		case outcomeAutoAccepted:
			run.AutoAccepted++
		case outcomePendingReview:
			run.PendingReview++
		case outcomeUnmatched:
			run.Unmatched++
		case outcomeSkipped:
			run.Skipped++
		}
		uc.metrics.RecordMatchOutcome(outcomeLabel(outcome))
	}

	status := domain.RunStatusCompleted
	if aborted {
		status = domain.RunStatusAborted
	}
	uc.finishRun(run, status)

	uc.metrics.RecordMatcherRun(string(status), time.Since(started))

	// A completed pass is the natural moment to re-examine cross-cutting
	// consistency; failures here are findings lost, not matches lost.
	if !aborted && uc.checker != nil {
		if _, err := uc.checker.Scan(ctx); err != nil {
			uc.logger.Error("matcher: consistency scan failed", "run_id", run.ID, "error", err)
		}
	}

	return run, nil
}

// GetRun retrieves a matcher run by ID.
func (uc *MatcherUseCase) GetRun(ctx context.Context, id string) (*domain.MatcherRun, error) {
	return uc.runRepo.GetByID(ctx, id)
}

// ListRuns lists matcher runs, most recent first.
func (uc *MatcherUseCase) ListRuns(ctx context.Context, limit, offset int) ([]*domain.MatcherRun, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.runRepo.List(ctx, limit, offset)
}

// collectScope snapshots the transactions to process before any routing
// mutates their statuses, so paging stays stable.
func (uc *MatcherUseCase) collectScope(ctx context.Context, scope RunScope) ([]*domain.BankTransaction, error) {
	var all []*domain.BankTransaction
	offset := 0
	for {
		page, err := uc.stmtRepo.ListUnreconciled(ctx, scope, MatcherPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < MatcherPageSize {
			return all, nil
		}
		offset += len(page)
	}
}

func (uc *MatcherUseCase) finishRun(run *domain.MatcherRun, status domain.RunStatus) {
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	if err := uc.runRepo.Update(context.Background(), run); err != nil {
		uc.logger.Error("matcher: failed to persist run result", "run_id", run.ID, "error", err)
	}
}

// processTxn scores and routes one bank transaction. It re-reads the
// transaction so re-runs observe the latest state.
func (uc *MatcherUseCase) processTxn(ctx context.Context, runID, txnID string) (routeOutcome, bool, error) {
	txn, err := uc.stmtRepo.GetTxnByID(ctx, txnID)
	if err != nil {
		return outcomeSkipped, false, err
	}

	existing, err := uc.matchRepo.ListByTxn(ctx, txn.ID)
	if err != nil {
		return outcomeSkipped, false, err
	}

	rejectedSets := make(map[string]bool)
	hadRejection := false
	var openPending *domain.ReconciliationMatch
	for _, m := range existing {
		switch m.Status {
		case domain.MatchStatusAutoAccepted, domain.MatchStatusAccepted:
			// Already settled; a re-run never creates a second claim.
			return outcomeSkipped, false, nil
		case domain.MatchStatusRejected:
			rejectedSets[m.EntrySetKey()] = true
			hadRejection = true
		case domain.MatchStatusPendingReview:
			if openPending == nil || m.CreatedAt.After(openPending.CreatedAt) {
				openPending = m
			}
		}
	}

	best, err := uc.bestCandidate(ctx, txn, rejectedSets)
	if err != nil {
		return outcomeSkipped, false, err
	}

	autoAccept, reviewFloor := uc.routing.ThresholdsFor(txn.SourceAccountID)

	if best == nil || best.score < reviewFloor {
		// Below the floor nothing is persisted; the run counters carry the
		// outcome.
		if openPending != nil {
			return outcomeSkipped, false, nil
		}
		return outcomeUnmatched, false, nil
	}

	downgrade, err := uc.downgradeReason(ctx, txn, best, hadRejection)
	if err != nil {
		return outcomeSkipped, false, err
	}

	if best.score >= autoAccept && downgrade == "" {
		if err := uc.routeAutoAccept(ctx, runID, txn, best, openPending); err != nil {
			return outcomeSkipped, false, err
		}
		uc.metrics.RecordMatchScore(best.score)
		return outcomeAutoAccepted, false, nil
	}

	downgraded := best.score >= autoAccept && downgrade != ""
	if downgraded {
		uc.logger.Info("matcher: auto-accept downgraded to review",
			"bank_txn_id", txn.ID, "score", best.score, "reason", downgrade)
	}

	created, err := uc.routePendingReview(ctx, runID, txn, best, openPending)
	if err != nil {
		return outcomeSkipped, false, err
	}
	if !created {
		return outcomeSkipped, downgraded, nil
	}
	uc.metrics.RecordMatchScore(best.score)
	return outcomePendingReview, downgraded, nil
}

// scoredCandidate is one candidate entry set with its computed score.
type scoredCandidate struct {
	entries   []*domain.JournalEntry
	score     int
	breakdown domain.ScoreBreakdown
}

func (c *scoredCandidate) entryIDs() []string {
	ids := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func (c *scoredCandidate) hasDraft() bool {
	for _, e := range c.entries {
		if e.Status == domain.EntryStatusDraft {
			return true
		}
	}
	return false
}

// bestCandidate builds, scores and ranks candidates, skipping rejected
// pairings outright so a tombstoned entry set can never resurface.
func (uc *MatcherUseCase) bestCandidate(ctx context.Context, txn *domain.BankTransaction, rejectedSets map[string]bool) (*scoredCandidate, error) {
	from := txn.TxnDate.AddDate(0, 0, -CandidateWindowDays)
	to := txn.TxnDate.AddDate(0, 0, CandidateWindowDays)

	entries, err := uc.entryRepo.ListCandidates(ctx, txn.SourceAccountID, from, to, CandidateFetchLimit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	accounts, err := uc.candidateAccounts(ctx, txn, entries)
	if err != nil {
		return nil, err
	}

	history, err := uc.matchRepo.ListSettledTxnsByAccount(ctx, txn.SourceAccountID, HistoryFetchLimit)
	if err != nil {
		return nil, err
	}

	sets := make([][]*domain.JournalEntry, 0, len(entries))
	for _, e := range entries {
		sets = append(sets, []*domain.JournalEntry{e})
	}
	sets = append(sets, uc.aggregateSets(txn, entries)...)

	var best *scoredCandidate
	for _, set := range sets {
		ids := make([]string, 0, len(set))
		for _, e := range set {
			ids = append(ids, e.ID)
		}
		if rejectedSets[domain.EntrySetKey(ids)] {
			continue
		}

		score, breakdown := uc.scorer.Score(ScoreInput{
			Txn:      txn,
			Entries:  set,
			Accounts: accounts,
			History:  history,
		})

		candidate := &scoredCandidate{entries: set, score: score, breakdown: breakdown}
		if betterCandidate(candidate, best) {
			best = candidate
		}
	}

	return best, nil
}

// betterCandidate ranks by score, then prefers fewer entries, then falls
// back to the canonical entry-set key so runs stay deterministic.
func betterCandidate(a, b *scoredCandidate) bool {
	if b == nil {
		return true
	}
	if a.score != b.score {
		return a.score > b.score
	}
	if len(a.entries) != len(b.entries) {
		return len(a.entries) < len(b.entries)
	}
	return domain.EntrySetKey(a.entryIDs()) < domain.EntrySetKey(b.entryIDs())
}

// aggregateSets enumerates combinations of up to MaxAggregateSize entries
// whose amounts sum to the transaction amount within the fee tolerance.
func (uc *MatcherUseCase) aggregateSets(txn *domain.BankTransaction, entries []*domain.JournalEntry) [][]*domain.JournalEntry {
	maxSize := uc.scorer.policy.MaxAggregateSize
	if maxSize < 2 || txn.Amount.IsZero() {
		return nil
	}

	tolerance := txn.Amount.Mul(uc.scorer.policy.FeeTolerance)
	ceiling := txn.Amount.Add(tolerance)
	floor := txn.Amount.Sub(tolerance)

	// Only entries strictly below the target can be components; sort by
	// amount descending so pruning bites early.
	type piece struct {
		entry  *domain.JournalEntry
		amount decimal.Decimal
	}
	var pieces []piece
	for _, e := range entries {
		amount := candidateAmount(txn, []*domain.JournalEntry{e})
		if amount.IsPositive() && amount.LessThan(txn.Amount) {
			pieces = append(pieces, piece{entry: e, amount: amount})
		}
	}
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].amount.GreaterThan(pieces[j].amount) })

	const maxPieces = 24
	if len(pieces) > maxPieces {
		pieces = pieces[:maxPieces]
	}

	var result [][]*domain.JournalEntry
	var current []piece

	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		if len(current) >= 2 && sum.GreaterThanOrEqual(floor) && sum.LessThanOrEqual(ceiling) {
			set := make([]*domain.JournalEntry, 0, len(current))
			for _, p := range current {
				set = append(set, p.entry)
			}
			result = append(result, set)
		}
		if len(current) == maxSize {
			return
		}
		for i := start; i < len(pieces); i++ {
			next := sum.Add(pieces[i].amount)
			if next.GreaterThan(ceiling) {
				continue
			}
			current = append(current, pieces[i])
			walk(i+1, next)
			current = current[:len(current)-1]
		}
	}
	walk(0, decimal.Zero)

	return result
}

// candidateAccounts loads every account the candidate entries touch so the
// scorer can judge business fit without repository access.
func (uc *MatcherUseCase) candidateAccounts(ctx context.Context, txn *domain.BankTransaction, entries []*domain.JournalEntry) (map[string]*domain.Account, error) {
	seen := map[string]bool{txn.SourceAccountID: true}
	ids := []string{txn.SourceAccountID}
	for _, e := range entries {
		for _, l := range e.Lines {
			if !seen[l.AccountID] {
				seen[l.AccountID] = true
				ids = append(ids, l.AccountID)
			}
		}
	}
	sort.Strings(ids)

	accounts, err := uc.accountRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	m := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}
	return m, nil
}

// downgradeReason reports why a qualifying score must not auto-accept:
// a statement batch that failed its balance check, a draft entry in the
// candidate set, or a transaction a human has already rejected a match on.
func (uc *MatcherUseCase) downgradeReason(ctx context.Context, txn *domain.BankTransaction, c *scoredCandidate, hadRejection bool) (string, error) {
	if hadRejection {
		return "prior rejection on transaction", nil
	}
	if c.hasDraft() {
		return "candidate entry not posted", nil
	}

	batch, err := uc.stmtRepo.GetBatchByID(ctx, txn.BatchID)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return "", nil
		}
		return "", err
	}
	if !batch.BalanceOK {
		return "statement batch failed balance check", nil
	}

	return "", nil
}

// routeAutoAccept settles the best candidate in one transaction: the match
// is written already accepted, the bank transaction is marked matched, the
// entries flip to reconciled, and any open pending match is superseded.
func (uc *MatcherUseCase) routeAutoAccept(ctx context.Context, runID string, txn *domain.BankTransaction, c *scoredCandidate, openPending *domain.ReconciliationMatch) error {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	locked, err := uc.stmtRepo.GetTxnByIDForUpdate(ctx, tx, txn.ID)
	if err != nil {
		return err
	}
	if locked.Status == domain.TxnStatusMatched {
		return domain.NewAlreadyProcessedError("bank_transaction", locked.ID, string(locked.Status))
	}

	match := &domain.ReconciliationMatch{
		ID:         uc.idGen.Generate(),
		BankTxnID:  txn.ID,
		EntryIDs:   c.entryIDs(),
		Score:      c.score,
		Breakdown:  c.breakdown,
		Status:     domain.MatchStatusAutoAccepted,
		RunID:      runID,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		ResolvedAt: &now,
	}

	if err := uc.matchRepo.Create(ctx, tx, match); err != nil {
		return err
	}

	if openPending != nil {
		if err := uc.supersede(ctx, tx, openPending, match.ID, now); err != nil {
			return err
		}
	}

	if err := uc.ledgerUC.ReconcileEntriesTx(ctx, tx, match.EntryIDs, now); err != nil {
		return err
	}

	if err := uc.stmtRepo.UpdateTxnStatus(ctx, tx, txn.ID, domain.TxnStatusMatched, now); err != nil {
		return err
	}

	if err := uc.emitMatchEvent(ctx, tx, match, domain.EventTypeMatchAutoAccepted); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if openPending != nil {
		uc.metrics.RecordSuperseded()
	}
	return nil
}

// routePendingReview records the candidate for review. Re-running against
// an unchanged pending match is a no-op; a strictly better score supersedes
// it. Returns whether a new match record was created.
func (uc *MatcherUseCase) routePendingReview(ctx context.Context, runID string, txn *domain.BankTransaction, c *scoredCandidate, openPending *domain.ReconciliationMatch) (bool, error) {
	now := time.Now().UTC()

	if openPending != nil {
		sameSet := openPending.EntrySetKey() == domain.EntrySetKey(c.entryIDs())
		if sameSet && openPending.Score == c.score {
			return false, nil
		}
		if c.score <= openPending.Score {
			return false, nil
		}
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	locked, err := uc.stmtRepo.GetTxnByIDForUpdate(ctx, tx, txn.ID)
	if err != nil {
		return false, err
	}
	if locked.Status == domain.TxnStatusMatched {
		return false, domain.NewAlreadyProcessedError("bank_transaction", locked.ID, string(locked.Status))
	}

	match := &domain.ReconciliationMatch{
		ID:        uc.idGen.Generate(),
		BankTxnID: txn.ID,
		EntryIDs:  c.entryIDs(),
		Score:     c.score,
		Breakdown: c.breakdown,
		Status:    domain.MatchStatusPendingReview,
		RunID:     runID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.matchRepo.Create(ctx, tx, match); err != nil {
		return false, err
	}

	if openPending != nil {
		if err := uc.supersede(ctx, tx, openPending, match.ID, now); err != nil {
			return false, err
		}
	}

	if locked.Status != domain.TxnStatusPending {
		if err := uc.stmtRepo.UpdateTxnStatus(ctx, tx, txn.ID, domain.TxnStatusPending, now); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	if openPending != nil {
		uc.metrics.RecordSuperseded()
	}

	return true, nil
}

// supersede retires an open pending match in favor of a successor. The old
// record keeps its history; only status and the successor link change.
func (uc *MatcherUseCase) supersede(ctx context.Context, tx Transaction, old *domain.ReconciliationMatch, successorID string, now time.Time) error {
	locked, err := uc.matchRepo.GetByIDForUpdate(ctx, tx, old.ID)
	if err != nil {
		return err
	}
	if locked.Status != domain.MatchStatusPendingReview {
		return domain.NewAlreadyProcessedError("reconciliation_match", locked.ID, string(locked.Status))
	}

	if err := uc.matchRepo.UpdateStatus(ctx, tx, locked.ID, domain.MatchStatusSuperseded, "", nil, now); err != nil {
		return err
	}
	return uc.matchRepo.SetSupersededBy(ctx, tx, locked.ID, successorID, now)
}

func (uc *MatcherUseCase) emitMatchEvent(ctx context.Context, tx Transaction, match *domain.ReconciliationMatch, eventType string) error {
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
			Status:    string(match.Status),
			Reason:    match.Reason,
		}),
		CreatedAt: time.Now().UTC(),
	})
}

func outcomeLabel(o routeOutcome) string {
	switch o {
	case outcomeAutoAccepted:
		return "auto_accepted"
	case outcomePendingReview:
		return "pending_review"
	case outcomeUnmatched:
		return "unmatched"
	default:
		return "skipped"
	}
}
