package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/infrastructure/metrics"
)

// ConsistencyUseCase detects cross-cutting inconsistencies and manages the
// resulting checks. Detection is idempotent: while a check with the same
// fingerprint is open, re-detection counts as a duplicate instead of
// opening another.
type ConsistencyUseCase struct {
	txManager  TransactionManager
	matchRepo  MatchRepository
	checkRepo  CheckRepository
	ledgerRepo LedgerRepository
	outboxRepo OutboxRepository
	policy     domain.ConsistencyPolicy
	idGen      IDGenerator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewConsistencyUseCase creates a new ConsistencyUseCase.
func NewConsistencyUseCase(
	txManager TransactionManager,
	matchRepo MatchRepository,
	checkRepo CheckRepository,
	ledgerRepo LedgerRepository,
	outboxRepo OutboxRepository,
	policy domain.ConsistencyPolicy,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ConsistencyUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsistencyUseCase{
		txManager:  txManager,
		matchRepo:  matchRepo,
		checkRepo:  checkRepo,
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		policy:     policy,
		idGen:      idGen,
		metrics:    m,
		logger:     logger,
	}
}

// ScanReport summarizes one consistency scan.
type ScanReport struct {
	Opened     []*domain.ConsistencyCheck
	Duplicates int
	Errors     int
}

// ResolveCheckInput carries a check resolution.
type ResolveCheckInput struct {
	CheckID string
	Action  domain.ResolutionAction
	Note    string
}

// Scan runs every detection and opens checks for new findings. Findings
// already tracked by an open check count as duplicates. Detection errors
// are counted and logged; a failing detector never hides the others'
// findings.
func (uc *ConsistencyUseCase) Scan(ctx context.Context) (*ScanReport, error) {
	now := time.Now().UTC()
	report := &ScanReport{}

	var findings []*domain.ConsistencyCheck
	for _, detect := range []func(context.Context, time.Time) ([]*domain.ConsistencyCheck, error){
		uc.detectDuplicateMatches,
		uc.detectUnpairedTransfers,
		uc.detectStaleReviews,
	} {
		found, err := detect(ctx, now)
		if err != nil {
			report.Errors++
			uc.logger.Error("consistency: detection failed", "error", err)
			continue
		}
		findings = append(findings, found...)
	}

	for _, finding := range findings {
		opened, err := uc.openCheck(ctx, finding, now)
		if err != nil {
			report.Errors++
			uc.logger.Error("consistency: failed to open check",
				"fingerprint", finding.Fingerprint, "error", err)
			continue
		}
		if opened {
			report.Opened = append(report.Opened, finding)
		} else {
			report.Duplicates++
		}
	}

	return report, nil
}

// GetCheck retrieves a check by ID.
func (uc *ConsistencyUseCase) GetCheck(ctx context.Context, id string) (*domain.ConsistencyCheck, error) {
	if err := domain.ValidateID(id); err != nil {
		return nil, err
	}
	return uc.checkRepo.GetByID(ctx, id)
}

// ListChecks lists checks, newest first.
func (uc *ConsistencyUseCase) ListChecks(ctx context.Context, filter CheckFilter) ([]*domain.ConsistencyCheck, error) {
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, domain.ErrInvalidCheckType
	}
	return uc.checkRepo.List(ctx, filter)
}

// ResolveCheck closes an open check. Resolution records the operator's
// verdict; it never mutates the implicated matches or entries.
func (uc *ConsistencyUseCase) ResolveCheck(ctx context.Context, input ResolveCheckInput) (*domain.ConsistencyCheck, error) {
	if err := domain.ValidateID(input.CheckID); err != nil {
		return nil, err
	}
	if !input.Action.Valid() {
		return nil, domain.ErrInvalidAction
	}

	now := time.Now().UTC()
	if err := uc.checkRepo.Resolve(ctx, input.CheckID, input.Action, input.Note, now); err != nil {
		return nil, err
	}

	uc.metrics.RecordCheckResolved(string(input.Action))

	return uc.checkRepo.GetByID(ctx, input.CheckID)
}

// openCheck creates the check and its event atomically unless an open
// check already carries the fingerprint. Returns whether a check was
// opened.
func (uc *ConsistencyUseCase) openCheck(ctx context.Context, finding *domain.ConsistencyCheck, now time.Time) (bool, error) {
	_, err := uc.checkRepo.FindOpenByFingerprint(ctx, finding.Fingerprint)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrCheckNotFound) {
		return false, err
	}

	finding.ID = uc.idGen.Generate()
	finding.Status = domain.CheckStatusOpen
	finding.CreatedAt = now

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if err := uc.checkRepo.Create(ctx, tx, finding); err != nil {
		// A concurrent scan won the race; the finding is tracked.
		if errors.Is(err, domain.ErrDuplicateCheck) {
			return false, nil
		}
		return false, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   finding.ID,
		AggregateType: domain.AggregateTypeCheck,
		EventType:     domain.EventTypeCheckOpened,
		Payload: toPayloadMap(domain.CheckOpenedEvent{
			CheckID:   finding.ID,
			CheckType: string(finding.CheckType),
			Severity:  string(finding.Severity),
			Detail:    finding.Detail,
		}),
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	uc.metrics.RecordCheckOpened(string(finding.CheckType), string(finding.Severity))
	uc.logger.Warn("consistency check opened",
		"check_id", finding.ID,
		"check_type", finding.CheckType,
		"severity", finding.Severity,
		"detail", finding.Detail)

	return true, nil
}

// detectDuplicateMatches finds bank transactions and journal entries
// claimed by more than one settled match.
func (uc *ConsistencyUseCase) detectDuplicateMatches(ctx context.Context, _ time.Time) ([]*domain.ConsistencyCheck, error) {
	var findings []*domain.ConsistencyCheck

	dupTxns, err := uc.matchRepo.ListDuplicateSettledTxns(ctx)
	if err != nil {
		return nil, err
	}
	for txnID, matchIDs := range dupTxns {
		ids := append([]string{"txn:" + txnID}, matchIDs...)
		findings = append(findings, &domain.ConsistencyCheck{
			CheckType:   domain.CheckTypeDuplicateMatch,
			Severity:    domain.SeverityCritical,
			Fingerprint: domain.CheckFingerprint(domain.CheckTypeDuplicateMatch, ids...),
			BankTxnIDs:  []string{txnID},
			MatchIDs:    matchIDs,
			Detail:      fmt.Sprintf("bank transaction %s is claimed by %d settled matches", txnID, len(matchIDs)),
		})
	}

	dupEntries, err := uc.matchRepo.ListDuplicateSettledEntries(ctx)
	if err != nil {
		return nil, err
	}
	for entryID, matchIDs := range dupEntries {
		ids := append([]string{"entry:" + entryID}, matchIDs...)
		findings = append(findings, &domain.ConsistencyCheck{
			CheckType:   domain.CheckTypeDuplicateMatch,
			Severity:    domain.SeverityCritical,
			Fingerprint: domain.CheckFingerprint(domain.CheckTypeDuplicateMatch, ids...),
			MatchIDs:    matchIDs,
			Detail:      fmt.Sprintf("journal entry %s is claimed by %d settled matches", entryID, len(matchIDs)),
		})
	}

	return findings, nil
}

// detectUnpairedTransfers pairs clearing-account legs by equal amount
// within the transfer window and flags legs left unpaired past it.
func (uc *ConsistencyUseCase) detectUnpairedTransfers(ctx context.Context, now time.Time) ([]*domain.ConsistencyCheck, error) {
	var findings []*domain.ConsistencyCheck

	since := now.Add(-TransferScanLookback)
	for _, accountID := range uc.policy.ClearingAccountIDs {
		lines, err := uc.ledgerRepo.ListAccountLines(ctx, accountID, since)
		if err != nil {
			return nil, err
		}

		accountID := accountID
		for _, leg := range unpairedLegs(lines, uc.policy.TransferPairWindow, now) {
			findings = append(findings, &domain.ConsistencyCheck{
				CheckType:   domain.CheckTypeUnpairedTransfer,
				Severity:    domain.SeverityHigh,
				Fingerprint: domain.CheckFingerprint(domain.CheckTypeUnpairedTransfer, leg.LineID),
				AccountID:   &accountID,
				Detail: fmt.Sprintf("clearing account %s: %s of %s on %s has no opposite leg within %s",
					accountID, leg.Direction, leg.Amount.String(),
					leg.EntryDate.Format("2006-01-02"), uc.policy.TransferPairWindow),
			})
		}
	}

	return findings, nil
}

// unpairedLegs greedily pairs each debit with the earliest unused credit of
// equal amount within the window, then reports legs that stayed unpaired
// longer than the window. Lines arrive oldest first.
func unpairedLegs(lines []*domain.AccountLine, window time.Duration, now time.Time) []*domain.AccountLine {
	used := make([]bool, len(lines))
	for i, debit := range lines {
		if used[i] || debit.Direction != domain.DirectionDebit {
			continue
		}
		for j, credit := range lines {
			if used[j] || credit.Direction != domain.DirectionCredit || !credit.Amount.Equal(debit.Amount) {
				continue
			}
			gap := credit.EntryDate.Sub(debit.EntryDate)
			if gap < 0 {
				gap = -gap
			}
			if gap <= window {
				used[i], used[j] = true, true
				break
			}
		}
	}

	cutoff := now.Add(-window)
	var out []*domain.AccountLine
	for i, line := range lines {
		if !used[i] && line.EntryDate.Before(cutoff) {
			out = append(out, line)
		}
	}
	return out
}

// detectStaleReviews flags pending matches that outlived the review age.
func (uc *ConsistencyUseCase) detectStaleReviews(ctx context.Context, now time.Time) ([]*domain.ConsistencyCheck, error) {
	cutoff := now.Add(-uc.policy.StaleReviewAge)
	matches, err := uc.matchRepo.ListOpenOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var findings []*domain.ConsistencyCheck
	for _, m := range matches {
		findings = append(findings, &domain.ConsistencyCheck{
			CheckType:   domain.CheckTypeStaleReview,
			Severity:    domain.SeverityMedium,
			Fingerprint: domain.CheckFingerprint(domain.CheckTypeStaleReview, m.ID),
			BankTxnIDs:  []string{m.BankTxnID},
			MatchIDs:    []string{m.ID},
			Detail: fmt.Sprintf("match %s has been pending review since %s",
				m.ID, m.CreatedAt.Format(time.RFC3339)),
		})
	}
	return findings, nil
}
