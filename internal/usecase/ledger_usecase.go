package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
)

var (
	// ErrInconsistentLedger is returned when posted debits and credits
	// disagree ledger-wide or the accounting equation does not net to zero.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: debits do not equal credits")
)

// LedgerUseCase owns the journal entry lifecycle after drafting: posting,
// voiding, reconciling, and the ledger-wide balance reports.
type LedgerUseCase struct {
	txManager   TransactionManager
	entryRepo   EntryRepository
	accountRepo AccountRepository
	ledgerRepo  LedgerRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	retrier     Retrier
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	accountRepo AccountRepository,
	ledgerRepo LedgerRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		entryRepo:   entryRepo,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
	}
}

// WithRetrier re-runs lifecycle transactions on transient store failures
// such as deadlocks between concurrent posts and matcher reconciliation.
func (uc *LedgerUseCase) WithRetrier(r Retrier) *LedgerUseCase {
	uc.retrier = r
	return uc
}

func (uc *LedgerUseCase) retry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}
	return uc.retrier.Retry(ctx, op)
}

// ValidateEntry runs full validation on a stored entry without changing it:
// structural rules, account checks, and exact balance.
func (uc *LedgerUseCase) ValidateEntry(ctx context.Context, id string) error {
	entry, err := uc.entryRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return uc.validate(ctx, entry)
}

func (uc *LedgerUseCase) validate(ctx context.Context, entry *domain.JournalEntry) error {
	if err := entry.ValidateShape(); err != nil {
		return err
	}

	accounts, err := fetchLineAccounts(ctx, uc.accountRepo, entry.Lines)
	if err != nil {
		return err
	}
	if err := checkLinesAgainstAccounts(entry.Lines, accounts); err != nil {
		return err
	}

	return entry.CheckBalance()
}

// PostEntry posts a draft. The entry is re-validated under lock; a stale
// version is refused, so two concurrent posts of one draft resolve to a
// single winner.
func (uc *LedgerUseCase) PostEntry(ctx context.Context, id string, version int64) (*domain.JournalEntry, error) {
	var posted *domain.JournalEntry
	if err := uc.retry(ctx, func() error {
		entry, err := uc.postEntryTx(ctx, id, version)
		if err != nil {
			return err
		}
		posted = entry
		return nil
	}); err != nil {
		return nil, err
	}
	return posted, nil
}

func (uc *LedgerUseCase) postEntryTx(ctx context.Context, id string, version int64) (*domain.JournalEntry, error) {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if entry.Status != domain.EntryStatusDraft {
		return nil, domain.NewAlreadyProcessedError("journal_entry", entry.ID, string(entry.Status))
	}
	if entry.Version != version {
		return nil, domain.NewConflictError("journal_entry", entry.ID, version, entry.Version)
	}

	if err := uc.validate(ctx, entry); err != nil {
		return nil, err
	}

	if err := uc.entryRepo.UpdateStatus(ctx, tx, entry.ID, domain.EntryStatusPosted, &now, now); err != nil {
		return nil, err
	}

	if err := uc.emitEntryEvent(ctx, tx, entry.ID, domain.EventTypeEntryPosted, domain.EntryPostedEvent{
		EntryID:    entry.ID,
		SourceType: string(entry.SourceType),
		EntryDate:  entry.EntryDate.Format("2006-01-02"),
		LineCount:  len(entry.Lines),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	entry.Status = domain.EntryStatusPosted
	entry.PostedAt = &now
	entry.Version++
	entry.UpdatedAt = now

	return entry, nil
}

// VoidEntry voids an entry. A draft is voided in place and nothing is
// returned. A posted entry is voided by appending a reversal entry with
// swapped sides and linking the two; the original stays posted so history
// never rewrites, and the reversal is returned. Reconciled and
// already-reversed entries refuse.
func (uc *LedgerUseCase) VoidEntry(ctx context.Context, id string, version int64, reason string) (*domain.JournalEntry, error) {
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if entry.Version != version {
		return nil, domain.NewConflictError("journal_entry", entry.ID, version, entry.Version)
	}

	switch entry.Status {
	case domain.EntryStatusDraft:
		if err := uc.entryRepo.UpdateStatus(ctx, tx, entry.ID, domain.EntryStatusVoid, nil, now); err != nil {
			return nil, err
		}

		if err := uc.emitEntryEvent(ctx, tx, entry.ID, domain.EventTypeEntryVoided, domain.EntryVoidedEvent{
			EntryID: entry.ID,
			Reason:  reason,
		}); err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		return nil, nil

	case domain.EntryStatusPosted:
		if entry.Reversed() {
			return nil, domain.NewAlreadyProcessedError("journal_entry", entry.ID, "reversed")
		}

		reversal := uc.buildReversal(entry, reason, now)
		if err := uc.entryRepo.Create(ctx, tx, reversal); err != nil {
			return nil, err
		}

		// The reversal posts immediately; a draft reversal would leave the
		// books overstated until someone noticed.
		if err := uc.entryRepo.UpdateStatus(ctx, tx, reversal.ID, domain.EntryStatusPosted, &now, now); err != nil {
			return nil, err
		}
		if err := uc.entryRepo.SetReversedBy(ctx, tx, entry.ID, reversal.ID, now); err != nil {
			return nil, err
		}

		if err := uc.emitEntryEvent(ctx, tx, entry.ID, domain.EventTypeEntryVoided, domain.EntryVoidedEvent{
			EntryID:         entry.ID,
			ReversalEntryID: reversal.ID,
			Reason:          reason,
		}); err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		reversal.Status = domain.EntryStatusPosted
		reversal.PostedAt = &now
		reversal.Version++
		return reversal, nil

	default:
		return nil, domain.NewAlreadyProcessedError("journal_entry", entry.ID, string(entry.Status))
	}
}

// buildReversal mirrors an entry with every line's side swapped.
func (uc *LedgerUseCase) buildReversal(entry *domain.JournalEntry, reason string, now time.Time) *domain.JournalEntry {
	originalID := entry.ID

	reversal := &domain.JournalEntry{
		ID:         uc.idGen.Generate(),
		EntryDate:  now,
		Memo:       fmt.Sprintf("Reversal of %s: %s", entry.ID, reason),
		SourceType: domain.SourceTypeSystem,
		Status:     domain.EntryStatusDraft,
		ReversalOf: &originalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for i, l := range entry.Lines {
		reversal.Lines = append(reversal.Lines, domain.JournalLine{
			ID:        uc.idGen.Generate(),
			EntryID:   reversal.ID,
			AccountID: l.AccountID,
			Direction: l.Direction.Opposite(),
			Amount:    l.Amount,
			Currency:  l.Currency,
			FxRate:    l.FxRate,
			EventType: l.EventType,
			Position:  i,
		})
	}

	return reversal
}

// ReconcileEntriesTx moves posted entries to reconciled inside the caller's
// transaction. Entries are locked in sorted-ID order by the repository.
// Drafts, voids, reversed and already-reconciled entries refuse.
func (uc *LedgerUseCase) ReconcileEntriesTx(ctx context.Context, tx Transaction, entryIDs []string, now time.Time) error {
	entries, err := uc.entryRepo.GetByIDsForUpdate(ctx, tx, entryIDs)
	if err != nil {
		return err
	}
	if len(entries) != len(entryIDs) {
		return domain.ErrEntryNotFound
	}

	for _, entry := range entries {
		if entry.Status != domain.EntryStatusPosted {
			return domain.NewAlreadyProcessedError("journal_entry", entry.ID, string(entry.Status))
		}
		if entry.Reversed() {
			return domain.NewAlreadyProcessedError("journal_entry", entry.ID, "reversed")
		}
	}

	for _, entry := range entries {
		if err := uc.entryRepo.UpdateStatus(ctx, tx, entry.ID, domain.EntryStatusReconciled, entry.PostedAt, now); err != nil {
			return err
		}
	}

	return nil
}

// ReconcileEntry moves a single posted entry to reconciled in its own
// transaction.
func (uc *LedgerUseCase) ReconcileEntry(ctx context.Context, id string) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.ReconcileEntriesTx(ctx, tx, []string{id}, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TrialBalance returns per-account debit/credit totals over posted and
// reconciled entries.
func (uc *LedgerUseCase) TrialBalance(ctx context.Context) ([]*domain.TrialBalanceRow, error) {
	return uc.ledgerRepo.TrialBalance(ctx)
}

// EquationReport is the output of the accounting-equation check.
type EquationReport struct {
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
	// TypeTotals holds each account type's net balance on its normal side.
	TypeTotals map[domain.AccountType]decimal.Decimal
	// Residual is assets - liabilities - equity - income + expenses; zero
	// when the equation holds.
	Residual  decimal.Decimal
	Balanced  bool
	CheckedAt time.Time
}

// CheckEquation verifies double-entry invariants across the whole ledger:
// total debits equal total credits, and the accounting equation nets to
// zero.
func (uc *LedgerUseCase) CheckEquation(ctx context.Context) (*EquationReport, error) {
	debits, credits, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return nil, err
	}

	totals, err := uc.ledgerRepo.TypeTotals(ctx)
	if err != nil {
		return nil, err
	}

	residual := totals[domain.AccountTypeAsset].
		Sub(totals[domain.AccountTypeLiability]).
		Sub(totals[domain.AccountTypeEquity]).
		Sub(totals[domain.AccountTypeIncome]).
		Add(totals[domain.AccountTypeExpense])

	report := &EquationReport{
		TotalDebits:  debits,
		TotalCredits: credits,
		TypeTotals:   totals,
		Residual:     residual,
		Balanced:     debits.Equal(credits) && residual.IsZero(),
		CheckedAt:    time.Now().UTC(),
	}

	if !report.Balanced {
		return report, ErrInconsistentLedger
	}

	return report, nil
}

func (uc *LedgerUseCase) emitEntryEvent(ctx context.Context, tx Transaction, entryID, eventType string, payload any) error {
	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   entryID,
		AggregateType: domain.AggregateTypeEntry,
		EventType:     eventType,
		Payload:       toPayloadMap(payload),
		CreatedAt:     time.Now().UTC(),
	})
}

// toPayloadMap flattens a typed event payload into the outbox map form.
func toPayloadMap(payload any) map[string]any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{}
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
