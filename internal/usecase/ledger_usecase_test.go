package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
	"github.com/finbase/ledgermatch/internal/usecase/mocks"
)

type ledgerFixture struct {
	txManager *mocks.MockTransactionManager
	tx        *mocks.MockTransaction
	entries   *mocks.MockEntryRepository
	accounts  *mocks.MockAccountRepository
	ledger    *mocks.MockLedgerRepository
	outbox    *mocks.MockOutboxRepository
	idGen     *mocks.MockIDGenerator
	uc        *usecase.LedgerUseCase
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		txManager: mocks.NewMockTransactionManager(),
		tx:        &mocks.MockTransaction{},
		entries:   mocks.NewMockEntryRepository(),
		accounts:  mocks.NewMockAccountRepository(),
		ledger:    mocks.NewMockLedgerRepository(),
		outbox:    mocks.NewMockOutboxRepository(),
		idGen:     mocks.NewMockIDGenerator(),
	}
	f.txManager.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
		return f.tx, nil
	}
	f.accounts.Create(context.Background(), activeAccount(testID("bank"), domain.AccountTypeAsset))
	f.accounts.Create(context.Background(), activeAccount(testID("income"), domain.AccountTypeIncome))
	f.uc = usecase.NewLedgerUseCase(f.txManager, f.entries, f.accounts, f.ledger, f.outbox, f.idGen)
	return f
}

func (f *ledgerFixture) seed(entry *domain.JournalEntry) *domain.JournalEntry {
	if err := f.entries.Create(context.Background(), f.tx, entry); err != nil {
		panic(err)
	}
	return entry
}

func TestLedgerUseCase_PostEntry(t *testing.T) {
	f := newLedgerFixture()
	draft := f.seed(buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "april invoice",
		debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

	posted, err := f.uc.PostEntry(context.Background(), draft.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if posted.Status != domain.EntryStatusPosted {
		t.Errorf("expected posted status, got %s", posted.Status)
	}
	if posted.Version != 1 {
		t.Errorf("expected version 1 after post, got %d", posted.Version)
	}
	if posted.PostedAt == nil {
		t.Error("expected PostedAt to be set")
	}

	stored, _ := f.entries.GetByID(context.Background(), draft.ID)
	if stored.Status != domain.EntryStatusPosted || stored.Version != 1 {
		t.Errorf("expected stored posted v1, got %s v%d", stored.Status, stored.Version)
	}

	events := f.outbox.EventTypes()
	if len(events) != 1 || events[0] != domain.EventTypeEntryPosted {
		t.Errorf("expected [entry.posted] event, got %v", events)
	}
	if f.tx.Commits != 1 {
		t.Errorf("expected one commit, got %d", f.tx.Commits)
	}
}

// singleRetryRetrier re-runs a failed operation exactly once.
type singleRetryRetrier struct {
	attempts int
}

func (r *singleRetryRetrier) Retry(ctx context.Context, op func() error) error {
	r.attempts++
	if err := op(); err == nil {
		return nil
	}
	r.attempts++
	return op()
}

func TestLedgerUseCase_PostEntry_RunsUnderRetrier(t *testing.T) {
	f := newLedgerFixture()
	draft := f.seed(buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "april invoice",
		debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

	retrier := &singleRetryRetrier{}
	f.uc.WithRetrier(retrier)

	failures := 1
	f.txManager.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("deadlock detected")
		}
		return f.tx, nil
	}

	posted, err := f.uc.PostEntry(context.Background(), draft.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if posted.Status != domain.EntryStatusPosted {
		t.Errorf("expected posted status, got %s", posted.Status)
	}
	if retrier.attempts != 2 {
		t.Errorf("expected the transaction to run through the retrier twice, got %d", retrier.attempts)
	}
}

func TestLedgerUseCase_PostEntry_Refusals(t *testing.T) {
	t.Run("unbalanced entry", func(t *testing.T) {
		f := newLedgerFixture()
		draft := f.seed(buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "lopsided",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "90.00")))

		_, err := f.uc.PostEntry(context.Background(), draft.ID, 0)

		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if vErr.Delta == nil || !vErr.Delta.Equal(dec("10.00")) {
			t.Errorf("expected delta 10.00, got %v", vErr.Delta)
		}
		if vErr.ShortSide != domain.DirectionCredit {
			t.Errorf("expected credit side short, got %s", vErr.ShortSide)
		}

		stored, _ := f.entries.GetByID(context.Background(), draft.ID)
		if stored.Status != domain.EntryStatusDraft {
			t.Errorf("expected entry to stay draft, got %s", stored.Status)
		}
	})

	t.Run("stale version", func(t *testing.T) {
		f := newLedgerFixture()
		draft := f.seed(buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "draft",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

		_, err := f.uc.PostEntry(context.Background(), draft.ID, 5)

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
	})

	t.Run("already posted", func(t *testing.T) {
		f := newLedgerFixture()
		entry := f.seed(buildEntry(testID("entry"), domain.EntryStatusPosted, baseDate, "posted",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

		_, err := f.uc.PostEntry(context.Background(), entry.ID, 1)

		var already *domain.AlreadyProcessedError
		if !errors.As(err, &already) {
			t.Fatalf("expected AlreadyProcessedError, got %v", err)
		}
	})

	t.Run("unknown entry", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.uc.PostEntry(context.Background(), testID("missing"), 0)
		if !errors.Is(err, domain.ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
	})

	t.Run("inactive account at post time", func(t *testing.T) {
		f := newLedgerFixture()
		dormant := activeAccount(testID("dormant"), domain.AccountTypeExpense)
		dormant.Active = false
		f.accounts.Create(context.Background(), dormant)

		draft := f.seed(buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "stale draft",
			debitLine(testID("dormant"), "100.00"), creditLine(testID("income"), "100.00")))

		_, err := f.uc.PostEntry(context.Background(), draft.ID, 0)
		if !errors.Is(err, domain.ErrAccountInactive) {
			t.Errorf("expected ErrAccountInactive, got %v", err)
		}
	})
}

func TestLedgerUseCase_VoidEntry_Draft(t *testing.T) {
	f := newLedgerFixture()
	draft := f.seed(buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "abandoned",
		debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

	reversal, err := f.uc.VoidEntry(context.Background(), draft.ID, 0, "duplicate draft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reversal != nil {
		t.Errorf("expected no reversal for a draft void, got %s", reversal.ID)
	}

	stored, _ := f.entries.GetByID(context.Background(), draft.ID)
	if stored.Status != domain.EntryStatusVoid {
		t.Errorf("expected void status, got %s", stored.Status)
	}

	events := f.outbox.EventTypes()
	if len(events) != 1 || events[0] != domain.EventTypeEntryVoided {
		t.Errorf("expected [entry.voided] event, got %v", events)
	}
}

func TestLedgerUseCase_VoidEntry_PostedCreatesReversal(t *testing.T) {
	f := newLedgerFixture()
	original := f.seed(buildEntry(testID("entry"), domain.EntryStatusPosted, baseDate, "wrong account",
		debitLine(testID("bank"), "250.00"), creditLine(testID("income"), "250.00")))

	reversal, err := f.uc.VoidEntry(context.Background(), original.ID, 1, "booked against wrong account")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reversal == nil {
		t.Fatal("expected a reversal entry")
	}

	if reversal.ReversalOf == nil || *reversal.ReversalOf != original.ID {
		t.Error("expected reversal to link back to the original")
	}
	if reversal.SourceType != domain.SourceTypeSystem {
		t.Errorf("expected system source type, got %s", reversal.SourceType)
	}
	if !strings.Contains(reversal.Memo, original.ID) || !strings.Contains(reversal.Memo, "booked against wrong account") {
		t.Errorf("expected memo to carry original id and reason, got %q", reversal.Memo)
	}
	if reversal.Status != domain.EntryStatusPosted || reversal.Version != 1 {
		t.Errorf("expected reversal posted v1, got %s v%d", reversal.Status, reversal.Version)
	}

	if len(reversal.Lines) != len(original.Lines) {
		t.Fatalf("expected %d reversal lines, got %d", len(original.Lines), len(reversal.Lines))
	}
	for i, l := range reversal.Lines {
		o := original.Lines[i]
		if l.AccountID != o.AccountID {
			t.Errorf("line %d: expected account %s, got %s", i, o.AccountID, l.AccountID)
		}
		if l.Direction != o.Direction.Opposite() {
			t.Errorf("line %d: expected swapped direction, got %s", i, l.Direction)
		}
		if !l.Amount.Equal(o.Amount) {
			t.Errorf("line %d: expected amount %s, got %s", i, o.Amount, l.Amount)
		}
	}

	// The original never rewrites: it stays posted and points at the reversal.
	stored, _ := f.entries.GetByID(context.Background(), original.ID)
	if stored.Status != domain.EntryStatusPosted {
		t.Errorf("expected original to stay posted, got %s", stored.Status)
	}
	if stored.ReversedBy == nil || *stored.ReversedBy != reversal.ID {
		t.Error("expected original to point at the reversal")
	}

	events := f.outbox.EventTypes()
	if len(events) != 1 || events[0] != domain.EventTypeEntryVoided {
		t.Errorf("expected [entry.voided] event, got %v", events)
	}
}

func TestLedgerUseCase_VoidEntry_Refusals(t *testing.T) {
	t.Run("already reversed", func(t *testing.T) {
		f := newLedgerFixture()
		reversalID := testID("reversal")
		entry := buildEntry(testID("entry"), domain.EntryStatusPosted, baseDate, "reversed already",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00"))
		entry.ReversedBy = &reversalID
		f.seed(entry)

		_, err := f.uc.VoidEntry(context.Background(), entry.ID, 1, "again")

		var already *domain.AlreadyProcessedError
		if !errors.As(err, &already) {
			t.Fatalf("expected AlreadyProcessedError, got %v", err)
		}
		if already.Status != "reversed" {
			t.Errorf("expected status reversed, got %s", already.Status)
		}
	})

	t.Run("reconciled entries cannot be voided", func(t *testing.T) {
		f := newLedgerFixture()
		entry := f.seed(buildEntry(testID("entry"), domain.EntryStatusReconciled, baseDate, "settled",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

		_, err := f.uc.VoidEntry(context.Background(), entry.ID, 1, "too late")

		var already *domain.AlreadyProcessedError
		if !errors.As(err, &already) {
			t.Fatalf("expected AlreadyProcessedError, got %v", err)
		}
	})

	t.Run("stale version", func(t *testing.T) {
		f := newLedgerFixture()
		entry := f.seed(buildEntry(testID("entry"), domain.EntryStatusPosted, baseDate, "posted",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

		_, err := f.uc.VoidEntry(context.Background(), entry.ID, 3, "stale")

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
	})
}

func TestLedgerUseCase_ReconcileEntry(t *testing.T) {
	t.Run("posted entry reconciles", func(t *testing.T) {
		f := newLedgerFixture()
		entry := f.seed(buildEntry(testID("entry"), domain.EntryStatusPosted, baseDate, "posted",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))
		postedAt := *entry.PostedAt

		if err := f.uc.ReconcileEntry(context.Background(), entry.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, _ := f.entries.GetByID(context.Background(), entry.ID)
		if stored.Status != domain.EntryStatusReconciled {
			t.Errorf("expected reconciled status, got %s", stored.Status)
		}
		if stored.PostedAt == nil || !stored.PostedAt.Equal(postedAt) {
			t.Error("expected PostedAt to be preserved through reconciliation")
		}
	})

	t.Run("draft refuses", func(t *testing.T) {
		f := newLedgerFixture()
		entry := f.seed(buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "draft",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))

		err := f.uc.ReconcileEntry(context.Background(), entry.ID)

		var already *domain.AlreadyProcessedError
		if !errors.As(err, &already) {
			t.Fatalf("expected AlreadyProcessedError, got %v", err)
		}
	})

	t.Run("reversed entry refuses", func(t *testing.T) {
		f := newLedgerFixture()
		reversalID := testID("reversal")
		entry := buildEntry(testID("entry"), domain.EntryStatusPosted, baseDate, "reversed",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00"))
		entry.ReversedBy = &reversalID
		f.seed(entry)

		err := f.uc.ReconcileEntry(context.Background(), entry.ID)

		var already *domain.AlreadyProcessedError
		if !errors.As(err, &already) {
			t.Fatalf("expected AlreadyProcessedError, got %v", err)
		}
	})

	t.Run("unknown entry", func(t *testing.T) {
		f := newLedgerFixture()
		err := f.uc.ReconcileEntry(context.Background(), testID("missing"))
		if !errors.Is(err, domain.ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
	})
}

func TestLedgerUseCase_ValidateEntry(t *testing.T) {
	f := newLedgerFixture()

	balanced := f.seed(buildEntry(testID("entry1"), domain.EntryStatusDraft, baseDate, "balanced",
		debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00")))
	if err := f.uc.ValidateEntry(context.Background(), balanced.ID); err != nil {
		t.Errorf("expected balanced entry to validate, got %v", err)
	}

	lopsided := f.seed(buildEntry(testID("entry2"), domain.EntryStatusDraft, baseDate, "lopsided",
		debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "60.00")))
	err := f.uc.ValidateEntry(context.Background(), lopsided.ID)

	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Delta == nil || !vErr.Delta.Equal(dec("40.00")) {
		t.Errorf("expected delta 40.00, got %v", vErr.Delta)
	}
}

func TestLedgerUseCase_TrialBalance(t *testing.T) {
	f := newLedgerFixture()
	f.ledger.TrialBalanceFunc = func(ctx context.Context) ([]*domain.TrialBalanceRow, error) {
		return []*domain.TrialBalanceRow{
			{AccountID: testID("bank"), AccountType: domain.AccountTypeAsset, Debits: dec("100.00"), Credits: dec("40.00")},
		}, nil
	}

	rows, err := f.uc.TrialBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].Net().Equal(dec("60.00")) {
		t.Errorf("expected asset net 60.00, got %s", rows[0].Net())
	}
}

func TestLedgerUseCase_CheckEquation(t *testing.T) {
	typeTotals := func(asset, liability, equity, income, expense string) map[domain.AccountType]decimal.Decimal {
		return map[domain.AccountType]decimal.Decimal{
			domain.AccountTypeAsset:     dec(asset),
			domain.AccountTypeLiability: dec(liability),
			domain.AccountTypeEquity:    dec(equity),
			domain.AccountTypeIncome:    dec(income),
			domain.AccountTypeExpense:   dec(expense),
		}
	}

	t.Run("balanced ledger", func(t *testing.T) {
		f := newLedgerFixture()
		f.ledger.CheckConsistencyFunc = func(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
			return dec("100.00"), dec("100.00"), nil
		}
		f.ledger.TypeTotalsFunc = func(ctx context.Context) (map[domain.AccountType]decimal.Decimal, error) {
			// assets 60 = liabilities 20 + equity 30 + income 50 - expenses 40
			return typeTotals("60", "20", "30", "50", "40"), nil
		}

		report, err := f.uc.CheckEquation(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Balanced {
			t.Error("expected balanced report")
		}
		if !report.Residual.IsZero() {
			t.Errorf("expected zero residual, got %s", report.Residual)
		}
	})

	t.Run("debits disagree with credits", func(t *testing.T) {
		f := newLedgerFixture()
		f.ledger.CheckConsistencyFunc = func(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
			return dec("100.00"), dec("90.00"), nil
		}

		report, err := f.uc.CheckEquation(context.Background())
		if !errors.Is(err, usecase.ErrInconsistentLedger) {
			t.Fatalf("expected ErrInconsistentLedger, got %v", err)
		}
		if report == nil || report.Balanced {
			t.Error("expected unbalanced report alongside the error")
		}
	})

	t.Run("equation residual", func(t *testing.T) {
		f := newLedgerFixture()
		f.ledger.CheckConsistencyFunc = func(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
			return dec("100.00"), dec("100.00"), nil
		}
		f.ledger.TypeTotalsFunc = func(ctx context.Context) (map[domain.AccountType]decimal.Decimal, error) {
			return typeTotals("60", "0", "0", "0", "0"), nil
		}

		report, err := f.uc.CheckEquation(context.Background())
		if !errors.Is(err, usecase.ErrInconsistentLedger) {
			t.Fatalf("expected ErrInconsistentLedger, got %v", err)
		}
		if !report.Residual.Equal(dec("60")) {
			t.Errorf("expected residual 60, got %s", report.Residual)
		}
	})
}
