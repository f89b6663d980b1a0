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

type entryFixture struct {
	txManager *mocks.MockTransactionManager
	tx        *mocks.MockTransaction
	entries   *mocks.MockEntryRepository
	accounts  *mocks.MockAccountRepository
	idGen     *mocks.MockIDGenerator
	uc        *usecase.EntryUseCase
}

func newEntryFixture() *entryFixture {
	f := &entryFixture{
		txManager: mocks.NewMockTransactionManager(),
		tx:        &mocks.MockTransaction{},
		entries:   mocks.NewMockEntryRepository(),
		accounts:  mocks.NewMockAccountRepository(),
		idGen:     mocks.NewMockIDGenerator(),
	}
	f.txManager.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
		return f.tx, nil
	}
	f.accounts.Create(context.Background(), activeAccount(testID("bank"), domain.AccountTypeAsset))
	f.accounts.Create(context.Background(), activeAccount(testID("income"), domain.AccountTypeIncome))
	f.uc = usecase.NewEntryUseCase(f.txManager, f.entries, f.accounts, f.idGen)
	return f
}

func twoLines(debitAccount, creditAccount, amount string) []usecase.LineInput {
	return []usecase.LineInput{
		{AccountID: debitAccount, Direction: domain.DirectionDebit, Amount: dec(amount), Currency: "USD"},
		{AccountID: creditAccount, Direction: domain.DirectionCredit, Amount: dec(amount), Currency: "USD"},
	}
}

func TestEntryUseCase_CreateDraft(t *testing.T) {
	f := newEntryFixture()

	entry, err := f.uc.CreateDraft(context.Background(), usecase.CreateEntryInput{
		EntryDate: baseDate,
		Memo:      "office chairs",
		Lines:     twoLines(testID("bank"), testID("income"), "100.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.Status != domain.EntryStatusDraft {
		t.Errorf("expected draft status, got %s", entry.Status)
	}
	if entry.Version != 0 {
		t.Errorf("expected version 0, got %d", entry.Version)
	}
	if entry.SourceType != domain.SourceTypeManual {
		t.Errorf("expected manual source type, got %s", entry.SourceType)
	}
	if err := domain.ValidateID(entry.ID); err != nil {
		t.Errorf("expected well-formed entry id, got %q", entry.ID)
	}
	for i, l := range entry.Lines {
		if l.Position != i {
			t.Errorf("expected line %d position %d, got %d", i, i, l.Position)
		}
		if err := domain.ValidateID(l.ID); err != nil {
			t.Errorf("expected well-formed line id, got %q", l.ID)
		}
	}
	if f.tx.Commits != 1 {
		t.Errorf("expected one commit, got %d", f.tx.Commits)
	}

	stored, err := f.entries.GetByID(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("expected draft to be persisted: %v", err)
	}
	if len(stored.Lines) != 2 {
		t.Errorf("expected 2 stored lines, got %d", len(stored.Lines))
	}
}

func TestEntryUseCase_CreateDraft_Validation(t *testing.T) {
	longMemo := strings.Repeat("x", 1025)

	tests := []struct {
		name    string
		input   usecase.CreateEntryInput
		wantErr error
	}{
		{
			name: "too few lines",
			input: usecase.CreateEntryInput{
				EntryDate: baseDate,
				Lines: []usecase.LineInput{
					{AccountID: testID("bank"), Direction: domain.DirectionDebit, Amount: dec("100.00"), Currency: "USD"},
				},
			},
			wantErr: domain.ErrTooFewLines,
		},
		{
			name: "zero amount",
			input: usecase.CreateEntryInput{
				EntryDate: baseDate,
				Lines: []usecase.LineInput{
					{AccountID: testID("bank"), Direction: domain.DirectionDebit, Amount: decimal.Zero, Currency: "USD"},
					{AccountID: testID("income"), Direction: domain.DirectionCredit, Amount: decimal.Zero, Currency: "USD"},
				},
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			input: usecase.CreateEntryInput{
				EntryDate: baseDate,
				Lines: []usecase.LineInput{
					{AccountID: testID("bank"), Direction: domain.DirectionDebit, Amount: dec("-5.00"), Currency: "USD"},
					{AccountID: testID("income"), Direction: domain.DirectionCredit, Amount: dec("-5.00"), Currency: "USD"},
				},
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "unknown currency",
			input: usecase.CreateEntryInput{
				EntryDate: baseDate,
				Lines: []usecase.LineInput{
					{AccountID: testID("bank"), Direction: domain.DirectionDebit, Amount: dec("100.00"), Currency: "XXX"},
					{AccountID: testID("income"), Direction: domain.DirectionCredit, Amount: dec("100.00"), Currency: "XXX"},
				},
			},
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name: "unknown account",
			input: usecase.CreateEntryInput{
				EntryDate: baseDate,
				Lines:     twoLines(testID("ghost"), testID("income"), "100.00"),
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "memo too long",
			input: usecase.CreateEntryInput{
				EntryDate: baseDate,
				Memo:      longMemo,
				Lines:     twoLines(testID("bank"), testID("income"), "100.00"),
			},
		},
		{
			name: "unknown direction",
			input: usecase.CreateEntryInput{
				EntryDate: baseDate,
				Lines: []usecase.LineInput{
					{AccountID: testID("bank"), Direction: "sideways", Amount: dec("100.00"), Currency: "USD"},
					{AccountID: testID("income"), Direction: domain.DirectionCredit, Amount: dec("100.00"), Currency: "USD"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEntryFixture()

			_, err := f.uc.CreateDraft(context.Background(), tt.input)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if f.tx.Commits != 0 {
				t.Errorf("expected no commit on validation failure, got %d", f.tx.Commits)
			}
		})
	}
}

func TestEntryUseCase_CreateDraft_FxRate(t *testing.T) {
	f := newEntryFixture()

	lines := twoLines(testID("bank"), testID("income"), "100.00")
	lines[0].Currency = "EUR"

	_, err := f.uc.CreateDraft(context.Background(), usecase.CreateEntryInput{EntryDate: baseDate, Lines: lines})
	if !errors.Is(err, domain.ErrMissingFxRate) {
		t.Fatalf("expected ErrMissingFxRate, got %v", err)
	}

	rate := dec("1.0850")
	lines[0].FxRate = &rate
	entry, err := f.uc.CreateDraft(context.Background(), usecase.CreateEntryInput{EntryDate: baseDate, Lines: lines})
	if err != nil {
		t.Fatalf("unexpected error with fx rate: %v", err)
	}
	if entry.Lines[0].FxRate == nil || !entry.Lines[0].FxRate.Equal(rate) {
		t.Error("expected fx rate to be carried on the line")
	}
}

func TestEntryUseCase_CreateDraft_InactiveAccount(t *testing.T) {
	f := newEntryFixture()

	dormant := activeAccount(testID("dormant"), domain.AccountTypeExpense)
	dormant.Active = false
	f.accounts.Create(context.Background(), dormant)

	_, err := f.uc.CreateDraft(context.Background(), usecase.CreateEntryInput{
		EntryDate: baseDate,
		Lines:     twoLines(testID("dormant"), testID("income"), "100.00"),
	})
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Errorf("expected ErrAccountInactive, got %v", err)
	}
}

func TestEntryUseCase_UpdateDraftLines(t *testing.T) {
	f := newEntryFixture()

	draft := buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "initial",
		debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00"))
	f.entries.Create(context.Background(), f.tx, draft)

	memo := "corrected memo"
	updated, err := f.uc.UpdateDraftLines(context.Background(), usecase.UpdateDraftLinesInput{
		EntryID: draft.ID,
		Version: 0,
		Memo:    &memo,
		Lines:   twoLines(testID("bank"), testID("income"), "150.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Version != 1 {
		t.Errorf("expected version 1 after update, got %d", updated.Version)
	}
	if updated.Memo != memo {
		t.Errorf("expected memo %q, got %q", memo, updated.Memo)
	}
	if !updated.Lines[0].Amount.Equal(dec("150.00")) {
		t.Errorf("expected replaced line amount 150.00, got %s", updated.Lines[0].Amount)
	}

	stored, _ := f.entries.GetByID(context.Background(), draft.ID)
	if stored.Version != 1 {
		t.Errorf("expected stored version 1, got %d", stored.Version)
	}
	// The memo must survive a round trip, not just echo on the response.
	if stored.Memo != memo {
		t.Errorf("expected stored memo %q, got %q", memo, stored.Memo)
	}
	if !stored.Lines[0].Amount.Equal(dec("150.00")) {
		t.Errorf("expected stored line amount 150.00, got %s", stored.Lines[0].Amount)
	}
}

func TestEntryUseCase_UpdateDraftLines_Guards(t *testing.T) {
	t.Run("posted entries are immutable", func(t *testing.T) {
		f := newEntryFixture()
		posted := buildEntry(testID("entry"), domain.EntryStatusPosted, baseDate, "posted",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00"))
		f.entries.Create(context.Background(), f.tx, posted)

		_, err := f.uc.UpdateDraftLines(context.Background(), usecase.UpdateDraftLinesInput{
			EntryID: posted.ID,
			Version: 1,
			Lines:   twoLines(testID("bank"), testID("income"), "150.00"),
		})

		var alreadyProcessed *domain.AlreadyProcessedError
		if !errors.As(err, &alreadyProcessed) {
			t.Fatalf("expected AlreadyProcessedError, got %v", err)
		}
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		f := newEntryFixture()
		draft := buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "draft",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00"))
		f.entries.Create(context.Background(), f.tx, draft)

		_, err := f.uc.UpdateDraftLines(context.Background(), usecase.UpdateDraftLinesInput{
			EntryID: draft.ID,
			Version: 7,
			Lines:   twoLines(testID("bank"), testID("income"), "150.00"),
		})

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if conflict.Expected != 7 || conflict.Actual != 0 {
			t.Errorf("expected conflict 7 vs 0, got %d vs %d", conflict.Expected, conflict.Actual)
		}
	})

	t.Run("invalid replacement leaves the draft untouched", func(t *testing.T) {
		f := newEntryFixture()
		draft := buildEntry(testID("entry"), domain.EntryStatusDraft, baseDate, "draft",
			debitLine(testID("bank"), "100.00"), creditLine(testID("income"), "100.00"))
		f.entries.Create(context.Background(), f.tx, draft)

		_, err := f.uc.UpdateDraftLines(context.Background(), usecase.UpdateDraftLinesInput{
			EntryID: draft.ID,
			Version: 0,
			Lines: []usecase.LineInput{
				{AccountID: testID("bank"), Direction: domain.DirectionDebit, Amount: dec("150.00"), Currency: "USD"},
			},
		})
		if !errors.Is(err, domain.ErrTooFewLines) {
			t.Fatalf("expected ErrTooFewLines, got %v", err)
		}

		stored, _ := f.entries.GetByID(context.Background(), draft.ID)
		if stored.Version != 0 || !stored.Lines[0].Amount.Equal(dec("100.00")) {
			t.Error("expected draft to be unchanged after failed update")
		}
	})
}

func TestEntryUseCase_GetEntry(t *testing.T) {
	f := newEntryFixture()

	_, err := f.uc.GetEntry(context.Background(), testID("missing"))
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestEntryUseCase_ListEntries(t *testing.T) {
	f := newEntryFixture()

	draft := buildEntry(testID("entry1"), domain.EntryStatusDraft, baseDate, "draft",
		debitLine(testID("bank"), "10.00"), creditLine(testID("income"), "10.00"))
	posted := buildEntry(testID("entry2"), domain.EntryStatusPosted, baseDate, "posted",
		debitLine(testID("bank"), "20.00"), creditLine(testID("income"), "20.00"))
	other := buildEntry(testID("entry3"), domain.EntryStatusPosted, baseDate, "other account",
		debitLine(testID("savings"), "30.00"), creditLine(testID("income"), "30.00"))
	for _, e := range []*domain.JournalEntry{draft, posted, other} {
		f.entries.Create(context.Background(), f.tx, e)
	}

	postedStatus := domain.EntryStatusPosted
	got, err := f.uc.ListEntries(context.Background(), usecase.ListEntriesInput{Status: &postedStatus})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 posted entries, got %d", len(got))
	}

	bankID := testID("bank")
	got, err = f.uc.ListEntries(context.Background(), usecase.ListEntriesInput{Status: &postedStatus, AccountID: &bankID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != posted.ID {
		t.Errorf("expected only the bank-account posted entry, got %d entries", len(got))
	}
}
