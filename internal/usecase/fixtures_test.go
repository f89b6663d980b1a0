package usecase_test

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
)

// baseDate anchors entry and transaction dates so scores depend only on
// the distances the tests set up.
var baseDate = time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

// testID pads a short tag to the 26 characters identifier validation
// expects, keeping the tag readable in failure output.
func testID(tag string) string {
	return tag + strings.Repeat("0", 26-len(tag))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func activeAccount(id string, typ domain.AccountType) *domain.Account {
	now := time.Now().UTC()
	return &domain.Account{
		ID:        id,
		Name:      string(typ) + " account",
		Type:      typ,
		Currency:  "USD",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func debitLine(accountID, amount string) domain.JournalLine {
	return domain.JournalLine{
		AccountID: accountID,
		Direction: domain.DirectionDebit,
		Amount:    dec(amount),
		Currency:  "USD",
	}
}

func creditLine(accountID, amount string) domain.JournalLine {
	return domain.JournalLine{
		AccountID: accountID,
		Direction: domain.DirectionCredit,
		Amount:    dec(amount),
		Currency:  "USD",
	}
}

// buildEntry assembles a journal entry in the given status. Drafts carry
// version 0; anything past draft carries the post bump.
func buildEntry(id string, status domain.EntryStatus, date time.Time, memo string, lines ...domain.JournalLine) *domain.JournalEntry {
	now := time.Now().UTC()
	entry := &domain.JournalEntry{
		ID:         id,
		EntryDate:  date,
		Memo:       memo,
		SourceType: domain.SourceTypeManual,
		Status:     status,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status == domain.EntryStatusDraft {
		entry.Version = 0
	}
	if status == domain.EntryStatusPosted || status == domain.EntryStatusReconciled {
		postedAt := date
		entry.PostedAt = &postedAt
	}
	for i := range lines {
		lines[i].ID = fmt.Sprintf("%s-l%d", id, i)
		lines[i].EntryID = id
		lines[i].Position = i
	}
	entry.Lines = lines
	return entry
}

// buildTxn assembles an unmatched bank transaction. The batch ID points
// nowhere unless the test seeds a batch under it.
func buildTxn(id, accountID string, date time.Time, dir domain.TxnDirection, amount, desc, ref string) *domain.BankTransaction {
	now := time.Now().UTC()
	return &domain.BankTransaction{
		ID:              id,
		BatchID:         testID("batch"),
		SourceAccountID: accountID,
		TxnDate:         date,
		Direction:       dir,
		Amount:          dec(amount),
		Currency:        "USD",
		Description:     desc,
		Reference:       ref,
		Status:          domain.TxnStatusUnmatched,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
