package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a journal line.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionDebit {
		return DirectionCredit
	}
	return DirectionDebit
}

// EntryStatus is the lifecycle state of a journal entry.
type EntryStatus string

const (
	EntryStatusDraft      EntryStatus = "draft"
	EntryStatusPosted     EntryStatus = "posted"
	EntryStatusReconciled EntryStatus = "reconciled"
	EntryStatusVoid       EntryStatus = "void"
)

// Terminal reports whether no further transitions are allowed from s.
func (s EntryStatus) Terminal() bool {
	return s == EntryStatusReconciled || s == EntryStatusVoid
}

// SourceType records where a journal entry originated.
type SourceType string

const (
	SourceTypeManual     SourceType = "manual"
	SourceTypeBankImport SourceType = "bank_import"
	SourceTypeSystem     SourceType = "system"
	SourceTypeAdjustment SourceType = "adjustment"
)

// JournalLine is one side of a journal entry: a debit or credit against a
// single account. Amount is always non-negative; Direction carries the sign.
type JournalLine struct {
	ID        string
	EntryID   string
	AccountID string
	Direction Direction
	Amount    decimal.Decimal
	Currency  string
	// FxRate is required when the line currency differs from the account
	// currency. It is carried as data; no conversion happens here.
	FxRate    *decimal.Decimal
	EventType string
	Position  int
}

// JournalEntry is a balanced set of journal lines forming one accounting
// event. Lines are mutable only while the entry is a draft.
type JournalEntry struct {
	ID         string
	EntryDate  time.Time
	Memo       string
	SourceType SourceType
	Status     EntryStatus
	Version    int64
	ReversalOf *string
	ReversedBy *string
	PostedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []JournalLine
}

// Totals sums the debit and credit sides of the entry.
func (e *JournalEntry) Totals() (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		if l.Direction == DirectionDebit {
			debits = debits.Add(l.Amount)
		} else {
			credits = credits.Add(l.Amount)
		}
	}
	return debits, credits
}

// ValidateShape checks the structural rules that hold for any entry:
// at least two lines, known directions, strictly positive amounts.
// Account existence and currency agreement need repository access and are
// checked by the usecase layer.
func (e *JournalEntry) ValidateShape() error {
	if len(e.Lines) < MinEntryLines {
		return ErrTooFewLines
	}
	for i := range e.Lines {
		l := &e.Lines[i]
		if !l.Direction.Valid() {
			return NewValidationError("lines", "unknown line direction")
		}
		if l.AccountID == "" {
			return NewValidationError("lines", "line missing account id")
		}
		if l.Amount.LessThanOrEqual(decimal.Zero) {
			return ErrInvalidAmount
		}
		if err := ValidateCurrency(l.Currency); err != nil {
			return err
		}
	}
	return nil
}

// CheckBalance verifies that debits equal credits exactly. On imbalance it
// returns a ValidationError carrying the absolute delta and which side is
// short.
func (e *JournalEntry) CheckBalance() error {
	debits, credits := e.Totals()
	if debits.Equal(credits) {
		return nil
	}
	delta := debits.Sub(credits)
	short := DirectionDebit
	if delta.IsPositive() {
		short = DirectionCredit
	}
	return NewImbalanceError(delta.Abs(), short)
}

// Reversed reports whether the entry has been voided via a reversal entry.
func (e *JournalEntry) Reversed() bool {
	return e.ReversedBy != nil
}

// TouchesAccount reports whether any line hits the given account and, if so,
// on which side and for what total amount.
func (e *JournalEntry) TouchesAccount(accountID string) (Direction, decimal.Decimal, bool) {
	total := decimal.Zero
	var dir Direction
	found := false
	for _, l := range e.Lines {
		if l.AccountID != accountID {
			continue
		}
		if !found {
			dir = l.Direction
			found = true
		}
		if l.Direction == dir {
			total = total.Add(l.Amount)
		} else {
			total = total.Sub(l.Amount)
		}
	}
	if found && total.IsNegative() {
		dir = dir.Opposite()
		total = total.Abs()
	}
	return dir, total, found
}
