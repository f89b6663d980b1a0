package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxnDirection is the sign of a bank transaction from the account holder's
// point of view.
type TxnDirection string

const (
	TxnDirectionInflow  TxnDirection = "inflow"
	TxnDirectionOutflow TxnDirection = "outflow"
)

// Valid reports whether d is a known transaction direction.
func (d TxnDirection) Valid() bool {
	return d == TxnDirectionInflow || d == TxnDirectionOutflow
}

// LedgerSide returns the journal-line side a transaction of this direction
// should produce on the bank's ledger account: money in debits the asset,
// money out credits it.
func (d TxnDirection) LedgerSide() Direction {
	if d == TxnDirectionInflow {
		return DirectionDebit
	}
	return DirectionCredit
}

// TxnStatus is the reconciliation state of a bank transaction.
type TxnStatus string

const (
	// TxnStatusUnmatched means no open or accepted match exists.
	TxnStatusUnmatched TxnStatus = "unmatched"
	// TxnStatusPending means a pending_review match is open.
	TxnStatusPending TxnStatus = "pending"
	// TxnStatusMatched means an auto-accepted or accepted match exists.
	TxnStatusMatched TxnStatus = "matched"
)

// StatementBatch groups bank transactions imported from one statement
// document. BalanceOK records whether the statement's own arithmetic held
// up at ingest time; transactions from a failed batch are never
// auto-accepted.
type StatementBatch struct {
	ID              string
	SourceAccountID string
	StatementDate   time.Time
	OpeningBalance  decimal.Decimal
	ClosingBalance  decimal.Decimal
	TxnCount        int
	BalanceOK       bool
	ImportedAt      time.Time
}

// BankTransaction is one row extracted from a bank statement. Amount is
// stored unsigned; Direction carries the sign.
type BankTransaction struct {
	ID              string
	BatchID         string
	SourceAccountID string
	TxnDate         time.Time
	Direction       TxnDirection
	Amount          decimal.Decimal
	Currency        string
	Description     string
	Reference       string
	Status          TxnStatus
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SignedAmount returns the amount with inflows positive and outflows
// negative.
func (t *BankTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == TxnDirectionOutflow {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Validate checks the transaction's static fields.
func (t *BankTransaction) Validate() error {
	if !t.Direction.Valid() {
		return NewValidationError("direction", "unknown transaction direction")
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return ValidateCurrency(t.Currency)
}

// StatementBalances reports whether opening + sum(signed amounts) equals
// closing for the given transactions.
func StatementBalances(opening, closing decimal.Decimal, txns []*BankTransaction) bool {
	sum := opening
	for _, t := range txns {
		sum = sum.Add(t.SignedAmount())
	}
	return sum.Equal(closing)
}
