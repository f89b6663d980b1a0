package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account's debit/credit totals over posted and
// reconciled entries.
type TrialBalanceRow struct {
	AccountID   string
	AccountName string
	AccountType AccountType
	Debits      decimal.Decimal
	Credits     decimal.Decimal
}

// Net returns the account's balance on its normal side: positive when the
// account carries a balance on the side its type expects.
func (r *TrialBalanceRow) Net() decimal.Decimal {
	if r.AccountType.NormalSide() == DirectionDebit {
		return r.Debits.Sub(r.Credits)
	}
	return r.Credits.Sub(r.Debits)
}

// AccountLine is a posted journal line projected for one account, used for
// clearing-account pairing.
type AccountLine struct {
	LineID    string
	EntryID   string
	Direction Direction
	Amount    decimal.Decimal
	EntryDate time.Time
}

// ReconciliationStats summarizes matching outcomes for reporting.
type ReconciliationStats struct {
	TotalTransactions   int                 `json:"total_transactions"`
	MatchedTransactions int                 `json:"matched_transactions"`
	MatchRate           float64             `json:"match_rate"`
	ByMatchStatus       map[MatchStatus]int `json:"by_match_status"`
	// ScoreHistogram buckets scores by tens: index 0 is 0-9, index 9 is
	// 90-100.
	ScoreHistogram [10]int          `json:"score_histogram"`
	OpenChecks     map[Severity]int `json:"open_checks"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
