package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// ErrorBody carries the structured error payload. Code is the taxonomy
// discriminator the UI switches on.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Delta is set for imbalance validation errors.
	Delta *decimal.Decimal `json:"delta,omitempty"`
	// ShortSide names the side an unbalanced entry is short on.
	ShortSide string `json:"short_side,omitempty"`
	// ExpectedVersion and ActualVersion are set for version conflicts.
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
	ActualVersion   *int64 `json:"actual_version,omitempty"`
	// Status is set when the target is no longer actionable.
	Status string `json:"status,omitempty"`
	// BlockingCheckIDs lists the consistency checks refusing an accept.
	BlockingCheckIDs []string `json:"blocking_check_ids,omitempty"`
}

// ErrorResponse is the error envelope for all failures.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Currency  string    `json:"currency"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountFromDomain converts a domain account to a response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Currency:  a.Currency,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse wraps an account listing.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// LineResponse represents a journal line in API responses.
type LineResponse struct {
	ID        string           `json:"id"`
	AccountID string           `json:"account_id"`
	Direction string           `json:"direction"`
	Amount    decimal.Decimal  `json:"amount"`
	Currency  string           `json:"currency"`
	FxRate    *decimal.Decimal `json:"fx_rate,omitempty"`
	EventType string           `json:"event_type,omitempty"`
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID         string         `json:"id"`
	EntryDate  time.Time      `json:"entry_date"`
	Memo       string         `json:"memo"`
	SourceType string         `json:"source_type"`
	Status     string         `json:"status"`
	Version    int64          `json:"version"`
	ReversalOf *string        `json:"reversal_of,omitempty"`
	ReversedBy *string        `json:"reversed_by,omitempty"`
	PostedAt   *time.Time     `json:"posted_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Lines      []LineResponse `json:"lines"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.JournalEntry) *EntryResponse {
	lines := make([]LineResponse, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = LineResponse{
			ID:        l.ID,
			AccountID: l.AccountID,
			Direction: string(l.Direction),
			Amount:    l.Amount,
			Currency:  l.Currency,
			FxRate:    l.FxRate,
			EventType: l.EventType,
		}
	}
	return &EntryResponse{
		ID:         e.ID,
		EntryDate:  e.EntryDate,
		Memo:       e.Memo,
		SourceType: string(e.SourceType),
		Status:     string(e.Status),
		Version:    e.Version,
		ReversalOf: e.ReversalOf,
		ReversedBy: e.ReversedBy,
		PostedAt:   e.PostedAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Lines:      lines,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.JournalEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// ListEntriesResponse wraps an entry listing.
type ListEntriesResponse struct {
	Entries []*EntryResponse `json:"entries"`
	Total   int64            `json:"total"`
}

// BatchResponse represents a statement batch in API responses.
type BatchResponse struct {
	ID              string          `json:"id"`
	SourceAccountID string          `json:"source_account_id"`
	StatementDate   time.Time       `json:"statement_date"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	ClosingBalance  decimal.Decimal `json:"closing_balance"`
	TxnCount        int             `json:"txn_count"`
	BalanceOK       bool            `json:"balance_ok"`
	ImportedAt      time.Time       `json:"imported_at"`
}

// BatchFromDomain converts a domain batch to a response.
func BatchFromDomain(b *domain.StatementBatch) *BatchResponse {
	return &BatchResponse{
		ID:              b.ID,
		SourceAccountID: b.SourceAccountID,
		StatementDate:   b.StatementDate,
		OpeningBalance:  b.OpeningBalance,
		ClosingBalance:  b.ClosingBalance,
		TxnCount:        b.TxnCount,
		BalanceOK:       b.BalanceOK,
		ImportedAt:      b.ImportedAt,
	}
}

// TxnResponse represents a bank transaction in API responses.
type TxnResponse struct {
	ID              string          `json:"id"`
	BatchID         string          `json:"batch_id"`
	SourceAccountID string          `json:"source_account_id"`
	TxnDate         time.Time       `json:"txn_date"`
	Direction       string          `json:"direction"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	Reference       string          `json:"reference,omitempty"`
	Status          string          `json:"status"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TxnFromDomain converts a domain transaction to a response.
func TxnFromDomain(t *domain.BankTransaction) *TxnResponse {
	return &TxnResponse{
		ID:              t.ID,
		BatchID:         t.BatchID,
		SourceAccountID: t.SourceAccountID,
		TxnDate:         t.TxnDate,
		Direction:       string(t.Direction),
		Amount:          t.Amount,
		Currency:        t.Currency,
		Description:     t.Description,
		Reference:       t.Reference,
		Status:          string(t.Status),
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
	}
}

// TxnsFromDomain converts domain transactions to responses.
func TxnsFromDomain(txns []*domain.BankTransaction) []*TxnResponse {
	result := make([]*TxnResponse, len(txns))
	for i, t := range txns {
		result[i] = TxnFromDomain(t)
	}
	return result
}

// IngestStatementResponse wraps a statement import result.
type IngestStatementResponse struct {
	Batch        *BatchResponse `json:"batch"`
	Transactions []*TxnResponse `json:"transactions"`
}

// ListTxnsResponse wraps a transaction listing.
type ListTxnsResponse struct {
	Transactions []*TxnResponse `json:"transactions"`
	Total        int64          `json:"total"`
}

// BreakdownResponse mirrors the per-dimension score breakdown.
type BreakdownResponse struct {
	Amount      float64 `json:"amount"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
	BusinessFit float64 `json:"business_fit"`
	History     float64 `json:"history"`
	Anomaly     bool    `json:"anomaly,omitempty"`
}

// MatchResponse represents a reconciliation match in API responses.
type MatchResponse struct {
	ID           string            `json:"id"`
	BankTxnID    string            `json:"bank_txn_id"`
	EntryIDs     []string          `json:"entry_ids"`
	Score        int               `json:"score"`
	Breakdown    BreakdownResponse `json:"breakdown"`
	Status       string            `json:"status"`
	Version      int64             `json:"version"`
	RunID        string            `json:"run_id,omitempty"`
	SupersededBy *string           `json:"superseded_by,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ResolvedAt   *time.Time        `json:"resolved_at,omitempty"`
}

// MatchFromDomain converts a domain match to a response.
func MatchFromDomain(m *domain.ReconciliationMatch) *MatchResponse {
	return &MatchResponse{
		ID:        m.ID,
		BankTxnID: m.BankTxnID,
		EntryIDs:  m.EntryIDs,
		Score:     m.Score,
		Breakdown: BreakdownResponse{
			Amount:      m.Breakdown.Amount,
			Date:        m.Breakdown.Date,
			Description: m.Breakdown.Description,
			BusinessFit: m.Breakdown.BusinessFit,
			History:     m.Breakdown.History,
			Anomaly:     m.Breakdown.Anomaly,
		},
		Status:       string(m.Status),
		Version:      m.Version,
		RunID:        m.RunID,
		SupersededBy: m.SupersededBy,
		Reason:       m.Reason,
		CreatedAt:    m.CreatedAt,
		ResolvedAt:   m.ResolvedAt,
	}
}

// MatchesFromDomain converts domain matches to responses.
func MatchesFromDomain(matches []*domain.ReconciliationMatch) []*MatchResponse {
	result := make([]*MatchResponse, len(matches))
	for i, m := range matches {
		result[i] = MatchFromDomain(m)
	}
	return result
}

// ListMatchesResponse wraps a match listing.
type ListMatchesResponse struct {
	Matches []*MatchResponse `json:"matches"`
	Total   int64            `json:"total"`
}

// BatchItemResult is the per-item outcome of a batch decision.
type BatchItemResult struct {
	ID    string         `json:"id"`
	OK    bool           `json:"ok"`
	Match *MatchResponse `json:"match,omitempty"`
	Error *ErrorBody     `json:"error,omitempty"`
}

// BatchDecisionResponse wraps a batch accept/reject outcome.
type BatchDecisionResponse struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// RunResponse represents a matcher run in API responses.
type RunResponse struct {
	ID             string     `json:"id"`
	ScopeAccountID *string    `json:"scope_account_id,omitempty"`
	ScopeBatchID   *string    `json:"scope_batch_id,omitempty"`
	Status         string     `json:"status"`
	Processed      int        `json:"processed"`
	AutoAccepted   int        `json:"auto_accepted"`
	PendingReview  int        `json:"pending_review"`
	Unmatched      int        `json:"unmatched"`
	Downgraded     int        `json:"downgraded"`
	Skipped        int        `json:"skipped"`
	Errors         int        `json:"errors"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunFromDomain converts a domain run to a response.
func RunFromDomain(r *domain.MatcherRun) *RunResponse {
	return &RunResponse{
		ID:             r.ID,
		ScopeAccountID: r.ScopeAccountID,
		ScopeBatchID:   r.ScopeBatchID,
		Status:         string(r.Status),
		Processed:      r.Processed,
		AutoAccepted:   r.AutoAccepted,
		PendingReview:  r.PendingReview,
		Unmatched:      r.Unmatched,
		Downgraded:     r.Downgraded,
		Skipped:        r.Skipped,
		Errors:         r.Errors,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
	}
}

// CheckResponse represents a consistency check in API responses.
type CheckResponse struct {
	ID               string     `json:"id"`
	CheckType        string     `json:"check_type"`
	Severity         string     `json:"severity"`
	Status           string     `json:"status"`
	BankTxnIDs       []string   `json:"bank_txn_ids,omitempty"`
	MatchIDs         []string   `json:"match_ids,omitempty"`
	AccountID        *string    `json:"account_id,omitempty"`
	Detail           string     `json:"detail"`
	ResolutionAction string     `json:"resolution_action,omitempty"`
	ResolutionNote   string     `json:"resolution_note,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// CheckFromDomain converts a domain check to a response.
func CheckFromDomain(c *domain.ConsistencyCheck) *CheckResponse {
	return &CheckResponse{
		ID:               c.ID,
		CheckType:        string(c.CheckType),
		Severity:         string(c.Severity),
		Status:           string(c.Status),
		BankTxnIDs:       c.BankTxnIDs,
		MatchIDs:         c.MatchIDs,
		AccountID:        c.AccountID,
		Detail:           c.Detail,
		ResolutionAction: string(c.ResolutionAction),
		ResolutionNote:   c.ResolutionNote,
		CreatedAt:        c.CreatedAt,
		ResolvedAt:       c.ResolvedAt,
	}
}

// ChecksFromDomain converts domain checks to responses.
func ChecksFromDomain(checks []*domain.ConsistencyCheck) []*CheckResponse {
	result := make([]*CheckResponse, len(checks))
	for i, c := range checks {
		result[i] = CheckFromDomain(c)
	}
	return result
}

// ListChecksResponse wraps a check listing.
type ListChecksResponse struct {
	Checks []*CheckResponse `json:"checks"`
	Total  int64            `json:"total"`
}

// ScanResponse wraps a consistency scan result.
type ScanResponse struct {
	Opened     []*CheckResponse `json:"opened"`
	Duplicates int              `json:"duplicates"`
	Errors     int              `json:"errors"`
}

// TrialBalanceRowResponse is one row of the trial balance.
type TrialBalanceRowResponse struct {
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	AccountType string          `json:"account_type"`
	Debits      decimal.Decimal `json:"debits"`
	Credits     decimal.Decimal `json:"credits"`
	Net         decimal.Decimal `json:"net"`
}

// TrialBalanceResponse wraps the trial balance report.
type TrialBalanceResponse struct {
	Rows         []TrialBalanceRowResponse `json:"rows"`
	TotalDebits  decimal.Decimal           `json:"total_debits"`
	TotalCredits decimal.Decimal           `json:"total_credits"`
}

// TrialBalanceFromDomain converts trial balance rows to a response.
func TrialBalanceFromDomain(rows []*domain.TrialBalanceRow) *TrialBalanceResponse {
	resp := &TrialBalanceResponse{
		Rows:         make([]TrialBalanceRowResponse, len(rows)),
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for i, r := range rows {
		resp.Rows[i] = TrialBalanceRowResponse{
			AccountID:   r.AccountID,
			AccountName: r.AccountName,
			AccountType: string(r.AccountType),
			Debits:      r.Debits,
			Credits:     r.Credits,
			Net:         r.Net(),
		}
		resp.TotalDebits = resp.TotalDebits.Add(r.Debits)
		resp.TotalCredits = resp.TotalCredits.Add(r.Credits)
	}
	return resp
}

// EquationResponse wraps the accounting-equation check.
type EquationResponse struct {
	TotalDebits  decimal.Decimal            `json:"total_debits"`
	TotalCredits decimal.Decimal            `json:"total_credits"`
	TypeTotals   map[string]decimal.Decimal `json:"type_totals"`
	Residual     decimal.Decimal            `json:"residual"`
	Balanced     bool                       `json:"balanced"`
	CheckedAt    time.Time                  `json:"checked_at"`
}

// EquationFromReport converts an equation report to a response.
func EquationFromReport(r *usecase.EquationReport) *EquationResponse {
	totals := make(map[string]decimal.Decimal, len(r.TypeTotals))
	for t, v := range r.TypeTotals {
		totals[string(t)] = v
	}
	return &EquationResponse{
		TotalDebits:  r.TotalDebits,
		TotalCredits: r.TotalCredits,
		TypeTotals:   totals,
		Residual:     r.Residual,
		Balanced:     r.Balanced,
		CheckedAt:    r.CheckedAt,
	}
}
