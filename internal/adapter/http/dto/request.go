package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		Name:     r.Name,
		Type:     domain.AccountType(r.Type),
		Currency: r.Currency,
	}
}

// LineRequest represents one journal line in an entry request.
type LineRequest struct {
	AccountID string           `json:"account_id"`
	Direction string           `json:"direction"`
	Amount    decimal.Decimal  `json:"amount"`
	Currency  string           `json:"currency"`
	FxRate    *decimal.Decimal `json:"fx_rate,omitempty"`
	EventType string           `json:"event_type,omitempty"`
}

func linesToUseCaseInput(lines []LineRequest) []usecase.LineInput {
	result := make([]usecase.LineInput, len(lines))
	for i, l := range lines {
		result[i] = usecase.LineInput{
			AccountID: l.AccountID,
			Direction: domain.Direction(l.Direction),
			Amount:    l.Amount,
			Currency:  l.Currency,
			FxRate:    l.FxRate,
			EventType: l.EventType,
		}
	}
	return result
}

// CreateEntryRequest represents a request to create a draft journal entry.
type CreateEntryRequest struct {
	EntryDate  time.Time     `json:"entry_date"`
	Memo       string        `json:"memo"`
	SourceType string        `json:"source_type,omitempty"`
	Lines      []LineRequest `json:"lines"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateEntryRequest) ToUseCaseInput() usecase.CreateEntryInput {
	return usecase.CreateEntryInput{
		EntryDate:  r.EntryDate,
		Memo:       r.Memo,
		SourceType: domain.SourceType(r.SourceType),
		Lines:      linesToUseCaseInput(r.Lines),
	}
}

// UpdateLinesRequest represents a request to replace a draft entry's lines.
type UpdateLinesRequest struct {
	Version int64         `json:"version"`
	Memo    *string       `json:"memo,omitempty"`
	Lines   []LineRequest `json:"lines"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateLinesRequest) ToUseCaseInput(entryID string) usecase.UpdateDraftLinesInput {
	return usecase.UpdateDraftLinesInput{
		EntryID: entryID,
		Version: r.Version,
		Memo:    r.Memo,
		Lines:   linesToUseCaseInput(r.Lines),
	}
}

// PostEntryRequest represents a request to post a draft entry.
type PostEntryRequest struct {
	Version int64 `json:"version"`
}

// VoidEntryRequest represents a request to void an entry.
type VoidEntryRequest struct {
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

// StatementTxnRequest is one extracted statement row.
type StatementTxnRequest struct {
	TxnDate     time.Time       `json:"txn_date"`
	Direction   string          `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
}

// IngestStatementRequest represents a statement import from the extraction
// collaborator.
type IngestStatementRequest struct {
	SourceAccountID string                `json:"source_account_id"`
	StatementDate   time.Time             `json:"statement_date"`
	OpeningBalance  decimal.Decimal       `json:"opening_balance"`
	ClosingBalance  decimal.Decimal       `json:"closing_balance"`
	Transactions    []StatementTxnRequest `json:"transactions"`
}

// ToUseCaseInput converts to use case input.
func (r *IngestStatementRequest) ToUseCaseInput() usecase.IngestStatementInput {
	txns := make([]usecase.TxnInput, len(r.Transactions))
	for i, t := range r.Transactions {
		txns[i] = usecase.TxnInput{
			TxnDate:     t.TxnDate,
			Direction:   domain.TxnDirection(t.Direction),
			Amount:      t.Amount,
			Currency:    t.Currency,
			Description: t.Description,
			Reference:   t.Reference,
		}
	}
	return usecase.IngestStatementInput{
		SourceAccountID: r.SourceAccountID,
		StatementDate:   r.StatementDate,
		OpeningBalance:  r.OpeningBalance,
		ClosingBalance:  r.ClosingBalance,
		Transactions:    txns,
	}
}

// StartRunRequest represents a request to start a matcher run.
type StartRunRequest struct {
	AccountID *string `json:"account_id,omitempty"`
	BatchID   *string `json:"batch_id,omitempty"`
}

// ToScope converts to a run scope.
func (r *StartRunRequest) ToScope() usecase.RunScope {
	return usecase.RunScope{AccountID: r.AccountID, BatchID: r.BatchID}
}

// AcceptMatchRequest represents a single accept decision.
type AcceptMatchRequest struct {
	Version int64  `json:"version"`
	Note    string `json:"note,omitempty"`
}

// RejectMatchRequest represents a single reject decision.
type RejectMatchRequest struct {
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

// BatchItem identifies one match in a batch decision.
type BatchItem struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// BatchAcceptRequest represents a batch accept decision.
type BatchAcceptRequest struct {
	Items []BatchItem `json:"items"`
}

// ToUseCaseInputs converts to per-item accept inputs.
func (r *BatchAcceptRequest) ToUseCaseInputs() []usecase.AcceptMatchInput {
	inputs := make([]usecase.AcceptMatchInput, len(r.Items))
	for i, item := range r.Items {
		inputs[i] = usecase.AcceptMatchInput{
			MatchID:         item.ID,
			ExpectedVersion: item.Version,
		}
	}
	return inputs
}

// BatchRejectRequest represents a batch reject decision. Reason applies to
// every item.
type BatchRejectRequest struct {
	Items  []BatchItem `json:"items"`
	Reason string      `json:"reason"`
}

// ToUseCaseInputs converts to per-item reject inputs.
func (r *BatchRejectRequest) ToUseCaseInputs() []usecase.RejectMatchInput {
	inputs := make([]usecase.RejectMatchInput, len(r.Items))
	for i, item := range r.Items {
		inputs[i] = usecase.RejectMatchInput{
			MatchID:         item.ID,
			ExpectedVersion: item.Version,
			Reason:          r.Reason,
		}
	}
	return inputs
}

// ResolveCheckRequest represents a request to resolve a consistency check.
type ResolveCheckRequest struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ResolveCheckRequest) ToUseCaseInput(checkID string) usecase.ResolveCheckInput {
	return usecase.ResolveCheckInput{
		CheckID: checkID,
		Action:  domain.ResolutionAction(r.Action),
		Note:    r.Note,
	}
}
