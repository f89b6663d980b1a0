package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidAccountType = errors.New("invalid account type")

	// Journal entry errors
	ErrEntryNotFound    = errors.New("journal entry not found")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrTooFewLines      = errors.New("journal entry needs at least two lines")
	ErrCurrencyMismatch = errors.New("line currency differs from account currency")
	ErrMissingFxRate    = errors.New("fx rate required when line currency differs from account currency")

	// Bank statement errors
	ErrBatchNotFound = errors.New("statement batch not found")
	ErrTxnNotFound   = errors.New("bank transaction not found")

	// Reconciliation errors
	ErrMatchNotFound        = errors.New("reconciliation match not found")
	ErrRunNotFound          = errors.New("matcher run not found")
	ErrRejectReasonRequired = errors.New("reject requires a reason")

	// Consistency errors
	ErrCheckNotFound    = errors.New("consistency check not found")
	ErrDuplicateCheck   = errors.New("an open check already carries this fingerprint")
	ErrInvalidAction    = errors.New("invalid resolution action")
	ErrInvalidCheckType = errors.New("invalid check type")
)

// MinEntryLines is the minimum number of lines in a journal entry.
const MinEntryLines = 2

// ValidationError reports a request that fails domain validation. For
// unbalanced entries Delta carries the absolute difference between the
// sides and ShortSide names the side that is short.
type ValidationError struct {
	Field     string
	Message   string
	Delta     *decimal.Decimal
	ShortSide Direction
}

// NewValidationError builds a plain field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewImbalanceError builds the validation error for an entry whose debits
// and credits disagree.
func NewImbalanceError(delta decimal.Decimal, shortSide Direction) *ValidationError {
	return &ValidationError{
		Field:     "lines",
		Message:   fmt.Sprintf("entry does not balance: %s side short by %s", shortSide, delta.String()),
		Delta:     &delta,
		ShortSide: shortSide,
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError reports an optimistic-concurrency miss: the caller's
// expected version no longer matches the stored one.
type ConflictError struct {
	Resource string
	ID       string
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s version conflict: expected %d, found %d",
		e.Resource, e.ID, e.Expected, e.Actual)
}

// NewConflictError builds a ConflictError.
func NewConflictError(resource, id string, expected, actual int64) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Expected: expected, Actual: actual}
}

// AlreadyProcessedError reports an operation against a record that is no
// longer in an actionable state, such as posting a posted entry or
// accepting a rejected match.
type AlreadyProcessedError struct {
	Resource string
	ID       string
	Status   string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s %s already processed: status is %s", e.Resource, e.ID, e.Status)
}

// NewAlreadyProcessedError builds an AlreadyProcessedError.
func NewAlreadyProcessedError(resource, id, status string) *AlreadyProcessedError {
	return &AlreadyProcessedError{Resource: resource, ID: id, Status: status}
}

// ConsistencyBlockError reports an acceptance refused because the match is
// implicated in open consistency checks at or above the blocking severity.
type ConsistencyBlockError struct {
	MatchID  string
	CheckIDs []string
}

func (e *ConsistencyBlockError) Error() string {
	return fmt.Sprintf("match %s blocked by open consistency checks: %s",
		e.MatchID, strings.Join(e.CheckIDs, ", "))
}
