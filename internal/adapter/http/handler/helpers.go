package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/finbase/ledgermatch/internal/adapter/http/dto"
	"github.com/finbase/ledgermatch/internal/domain"
)

// Error codes returned in the envelope. The UI switches on these; keep
// them stable.
const (
	codeInvalidRequest      = "invalid_request"
	codeValidationFailed    = "validation_failed"
	codeNotFound            = "not_found"
	codeVersionConflict     = "version_conflict"
	codeAlreadyProcessed    = "already_processed"
	codeConsistencyBlocked  = "consistency_blocked"
	codeInternalServerError = "internal_error"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error envelope with the given code and message.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorBody{Code: code, Message: message},
	})
}

// writeDomainError maps a domain error onto the envelope, carrying the
// structured fields the taxonomy promises (delta, versions, blocking
// checks).
func writeDomainError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, dto.ErrorResponse{Error: body})
}

// errorBody builds the envelope body and HTTP status for a domain error.
func errorBody(err error) (int, dto.ErrorBody) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		body := dto.ErrorBody{
			Code:    codeValidationFailed,
			Message: validationErr.Error(),
		}
		if validationErr.Delta != nil {
			body.Delta = validationErr.Delta
			body.ShortSide = string(validationErr.ShortSide)
		}
		return http.StatusBadRequest, body
	}

	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) {
		expected, actual := conflictErr.Expected, conflictErr.Actual
		return http.StatusConflict, dto.ErrorBody{
			Code:            codeVersionConflict,
			Message:         conflictErr.Error(),
			ExpectedVersion: &expected,
			ActualVersion:   &actual,
		}
	}

	var processedErr *domain.AlreadyProcessedError
	if errors.As(err, &processedErr) {
		return http.StatusConflict, dto.ErrorBody{
			Code:    codeAlreadyProcessed,
			Message: processedErr.Error(),
			Status:  processedErr.Status,
		}
	}

	var blockErr *domain.ConsistencyBlockError
	if errors.As(err, &blockErr) {
		return http.StatusConflict, dto.ErrorBody{
			Code:             codeConsistencyBlocked,
			Message:          blockErr.Error(),
			BlockingCheckIDs: blockErr.CheckIDs,
		}
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrBatchNotFound),
		errors.Is(err, domain.ErrTxnNotFound),
		errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrCheckNotFound):
		return http.StatusNotFound, dto.ErrorBody{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrInvalidAccountType),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrTooFewLines),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrMissingFxRate),
		errors.Is(err, domain.ErrRejectReasonRequired),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidCheckType):
		return http.StatusBadRequest, dto.ErrorBody{Code: codeValidationFailed, Message: err.Error()}
	}

	return http.StatusInternalServerError, dto.ErrorBody{
		Code:    codeInternalServerError,
		Message: "internal server error",
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// optionalQuery returns a pointer to the query value, nil when absent.
func optionalQuery(r *http.Request, key string) *string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}
	return &val
}
