package handler

import (
	"context"
	"net/http"

	"github.com/finbase/ledgermatch/internal/adapter/http/dto"
	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// LedgerReportService defines the ledger-wide reports needed by
// LedgerHandler.
type LedgerReportService interface {
	TrialBalance(ctx context.Context) ([]*domain.TrialBalanceRow, error)
	CheckEquation(ctx context.Context) (*usecase.EquationReport, error)
}

// LedgerHandler serves ledger-wide reports.
type LedgerHandler struct {
	ledgerUC LedgerReportService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerReportService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// TrialBalance returns per-account debit/credit totals over posted and
// reconciled entries.
func (h *LedgerHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledgerUC.TrialBalance(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrialBalanceFromDomain(rows))
}

// Equation returns the accounting-equation check. The report is always 200;
// Balanced says whether the equation holds.
func (h *LedgerHandler) Equation(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.CheckEquation(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EquationFromReport(report))
}
