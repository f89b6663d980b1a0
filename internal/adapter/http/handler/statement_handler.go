package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finbase/ledgermatch/internal/adapter/http/dto"
	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// StatementService defines the statement intake behavior needed by
// StatementHandler.
type StatementService interface {
	IngestStatement(ctx context.Context, input usecase.IngestStatementInput) (*domain.StatementBatch, []*domain.BankTransaction, error)
	GetBatch(ctx context.Context, id string) (*domain.StatementBatch, error)
	GetTransaction(ctx context.Context, id string) (*domain.BankTransaction, error)
	ListTransactions(ctx context.Context, filter usecase.TxnFilter) ([]*domain.BankTransaction, error)
}

// StatementHandler handles statement ingest and transaction queries.
type StatementHandler struct {
	stmtUC StatementService
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(stmtUC StatementService) *StatementHandler {
	return &StatementHandler{stmtUC: stmtUC}
}

// Ingest stores one extracted statement as a batch of bank transactions.
func (h *StatementHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.IngestStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	batch, txns, err := h.stmtUC.IngestStatement(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.IngestStatementResponse{
		Batch:        dto.BatchFromDomain(batch),
		Transactions: dto.TxnsFromDomain(txns),
	})
}

// GetBatch retrieves a statement batch.
func (h *StatementHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing batch ID")
		return
	}

	batch, err := h.stmtUC.GetBatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BatchFromDomain(batch))
}

// GetTransaction retrieves a bank transaction.
func (h *StatementHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing transaction ID")
		return
	}

	txn, err := h.stmtUC.GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TxnFromDomain(txn))
}

// ListTransactions lists bank transactions with optional filters.
func (h *StatementHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := usecase.TxnFilter{
		Limit:     parseIntQuery(r, "limit", 20),
		Offset:    parseIntQuery(r, "offset", 0),
		AccountID: optionalQuery(r, "account_id"),
		BatchID:   optionalQuery(r, "batch_id"),
	}
	if s := optionalQuery(r, "status"); s != nil {
		status := domain.TxnStatus(*s)
		filter.Status = &status
	}

	txns, err := h.stmtUC.ListTransactions(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListTxnsResponse{
		Transactions: dto.TxnsFromDomain(txns),
		Total:        int64(len(txns)),
	})
}
