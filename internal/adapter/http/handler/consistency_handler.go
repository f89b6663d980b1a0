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

// ConsistencyService defines the checker behavior needed by
// ConsistencyHandler.
type ConsistencyService interface {
	Scan(ctx context.Context) (*usecase.ScanReport, error)
	GetCheck(ctx context.Context, id string) (*domain.ConsistencyCheck, error)
	ListChecks(ctx context.Context, filter usecase.CheckFilter) ([]*domain.ConsistencyCheck, error)
	ResolveCheck(ctx context.Context, input usecase.ResolveCheckInput) (*domain.ConsistencyCheck, error)
}

// ConsistencyHandler handles consistency check HTTP requests.
type ConsistencyHandler struct {
	checkUC ConsistencyService
}

// NewConsistencyHandler creates a new ConsistencyHandler.
func NewConsistencyHandler(checkUC ConsistencyService) *ConsistencyHandler {
	return &ConsistencyHandler{checkUC: checkUC}
}

// Scan runs every detection now and reports what it opened.
func (h *ConsistencyHandler) Scan(w http.ResponseWriter, r *http.Request) {
	report, err := h.checkUC.Scan(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ScanResponse{
		Opened:     dto.ChecksFromDomain(report.Opened),
		Duplicates: report.Duplicates,
		Errors:     report.Errors,
	})
}

// List lists consistency checks with optional filters.
func (h *ConsistencyHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := usecase.CheckFilter{
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	}
	if s := optionalQuery(r, "status"); s != nil {
		status := domain.CheckStatus(*s)
		filter.Status = &status
	}
	if s := optionalQuery(r, "type"); s != nil {
		checkType := domain.CheckType(*s)
		filter.Type = &checkType
	}
	if s := optionalQuery(r, "severity"); s != nil {
		severity := domain.Severity(*s)
		filter.Severity = &severity
	}

	checks, err := h.checkUC.ListChecks(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListChecksResponse{
		Checks: dto.ChecksFromDomain(checks),
		Total:  int64(len(checks)),
	})
}

// Get retrieves a consistency check.
func (h *ConsistencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing check ID")
		return
	}

	check, err := h.checkUC.GetCheck(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckFromDomain(check))
}

// Resolve closes an open check with an explicit action and optional note.
func (h *ConsistencyHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing check ID")
		return
	}

	var req dto.ResolveCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	check, err := h.checkUC.ResolveCheck(r.Context(), req.ToUseCaseInput(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckFromDomain(check))
}
