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

// MatcherService defines the matcher-run behavior needed by
// ReconciliationHandler.
type MatcherService interface {
	Run(ctx context.Context, scope usecase.RunScope) (*domain.MatcherRun, error)
	GetRun(ctx context.Context, id string) (*domain.MatcherRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*domain.MatcherRun, error)
}

// ReviewService defines the review-queue behavior needed by
// ReconciliationHandler.
type ReviewService interface {
	ListPending(ctx context.Context, limit, offset int) ([]*domain.ReconciliationMatch, error)
	GetMatch(ctx context.Context, id string) (*domain.ReconciliationMatch, error)
	AcceptMatch(ctx context.Context, input usecase.AcceptMatchInput) (*domain.ReconciliationMatch, error)
	RejectMatch(ctx context.Context, input usecase.RejectMatchInput) (*domain.ReconciliationMatch, error)
	BatchAccept(ctx context.Context, inputs []usecase.AcceptMatchInput) []usecase.BatchResult
	BatchReject(ctx context.Context, inputs []usecase.RejectMatchInput) []usecase.BatchResult
	Stats(ctx context.Context) (*domain.ReconciliationStats, error)
}

// MatchQueryService lists matches beyond the pending queue.
type MatchQueryService interface {
	ListByStatus(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.ReconciliationMatch, error)
}

// ReconciliationHandler handles matcher runs, the review queue, and match
// decisions.
type ReconciliationHandler struct {
	matcherUC MatcherService
	reviewUC  ReviewService
	matchRepo MatchQueryService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(matcherUC MatcherService, reviewUC ReviewService, matchRepo MatchQueryService) *ReconciliationHandler {
	return &ReconciliationHandler{
		matcherUC: matcherUC,
		reviewUC:  reviewUC,
		matchRepo: matchRepo,
	}
}

// StartRun executes a matcher run synchronously and returns its summary.
func (h *ReconciliationHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
			return
		}
	}

	run, err := h.matcherUC.Run(r.Context(), req.ToScope())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RunFromDomain(run))
}

// GetRun retrieves a matcher run.
func (h *ReconciliationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing run ID")
		return
	}

	run, err := h.matcherUC.GetRun(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RunFromDomain(run))
}

// ListRuns lists matcher runs, newest first.
func (h *ReconciliationHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	runs, err := h.matcherUC.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]*dto.RunResponse, len(runs))
	for i, run := range runs {
		resp[i] = dto.RunFromDomain(run)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListMatches lists matches by status; the default is the pending review
// queue, highest score first.
func (h *ReconciliationHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	status := domain.MatchStatusPendingReview
	if s := optionalQuery(r, "status"); s != nil {
		status = domain.MatchStatus(*s)
	}

	var (
		matches []*domain.ReconciliationMatch
		err     error
	)
	if status == domain.MatchStatusPendingReview {
		matches, err = h.reviewUC.ListPending(r.Context(), limit, offset)
	} else {
		matches, err = h.matchRepo.ListByStatus(r.Context(), status, limit, offset)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListMatchesResponse{
		Matches: dto.MatchesFromDomain(matches),
		Total:   int64(len(matches)),
	})
}

// GetMatch retrieves a match with its score breakdown.
func (h *ReconciliationHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing match ID")
		return
	}

	match, err := h.reviewUC.GetMatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MatchFromDomain(match))
}

// Accept confirms a pending match at the given version.
func (h *ReconciliationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing match ID")
		return
	}

	var req dto.AcceptMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	match, err := h.reviewUC.AcceptMatch(r.Context(), usecase.AcceptMatchInput{
		MatchID:         id,
		ExpectedVersion: req.Version,
		Note:            req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MatchFromDomain(match))
}

// Reject refuses a pending match at the given version. Reason is required.
func (h *ReconciliationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing match ID")
		return
	}

	var req dto.RejectMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	match, err := h.reviewUC.RejectMatch(r.Context(), usecase.RejectMatchInput{
		MatchID:         id,
		ExpectedVersion: req.Version,
		Reason:          req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MatchFromDomain(match))
}

// BatchAccept accepts many pending matches; one item's failure never aborts
// the rest, and the response reports each item's outcome.
func (h *ReconciliationHandler) BatchAccept(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchAcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "items must not be empty")
		return
	}

	results := h.reviewUC.BatchAccept(r.Context(), req.ToUseCaseInputs())
	writeJSON(w, http.StatusOK, batchDecisionResponse(results))
}

// BatchReject rejects many pending matches with one shared reason.
func (h *ReconciliationHandler) BatchReject(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchRejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "items must not be empty")
		return
	}

	results := h.reviewUC.BatchReject(r.Context(), req.ToUseCaseInputs())
	writeJSON(w, http.StatusOK, batchDecisionResponse(results))
}

// Stats returns reconciliation statistics.
func (h *ReconciliationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reviewUC.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func batchDecisionResponse(results []usecase.BatchResult) dto.BatchDecisionResponse {
	resp := dto.BatchDecisionResponse{
		Results: make([]dto.BatchItemResult, len(results)),
	}
	for i, res := range results {
		item := dto.BatchItemResult{ID: res.MatchID}
		if res.Err != nil {
			_, body := errorBody(res.Err)
			item.Error = &body
			resp.Failed++
		} else {
			item.OK = true
			item.Match = dto.MatchFromDomain(res.Match)
			resp.Succeeded++
		}
		resp.Results[i] = item
	}
	return resp
}
