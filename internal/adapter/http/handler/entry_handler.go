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

// EntryService defines the draft-entry behavior needed by EntryHandler.
type EntryService interface {
	CreateDraft(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error)
	GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error)
	ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error)
	UpdateDraftLines(ctx context.Context, input usecase.UpdateDraftLinesInput) (*domain.JournalEntry, error)
}

// EntryLifecycleService defines the posting state machine needed by
// EntryHandler.
type EntryLifecycleService interface {
	PostEntry(ctx context.Context, id string, version int64) (*domain.JournalEntry, error)
	VoidEntry(ctx context.Context, id string, version int64, reason string) (*domain.JournalEntry, error)
}

// EntryHandler handles journal entry HTTP requests.
type EntryHandler struct {
	entryUC  EntryService
	ledgerUC EntryLifecycleService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryUC EntryService, ledgerUC EntryLifecycleService) *EntryHandler {
	return &EntryHandler{entryUC: entryUC, ledgerUC: ledgerUC}
}

// Create creates a draft journal entry.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.entryUC.CreateDraft(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Get retrieves an entry with its lines.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing entry ID")
		return
	}

	entry, err := h.entryUC.GetEntry(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// List lists entries with optional status and account filters.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	input := usecase.ListEntriesInput{
		Limit:     parseIntQuery(r, "limit", 20),
		Offset:    parseIntQuery(r, "offset", 0),
		AccountID: optionalQuery(r, "account_id"),
	}
	if s := optionalQuery(r, "status"); s != nil {
		status := domain.EntryStatus(*s)
		input.Status = &status
	}

	entries, err := h.entryUC.ListEntries(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListEntriesResponse{
		Entries: dto.EntriesFromDomain(entries),
		Total:   int64(len(entries)),
	})
}

// UpdateLines replaces a draft entry's lines.
func (h *EntryHandler) UpdateLines(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing entry ID")
		return
	}

	var req dto.UpdateLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.entryUC.UpdateDraftLines(r.Context(), req.ToUseCaseInput(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Post transitions a draft to posted after re-validation.
func (h *EntryHandler) Post(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing entry ID")
		return
	}

	var req dto.PostEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.ledgerUC.PostEntry(r.Context(), id, req.Version)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Void voids a draft in place or reverses a posted entry. For posted
// entries the response is the reversal entry.
func (h *EntryHandler) Void(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "missing entry ID")
		return
	}

	var req dto.VoidEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.ledgerUC.VoidEntry(r.Context(), id, req.Version, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Draft voids happen in place and produce no reversal.
	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}
