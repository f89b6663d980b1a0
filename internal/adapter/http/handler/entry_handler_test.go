package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/adapter/http/dto"
	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

type entryServiceStub struct {
	createFn func(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error)
	getFn    func(ctx context.Context, id string) (*domain.JournalEntry, error)
	listFn   func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error)
	updateFn func(ctx context.Context, input usecase.UpdateDraftLinesInput) (*domain.JournalEntry, error)
}

func (s *entryServiceStub) CreateDraft(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error) {
	return s.createFn(ctx, input)
}

func (s *entryServiceStub) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return s.getFn(ctx, id)
}

func (s *entryServiceStub) ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error) {
	return s.listFn(ctx, input)
}

func (s *entryServiceStub) UpdateDraftLines(ctx context.Context, input usecase.UpdateDraftLinesInput) (*domain.JournalEntry, error) {
	return s.updateFn(ctx, input)
}

type lifecycleServiceStub struct {
	postFn func(ctx context.Context, id string, version int64) (*domain.JournalEntry, error)
	voidFn func(ctx context.Context, id string, version int64, reason string) (*domain.JournalEntry, error)
}

func (s *lifecycleServiceStub) PostEntry(ctx context.Context, id string, version int64) (*domain.JournalEntry, error) {
	return s.postFn(ctx, id, version)
}

func (s *lifecycleServiceStub) VoidEntry(ctx context.Context, id string, version int64, reason string) (*domain.JournalEntry, error) {
	return s.voidFn(ctx, id, version, reason)
}

func newEntryServiceStub() *entryServiceStub {
	return &entryServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error) {
			return nil, nil
		},
		getFn: func(ctx context.Context, id string) (*domain.JournalEntry, error) { return nil, nil },
		listFn: func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error) {
			return nil, nil
		},
		updateFn: func(ctx context.Context, input usecase.UpdateDraftLinesInput) (*domain.JournalEntry, error) {
			return nil, nil
		},
	}
}

func newLifecycleServiceStub() *lifecycleServiceStub {
	return &lifecycleServiceStub{
		postFn: func(ctx context.Context, id string, version int64) (*domain.JournalEntry, error) {
			return nil, nil
		},
		voidFn: func(ctx context.Context, id string, version int64, reason string) (*domain.JournalEntry, error) {
			return nil, nil
		},
	}
}

func testEntry(id string, status domain.EntryStatus) *domain.JournalEntry {
	return &domain.JournalEntry{
		ID:        id,
		EntryDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Memo:      "office rent",
		Status:    status,
		Version:   1,
		Lines: []domain.JournalLine{
			{ID: "ln-1", AccountID: "acc-exp", Direction: domain.DirectionDebit, Amount: decimal.NewFromInt(100), Currency: "USD"},
			{ID: "ln-2", AccountID: "acc-cash", Direction: domain.DirectionCredit, Amount: decimal.NewFromInt(100), Currency: "USD"},
		},
	}
}

func TestEntryHandler_Create_Success(t *testing.T) {
	var captured usecase.CreateEntryInput
	stub := newEntryServiceStub()
	stub.createFn = func(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error) {
		captured = input
		return testEntry("en-1", domain.EntryStatusDraft), nil
	}
	handler := NewEntryHandler(stub, newLifecycleServiceStub())

	body, _ := json.Marshal(dto.CreateEntryRequest{
		EntryDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Memo:      "office rent",
		Lines: []dto.LineRequest{
			{AccountID: "acc-exp", Direction: "debit", Amount: decimal.NewFromInt(100), Currency: "USD"},
			{AccountID: "acc-cash", Direction: "credit", Amount: decimal.NewFromInt(100), Currency: "USD"},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/entries", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Memo != "office rent" || len(captured.Lines) != 2 {
		t.Fatalf("expected input to match request, got %+v", captured)
	}
	if captured.Lines[0].Direction != domain.DirectionDebit {
		t.Fatalf("expected first line debit, got %s", captured.Lines[0].Direction)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "en-1" || resp.Status != string(domain.EntryStatusDraft) {
		t.Fatalf("expected draft en-1, got %+v", resp)
	}
}

func TestEntryHandler_Create_InvalidJSON(t *testing.T) {
	stub := newEntryServiceStub()
	stub.createFn = func(ctx context.Context, input usecase.CreateEntryInput) (*domain.JournalEntry, error) {
		t.Fatal("CreateDraft should not be called for invalid payload")
		return nil, nil
	}
	handler := NewEntryHandler(stub, newLifecycleServiceStub())

	req := httptest.NewRequest(http.MethodPost, "/entries", bytes.NewBufferString("{invalid json"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEntryHandler_List_Filters(t *testing.T) {
	var captured usecase.ListEntriesInput
	stub := newEntryServiceStub()
	stub.listFn = func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.JournalEntry, error) {
		captured = input
		return []*domain.JournalEntry{testEntry("en-1", domain.EntryStatusPosted)}, nil
	}
	handler := NewEntryHandler(stub, newLifecycleServiceStub())

	req := httptest.NewRequest(http.MethodGet, "/entries?status=posted&account_id=acc-1&limit=5", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Status == nil || *captured.Status != domain.EntryStatusPosted {
		t.Fatalf("expected posted status filter, got %v", captured.Status)
	}
	if captured.AccountID == nil || *captured.AccountID != "acc-1" {
		t.Fatalf("expected account filter acc-1, got %v", captured.AccountID)
	}
	if captured.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", captured.Limit)
	}

	var resp dto.ListEntriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.Entries))
	}
}

func TestEntryHandler_Post(t *testing.T) {
	lifecycle := newLifecycleServiceStub()
	lifecycle.postFn = func(ctx context.Context, id string, version int64) (*domain.JournalEntry, error) {
		if id != "en-1" || version != 1 {
			t.Fatalf("expected en-1 v1, got %s v%d", id, version)
		}
		return testEntry("en-1", domain.EntryStatusPosted), nil
	}
	handler := NewEntryHandler(newEntryServiceStub(), lifecycle)

	body, _ := json.Marshal(dto.PostEntryRequest{Version: 1})
	req := httptest.NewRequest(http.MethodPost, "/entries/en-1/post", bytes.NewReader(body))
	req = setChiURLParam(req, "id", "en-1")
	rec := httptest.NewRecorder()

	handler.Post(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != string(domain.EntryStatusPosted) {
		t.Fatalf("expected posted entry, got %s", resp.Status)
	}
}

func TestEntryHandler_Post_Imbalance(t *testing.T) {
	lifecycle := newLifecycleServiceStub()
	lifecycle.postFn = func(ctx context.Context, id string, version int64) (*domain.JournalEntry, error) {
		return nil, domain.NewImbalanceError(decimal.NewFromInt(25), domain.DirectionCredit)
	}
	handler := NewEntryHandler(newEntryServiceStub(), lifecycle)

	body, _ := json.Marshal(dto.PostEntryRequest{Version: 1})
	req := httptest.NewRequest(http.MethodPost, "/entries/en-1/post", bytes.NewReader(body))
	req = setChiURLParam(req, "id", "en-1")
	rec := httptest.NewRecorder()

	handler.Post(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != codeValidationFailed {
		t.Fatalf("expected validation_failed, got %s", resp.Error.Code)
	}
	if resp.Error.Delta == nil || !resp.Error.Delta.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected delta 25 in envelope, got %v", resp.Error.Delta)
	}
	if resp.Error.ShortSide != "credit" {
		t.Fatalf("expected short side credit, got %s", resp.Error.ShortSide)
	}
}

func TestEntryHandler_Post_VersionConflict(t *testing.T) {
	lifecycle := newLifecycleServiceStub()
	lifecycle.postFn = func(ctx context.Context, id string, version int64) (*domain.JournalEntry, error) {
		return nil, domain.NewConflictError("journal_entry", id, version, 4)
	}
	handler := NewEntryHandler(newEntryServiceStub(), lifecycle)

	body, _ := json.Marshal(dto.PostEntryRequest{Version: 1})
	req := httptest.NewRequest(http.MethodPost, "/entries/en-1/post", bytes.NewReader(body))
	req = setChiURLParam(req, "id", "en-1")
	rec := httptest.NewRecorder()

	handler.Post(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.ActualVersion == nil || *resp.Error.ActualVersion != 4 {
		t.Fatalf("expected actual_version 4, got %v", resp.Error.ActualVersion)
	}
}

func TestEntryHandler_Void_PostedReturnsReversal(t *testing.T) {
	original := "en-1"
	reversal := testEntry("en-2", domain.EntryStatusPosted)
	reversal.ReversalOf = &original

	lifecycle := newLifecycleServiceStub()
	lifecycle.voidFn = func(ctx context.Context, id string, version int64, reason string) (*domain.JournalEntry, error) {
		if reason != "duplicate" {
			t.Fatalf("expected reason duplicate, got %s", reason)
		}
		return reversal, nil
	}
	handler := NewEntryHandler(newEntryServiceStub(), lifecycle)

	body, _ := json.Marshal(dto.VoidEntryRequest{Version: 2, Reason: "duplicate"})
	req := httptest.NewRequest(http.MethodPost, "/entries/en-1/void", bytes.NewReader(body))
	req = setChiURLParam(req, "id", "en-1")
	rec := httptest.NewRecorder()

	handler.Void(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "en-2" || resp.ReversalOf == nil || *resp.ReversalOf != "en-1" {
		t.Fatalf("expected reversal of en-1, got %+v", resp)
	}
}

func TestEntryHandler_Void_DraftNoContent(t *testing.T) {
	handler := NewEntryHandler(newEntryServiceStub(), newLifecycleServiceStub())

	body, _ := json.Marshal(dto.VoidEntryRequest{Version: 1, Reason: "typo"})
	req := httptest.NewRequest(http.MethodPost, "/entries/en-1/void", bytes.NewReader(body))
	req = setChiURLParam(req, "id", "en-1")
	rec := httptest.NewRecorder()

	handler.Void(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for draft void, got %d", rec.Code)
	}
}

func TestEntryHandler_UpdateLines(t *testing.T) {
	var captured usecase.UpdateDraftLinesInput
	stub := newEntryServiceStub()
	stub.updateFn = func(ctx context.Context, input usecase.UpdateDraftLinesInput) (*domain.JournalEntry, error) {
		captured = input
		return testEntry("en-1", domain.EntryStatusDraft), nil
	}
	handler := NewEntryHandler(stub, newLifecycleServiceStub())

	body, _ := json.Marshal(dto.UpdateLinesRequest{
		Version: 1,
		Lines: []dto.LineRequest{
			{AccountID: "acc-exp", Direction: "debit", Amount: decimal.NewFromInt(60), Currency: "USD"},
			{AccountID: "acc-cash", Direction: "credit", Amount: decimal.NewFromInt(60), Currency: "USD"},
		},
	})
	req := httptest.NewRequest(http.MethodPut, "/entries/en-1/lines", bytes.NewReader(body))
	req = setChiURLParam(req, "id", "en-1")
	rec := httptest.NewRecorder()

	handler.UpdateLines(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.EntryID != "en-1" || captured.Version != 1 || len(captured.Lines) != 2 {
		t.Fatalf("expected update input for en-1 v1, got %+v", captured)
	}
}
