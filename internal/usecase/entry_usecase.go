package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
)

// EntryUseCase handles journal entry drafting: creation, line edits and
// listing. Posting, voiding and reconciling live in LedgerUseCase.
type EntryUseCase struct {
	txManager   TransactionManager
	entryRepo   EntryRepository
	accountRepo AccountRepository
	idGen       IDGenerator
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	entryRepo EntryRepository,
	accountRepo AccountRepository,
	idGen IDGenerator,
) *EntryUseCase {
	return &EntryUseCase{
		txManager:   txManager,
		entryRepo:   entryRepo,
		accountRepo: accountRepo,
		idGen:       idGen,
	}
}

// LineInput represents one line of a draft entry.
type LineInput struct {
	AccountID string
	Direction domain.Direction
	Amount    decimal.Decimal
	Currency  string
	FxRate    *decimal.Decimal
	EventType string
}

// CreateEntryInput represents input for creating a draft entry.
type CreateEntryInput struct {
	EntryDate  time.Time
	Memo       string
	SourceType domain.SourceType
	Lines      []LineInput
}

// CreateDraft creates a journal entry in draft status. The draft must pass
// structural validation; balance is enforced at post time.
func (uc *EntryUseCase) CreateDraft(ctx context.Context, input CreateEntryInput) (*domain.JournalEntry, error) {
	now := time.Now().UTC()

	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = domain.SourceTypeManual
	}

	entry := &domain.JournalEntry{
		ID:         uc.idGen.Generate(),
		EntryDate:  input.EntryDate,
		Memo:       input.Memo,
		SourceType: sourceType,
		Status:     domain.EntryStatusDraft,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
		Lines:      uc.buildLines(input.Lines),
	}

	if err := domain.ValidateMemo(entry.Memo); err != nil {
		return nil, err
	}
	if err := entry.ValidateShape(); err != nil {
		return nil, err
	}
	if err := uc.checkLineAccounts(ctx, entry.Lines); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

// UpdateDraftLinesInput represents input for replacing a draft's lines.
type UpdateDraftLinesInput struct {
	EntryID string
	Version int64
	Memo    *string
	Lines   []LineInput
}

// UpdateDraftLines replaces the lines of a draft entry. Entries that have
// left draft are immutable.
func (uc *EntryUseCase) UpdateDraftLines(ctx context.Context, input UpdateDraftLinesInput) (*domain.JournalEntry, error) {
	now := time.Now().UTC()

	lines := uc.buildLines(input.Lines)
	probe := &domain.JournalEntry{Lines: lines}
	if err := probe.ValidateShape(); err != nil {
		return nil, err
	}
	if err := uc.checkLineAccounts(ctx, lines); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, input.EntryID)
	if err != nil {
		return nil, err
	}

	if entry.Status != domain.EntryStatusDraft {
		return nil, domain.NewAlreadyProcessedError("journal_entry", entry.ID, string(entry.Status))
	}
	if entry.Version != input.Version {
		return nil, domain.NewConflictError("journal_entry", entry.ID, input.Version, entry.Version)
	}

	for i := range lines {
		lines[i].EntryID = entry.ID
	}

	if err := uc.entryRepo.ReplaceLines(ctx, tx, entry.ID, lines, input.Memo, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	entry.Lines = lines
	entry.Version++
	entry.UpdatedAt = now
	if input.Memo != nil {
		entry.Memo = *input.Memo
	}

	return entry, nil
}

// GetEntry retrieves an entry with its lines.
func (uc *EntryUseCase) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return uc.entryRepo.GetByID(ctx, id)
}

// ListEntriesInput represents input for listing entries.
type ListEntriesInput struct {
	Status    *domain.EntryStatus
	AccountID *string
	Limit     int
	Offset    int
}

// ListEntries lists entries with optional status and account filters.
func (uc *EntryUseCase) ListEntries(ctx context.Context, input ListEntriesInput) ([]*domain.JournalEntry, error) {
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)

	return uc.entryRepo.List(ctx, EntryFilter{
		Status:    input.Status,
		AccountID: input.AccountID,
		Limit:     limit,
		Offset:    offset,
	})
}

func (uc *EntryUseCase) buildLines(inputs []LineInput) []domain.JournalLine {
	lines := make([]domain.JournalLine, 0, len(inputs))
	for i, in := range inputs {
		lines = append(lines, domain.JournalLine{
			ID:        uc.idGen.Generate(),
			AccountID: in.AccountID,
			Direction: in.Direction,
			Amount:    in.Amount,
			Currency:  in.Currency,
			FxRate:    in.FxRate,
			EventType: in.EventType,
			Position:  i,
		})
	}
	return lines
}

// checkLineAccounts verifies that every referenced account exists, is
// active, and agrees on currency (or the line carries an fx rate).
func (uc *EntryUseCase) checkLineAccounts(ctx context.Context, lines []domain.JournalLine) error {
	accounts, err := fetchLineAccounts(ctx, uc.accountRepo, lines)
	if err != nil {
		return err
	}
	return checkLinesAgainstAccounts(lines, accounts)
}

// fetchLineAccounts loads the distinct accounts referenced by lines.
func fetchLineAccounts(ctx context.Context, repo AccountRepository, lines []domain.JournalLine) (map[string]*domain.Account, error) {
	ids := collectLineAccountIDs(lines)

	accounts, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(accounts) != len(ids) {
		return nil, domain.ErrAccountNotFound
	}

	m := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}
	return m, nil
}

// collectLineAccountIDs returns the distinct account IDs of lines, sorted
// so callers can lock in a stable order.
func collectLineAccountIDs(lines []domain.JournalLine) []string {
	seen := make(map[string]bool)

	var ids []string
	for _, l := range lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}

	sort.Strings(ids)
	return ids
}

func checkLinesAgainstAccounts(lines []domain.JournalLine, accounts map[string]*domain.Account) error {
	for _, l := range lines {
		account := accounts[l.AccountID]
		if account == nil {
			return domain.ErrAccountNotFound
		}
		if !account.Active {
			return domain.ErrAccountInactive
		}
		if l.Currency != account.Currency && l.FxRate == nil {
			return domain.ErrMissingFxRate
		}
	}
	return nil
}
