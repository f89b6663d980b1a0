package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbase/ledgermatch/internal/domain"
	"github.com/finbase/ledgermatch/internal/usecase"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc    func(ctx context.Context, account *domain.Account) error
	GetByIDFunc   func(ctx context.Context, id string) (*domain.Account, error)
	GetByIDsFunc  func(ctx context.Context, ids []string) ([]*domain.Account, error)
	SetActiveFunc func(ctx context.Context, id string, active bool, updatedAt time.Time) error
	ListFunc      func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

// GetByID returns a shallow copy, like a repository scanning a fresh row;
// callers mutating the result never touch stored state.
func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ctx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range ids {
		if acc, ok := m.accounts[id]; ok {
			cp := *acc
			accounts = append(accounts, &cp)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.Active = active
	acc.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// MockEntryRepository is a mock implementation of EntryRepository.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.JournalEntry

	CreateFunc            func(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.JournalEntry, error)
	GetByIDForUpdateFunc  func(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error)
	GetByIDsFunc          func(ctx context.Context, ids []string) ([]*domain.JournalEntry, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.JournalEntry, error)
	UpdateStatusFunc      func(ctx context.Context, tx usecase.Transaction, id string, status domain.EntryStatus, postedAt *time.Time, updatedAt time.Time) error
	SetReversedByFunc     func(ctx context.Context, tx usecase.Transaction, id, reversalID string, updatedAt time.Time) error
	ReplaceLinesFunc      func(ctx context.Context, tx usecase.Transaction, entryID string, lines []domain.JournalLine, memo *string, updatedAt time.Time) error
	ListFunc              func(ctx context.Context, filter usecase.EntryFilter) ([]*domain.JournalEntry, error)
	ListCandidatesFunc    func(ctx context.Context, accountID string, from, to time.Time, limit int) ([]*domain.JournalEntry, error)
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{
		entries: make(map[string]*domain.JournalEntry),
	}
}

func (m *MockEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.ID] = &cp
	return nil
}

func (m *MockEntryRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrEntryNotFound
}

func (m *MockEntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.JournalEntry, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockEntryRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.JournalEntry, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ctx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.JournalEntry
	for _, id := range ids {
		if e, ok := m.entries[id]; ok {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

func (m *MockEntryRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.JournalEntry, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return m.GetByIDs(ctx, sorted)
}

func (m *MockEntryRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.EntryStatus, postedAt *time.Time, updatedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status, postedAt, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.Status = status
	e.PostedAt = postedAt
	e.Version++
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MockEntryRepository) SetReversedBy(ctx context.Context, tx usecase.Transaction, id, reversalID string, updatedAt time.Time) error {
	if m.SetReversedByFunc != nil {
		return m.SetReversedByFunc(ctx, tx, id, reversalID, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.ReversedBy = &reversalID
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MockEntryRepository) ReplaceLines(ctx context.Context, tx usecase.Transaction, entryID string, lines []domain.JournalLine, memo *string, updatedAt time.Time) error {
	if m.ReplaceLinesFunc != nil {
		return m.ReplaceLinesFunc(ctx, tx, entryID, lines, memo, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return domain.ErrEntryNotFound
	}
	e.Lines = lines
	if memo != nil {
		e.Memo = *memo
	}
	e.Version++
	e.UpdatedAt = updatedAt
	return nil
}

func (m *MockEntryRepository) List(ctx context.Context, filter usecase.EntryFilter) ([]*domain.JournalEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.JournalEntry
	for _, e := range m.entries {
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.AccountID != nil {
			if _, _, ok := e.TouchesAccount(*filter.AccountID); !ok {
				continue
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (m *MockEntryRepository) ListCandidates(ctx context.Context, accountID string, from, to time.Time, limit int) ([]*domain.JournalEntry, error) {
	if m.ListCandidatesFunc != nil {
		return m.ListCandidatesFunc(ctx, accountID, from, to, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.JournalEntry
	for _, e := range m.entries {
		if e.Status != domain.EntryStatusPosted && e.Status != domain.EntryStatusDraft {
			continue
		}
		if e.Reversed() {
			continue
		}
		if e.EntryDate.Before(from) || e.EntryDate.After(to) {
			continue
		}
		if _, _, ok := e.TouchesAccount(accountID); !ok {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// MockStatementRepository is a mock implementation of StatementRepository.
type MockStatementRepository struct {
	mu      sync.RWMutex
	batches map[string]*domain.StatementBatch
	txns    map[string]*domain.BankTransaction

	CreateBatchFunc         func(ctx context.Context, tx usecase.Transaction, batch *domain.StatementBatch) error
	GetBatchByIDFunc        func(ctx context.Context, id string) (*domain.StatementBatch, error)
	CreateTxnFunc           func(ctx context.Context, tx usecase.Transaction, txn *domain.BankTransaction) error
	GetTxnByIDFunc          func(ctx context.Context, id string) (*domain.BankTransaction, error)
	GetTxnByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.BankTransaction, error)
	UpdateTxnStatusFunc     func(ctx context.Context, tx usecase.Transaction, id string, status domain.TxnStatus, updatedAt time.Time) error
	ListTxnsFunc            func(ctx context.Context, filter usecase.TxnFilter) ([]*domain.BankTransaction, error)
	ListUnreconciledFunc    func(ctx context.Context, scope usecase.RunScope, limit, offset int) ([]*domain.BankTransaction, error)
}

func NewMockStatementRepository() *MockStatementRepository {
	return &MockStatementRepository{
		batches: make(map[string]*domain.StatementBatch),
		txns:    make(map[string]*domain.BankTransaction),
	}
}

func (m *MockStatementRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, batch *domain.StatementBatch) error {
	if m.CreateBatchFunc != nil {
		return m.CreateBatchFunc(ctx, tx, batch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.ID] = batch
	return nil
}

func (m *MockStatementRepository) GetBatchByID(ctx context.Context, id string) (*domain.StatementBatch, error) {
	if m.GetBatchByIDFunc != nil {
		return m.GetBatchByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.batches[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, domain.ErrBatchNotFound
}

func (m *MockStatementRepository) CreateTxn(ctx context.Context, tx usecase.Transaction, txn *domain.BankTransaction) error {
	if m.CreateTxnFunc != nil {
		return m.CreateTxnFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[txn.ID] = txn
	return nil
}

func (m *MockStatementRepository) GetTxnByID(ctx context.Context, id string) (*domain.BankTransaction, error) {
	if m.GetTxnByIDFunc != nil {
		return m.GetTxnByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.txns[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrTxnNotFound
}

func (m *MockStatementRepository) GetTxnByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.BankTransaction, error) {
	if m.GetTxnByIDForUpdateFunc != nil {
		return m.GetTxnByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetTxnByID(ctx, id)
}

func (m *MockStatementRepository) UpdateTxnStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.TxnStatus, updatedAt time.Time) error {
	if m.UpdateTxnStatusFunc != nil {
		return m.UpdateTxnStatusFunc(ctx, tx, id, status, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return domain.ErrTxnNotFound
	}
	t.Status = status
	t.Version++
	t.UpdatedAt = updatedAt
	return nil
}

func (m *MockStatementRepository) ListTxns(ctx context.Context, filter usecase.TxnFilter) ([]*domain.BankTransaction, error) {
	if m.ListTxnsFunc != nil {
		return m.ListTxnsFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txns []*domain.BankTransaction
	for _, t := range m.txns {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.AccountID != nil && t.SourceAccountID != *filter.AccountID {
			continue
		}
		if filter.BatchID != nil && t.BatchID != *filter.BatchID {
			continue
		}
		txns = append(txns, t)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	return txns, nil
}

func (m *MockStatementRepository) ListUnreconciled(ctx context.Context, scope usecase.RunScope, limit, offset int) ([]*domain.BankTransaction, error) {
	if m.ListUnreconciledFunc != nil {
		return m.ListUnreconciledFunc(ctx, scope, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txns []*domain.BankTransaction
	for _, t := range m.txns {
		if t.Status == domain.TxnStatusMatched {
			continue
		}
		if scope.AccountID != nil && t.SourceAccountID != *scope.AccountID {
			continue
		}
		if scope.BatchID != nil && t.BatchID != *scope.BatchID {
			continue
		}
		txns = append(txns, t)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	if offset >= len(txns) {
		return nil, nil
	}
	txns = txns[offset:]
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// MockMatchRepository is a mock implementation of MatchRepository.
type MockMatchRepository struct {
	mu      sync.RWMutex
	matches map[string]*domain.ReconciliationMatch

	CreateFunc                      func(ctx context.Context, tx usecase.Transaction, match *domain.ReconciliationMatch) error
	GetByIDFunc                     func(ctx context.Context, id string) (*domain.ReconciliationMatch, error)
	GetByIDForUpdateFunc            func(ctx context.Context, tx usecase.Transaction, id string) (*domain.ReconciliationMatch, error)
	ListByTxnFunc                   func(ctx context.Context, bankTxnID string) ([]*domain.ReconciliationMatch, error)
	ListByStatusFunc                func(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.ReconciliationMatch, error)
	UpdateStatusFunc                func(ctx context.Context, tx usecase.Transaction, id string, status domain.MatchStatus, reason string, resolvedAt *time.Time, updatedAt time.Time) error
	SetSupersededByFunc             func(ctx context.Context, tx usecase.Transaction, id, successorID string, updatedAt time.Time) error
	ListOpenOlderThanFunc           func(ctx context.Context, cutoff time.Time) ([]*domain.ReconciliationMatch, error)
	ListDuplicateSettledTxnsFunc    func(ctx context.Context) (map[string][]string, error)
	ListDuplicateSettledEntriesFunc func(ctx context.Context) (map[string][]string, error)
	ListSettledTxnsByAccountFunc    func(ctx context.Context, accountID string, limit int) ([]*domain.BankTransaction, error)
	StatsFunc                       func(ctx context.Context) (*domain.ReconciliationStats, error)
}

func NewMockMatchRepository() *MockMatchRepository {
	return &MockMatchRepository{
		matches: make(map[string]*domain.ReconciliationMatch),
	}
}

func (m *MockMatchRepository) Create(ctx context.Context, tx usecase.Transaction, match *domain.ReconciliationMatch) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, match)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[match.ID] = match
	return nil
}

func (m *MockMatchRepository) GetByID(ctx context.Context, id string) (*domain.ReconciliationMatch, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if match, ok := m.matches[id]; ok {
		cp := *match
		return &cp, nil
	}
	return nil, domain.ErrMatchNotFound
}

func (m *MockMatchRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.ReconciliationMatch, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockMatchRepository) ListByTxn(ctx context.Context, bankTxnID string) ([]*domain.ReconciliationMatch, error) {
	if m.ListByTxnFunc != nil {
		return m.ListByTxnFunc(ctx, bankTxnID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []*domain.ReconciliationMatch
	for _, match := range m.matches {
		if match.BankTxnID == bankTxnID {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (m *MockMatchRepository) ListByStatus(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.ReconciliationMatch, error) {
	if m.ListByStatusFunc != nil {
		return m.ListByStatusFunc(ctx, status, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []*domain.ReconciliationMatch
	for _, match := range m.matches {
		if match.Status == status {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if offset >= len(matches) {
		return nil, nil
	}
	matches = matches[offset:]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MockMatchRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.MatchStatus, reason string, resolvedAt *time.Time, updatedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status, reason, resolvedAt, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return domain.ErrMatchNotFound
	}
	match.Status = status
	if reason != "" {
		match.Reason = reason
	}
	match.ResolvedAt = resolvedAt
	match.Version++
	match.UpdatedAt = updatedAt
	return nil
}

func (m *MockMatchRepository) SetSupersededBy(ctx context.Context, tx usecase.Transaction, id, successorID string, updatedAt time.Time) error {
	if m.SetSupersededByFunc != nil {
		return m.SetSupersededByFunc(ctx, tx, id, successorID, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return domain.ErrMatchNotFound
	}
	match.SupersededBy = &successorID
	match.UpdatedAt = updatedAt
	return nil
}

func (m *MockMatchRepository) ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.ReconciliationMatch, error) {
	if m.ListOpenOlderThanFunc != nil {
		return m.ListOpenOlderThanFunc(ctx, cutoff)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []*domain.ReconciliationMatch
	for _, match := range m.matches {
		if match.Status == domain.MatchStatusPendingReview && match.CreatedAt.Before(cutoff) {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (m *MockMatchRepository) ListDuplicateSettledTxns(ctx context.Context) (map[string][]string, error) {
	if m.ListDuplicateSettledTxnsFunc != nil {
		return m.ListDuplicateSettledTxnsFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	byTxn := make(map[string][]string)
	for _, match := range m.matches {
		if match.Status.Settled() {
			byTxn[match.BankTxnID] = append(byTxn[match.BankTxnID], match.ID)
		}
	}
	out := make(map[string][]string)
	for txnID, matchIDs := range byTxn {
		if len(matchIDs) > 1 {
			sort.Strings(matchIDs)
			out[txnID] = matchIDs
		}
	}
	return out, nil
}

func (m *MockMatchRepository) ListDuplicateSettledEntries(ctx context.Context) (map[string][]string, error) {
	if m.ListDuplicateSettledEntriesFunc != nil {
		return m.ListDuplicateSettledEntriesFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	byEntry := make(map[string][]string)
	for _, match := range m.matches {
		if !match.Status.Settled() {
			continue
		}
		for _, entryID := range match.EntryIDs {
			byEntry[entryID] = append(byEntry[entryID], match.ID)
		}
	}
	out := make(map[string][]string)
	for entryID, matchIDs := range byEntry {
		if len(matchIDs) > 1 {
			sort.Strings(matchIDs)
			out[entryID] = matchIDs
		}
	}
	return out, nil
}

func (m *MockMatchRepository) ListSettledTxnsByAccount(ctx context.Context, accountID string, limit int) ([]*domain.BankTransaction, error) {
	if m.ListSettledTxnsByAccountFunc != nil {
		return m.ListSettledTxnsByAccountFunc(ctx, accountID, limit)
	}
	return nil, nil
}

func (m *MockMatchRepository) Stats(ctx context.Context) (*domain.ReconciliationStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &domain.ReconciliationStats{
		ByMatchStatus: make(map[domain.MatchStatus]int),
	}
	for _, match := range m.matches {
		stats.ByMatchStatus[match.Status]++
		bucket := match.Score / 10
		if bucket > 9 {
			bucket = 9
		}
		stats.ScoreHistogram[bucket]++
	}
	return stats, nil
}

// MockRunRepository is a mock implementation of RunRepository.
type MockRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*domain.MatcherRun

	CreateFunc  func(ctx context.Context, run *domain.MatcherRun) error
	UpdateFunc  func(ctx context.Context, run *domain.MatcherRun) error
	GetByIDFunc func(ctx context.Context, id string) (*domain.MatcherRun, error)
	ListFunc    func(ctx context.Context, limit, offset int) ([]*domain.MatcherRun, error)
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{
		runs: make(map[string]*domain.MatcherRun),
	}
}

func (m *MockRunRepository) Create(ctx context.Context, run *domain.MatcherRun) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, run)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MockRunRepository) Update(ctx context.Context, run *domain.MatcherRun) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, run)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MockRunRepository) GetByID(ctx context.Context, id string) (*domain.MatcherRun, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if run, ok := m.runs[id]; ok {
		cp := *run
		return &cp, nil
	}
	return nil, domain.ErrRunNotFound
}

func (m *MockRunRepository) List(ctx context.Context, limit, offset int) ([]*domain.MatcherRun, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var runs []*domain.MatcherRun
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	return runs, nil
}

// MockCheckRepository is a mock implementation of CheckRepository.
type MockCheckRepository struct {
	mu     sync.RWMutex
	checks map[string]*domain.ConsistencyCheck

	CreateFunc                func(ctx context.Context, tx usecase.Transaction, check *domain.ConsistencyCheck) error
	GetByIDFunc               func(ctx context.Context, id string) (*domain.ConsistencyCheck, error)
	FindOpenByFingerprintFunc func(ctx context.Context, fingerprint string) (*domain.ConsistencyCheck, error)
	ListFunc                  func(ctx context.Context, filter usecase.CheckFilter) ([]*domain.ConsistencyCheck, error)
	ResolveFunc               func(ctx context.Context, id string, action domain.ResolutionAction, note string, resolvedAt time.Time) error
	ListOpenByMatchIDsFunc    func(ctx context.Context, matchIDs []string, minSeverity domain.Severity) ([]*domain.ConsistencyCheck, error)
	CountOpenBySeverityFunc   func(ctx context.Context) (map[domain.Severity]int, error)
}

func NewMockCheckRepository() *MockCheckRepository {
	return &MockCheckRepository{
		checks: make(map[string]*domain.ConsistencyCheck),
	}
}

func (m *MockCheckRepository) Create(ctx context.Context, tx usecase.Transaction, check *domain.ConsistencyCheck) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, check)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.checks {
		if existing.Status == domain.CheckStatusOpen && existing.Fingerprint == check.Fingerprint {
			return domain.ErrDuplicateCheck
		}
	}
	m.checks[check.ID] = check
	return nil
}

func (m *MockCheckRepository) GetByID(ctx context.Context, id string) (*domain.ConsistencyCheck, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.checks[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrCheckNotFound
}

func (m *MockCheckRepository) FindOpenByFingerprint(ctx context.Context, fingerprint string) (*domain.ConsistencyCheck, error) {
	if m.FindOpenByFingerprintFunc != nil {
		return m.FindOpenByFingerprintFunc(ctx, fingerprint)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.checks {
		if c.Status == domain.CheckStatusOpen && c.Fingerprint == fingerprint {
			return c, nil
		}
	}
	return nil, domain.ErrCheckNotFound
}

func (m *MockCheckRepository) List(ctx context.Context, filter usecase.CheckFilter) ([]*domain.ConsistencyCheck, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var checks []*domain.ConsistencyCheck
	for _, c := range m.checks {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && c.CheckType != *filter.Type {
			continue
		}
		if filter.Severity != nil && c.Severity != *filter.Severity {
			continue
		}
		checks = append(checks, c)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].ID > checks[j].ID })
	return checks, nil
}

func (m *MockCheckRepository) Resolve(ctx context.Context, id string, action domain.ResolutionAction, note string, resolvedAt time.Time) error {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, id, action, note, resolvedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checks[id]
	if !ok {
		return domain.ErrCheckNotFound
	}
	if c.Status != domain.CheckStatusOpen {
		return domain.NewAlreadyProcessedError("consistency_check", id, string(c.Status))
	}
	c.Status = domain.CheckStatusResolved
	c.ResolutionAction = action
	c.ResolutionNote = note
	c.ResolvedAt = &resolvedAt
	return nil
}

func (m *MockCheckRepository) ListOpenByMatchIDs(ctx context.Context, matchIDs []string, minSeverity domain.Severity) ([]*domain.ConsistencyCheck, error) {
	if m.ListOpenByMatchIDsFunc != nil {
		return m.ListOpenByMatchIDsFunc(ctx, matchIDs, minSeverity)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(matchIDs))
	for _, id := range matchIDs {
		wanted[id] = true
	}
	var checks []*domain.ConsistencyCheck
	for _, c := range m.checks {
		if c.Status != domain.CheckStatusOpen || !c.Severity.AtLeast(minSeverity) {
			continue
		}
		for _, id := range c.MatchIDs {
			if wanted[id] {
				checks = append(checks, c)
				break
			}
		}
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].ID < checks[j].ID })
	return checks, nil
}

func (m *MockCheckRepository) CountOpenBySeverity(ctx context.Context) (map[domain.Severity]int, error) {
	if m.CountOpenBySeverityFunc != nil {
		return m.CountOpenBySeverityFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.Severity]int)
	for _, c := range m.checks {
		if c.Status == domain.CheckStatusOpen {
			out[c.Severity]++
		}
	}
	return out, nil
}

// MockLedgerRepository is a mock implementation of LedgerRepository.
type MockLedgerRepository struct {
	mu    sync.RWMutex
	lines map[string][]*domain.AccountLine

	CheckConsistencyFunc func(ctx context.Context) (decimal.Decimal, decimal.Decimal, error)
	TrialBalanceFunc     func(ctx context.Context) ([]*domain.TrialBalanceRow, error)
	TypeTotalsFunc       func(ctx context.Context) (map[domain.AccountType]decimal.Decimal, error)
	ListAccountLinesFunc func(ctx context.Context, accountID string, since time.Time) ([]*domain.AccountLine, error)
}

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		lines: make(map[string][]*domain.AccountLine),
	}
}

// AddAccountLine seeds a line served by the default ListAccountLines.
func (m *MockLedgerRepository) AddAccountLine(accountID string, line *domain.AccountLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[accountID] = append(m.lines[accountID], line)
}

func (m *MockLedgerRepository) CheckConsistency(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	if m.CheckConsistencyFunc != nil {
		return m.CheckConsistencyFunc(ctx)
	}
	return decimal.Zero, decimal.Zero, nil
}

func (m *MockLedgerRepository) TrialBalance(ctx context.Context) ([]*domain.TrialBalanceRow, error) {
	if m.TrialBalanceFunc != nil {
		return m.TrialBalanceFunc(ctx)
	}
	return nil, nil
}

func (m *MockLedgerRepository) TypeTotals(ctx context.Context) (map[domain.AccountType]decimal.Decimal, error) {
	if m.TypeTotalsFunc != nil {
		return m.TypeTotalsFunc(ctx)
	}
	return map[domain.AccountType]decimal.Decimal{}, nil
}

func (m *MockLedgerRepository) ListAccountLines(ctx context.Context, accountID string, since time.Time) ([]*domain.AccountLine, error) {
	if m.ListAccountLinesFunc != nil {
		return m.ListAccountLinesFunc(ctx, accountID, since)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AccountLine
	for _, line := range m.lines[accountID] {
		if !line.EntryDate.Before(since) {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.Before(out[j].EntryDate) })
	return out, nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	Events []*domain.OutboxEvent

	CreateFunc          func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
	GetUnpublishedFunc  func(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublishedFunc   func(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregateFunc  func(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublishedFunc func(ctx context.Context, before time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if e.PublishedAt == nil {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	if m.GetByAggregateFunc != nil {
		return m.GetByAggregateFunc(ctx, aggregateType, aggregateID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if m.DeletePublishedFunc != nil {
		return m.DeletePublishedFunc(ctx, before)
	}
	return nil
}

// EventTypes returns the recorded event types in creation order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.EventType)
	}
	return types
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	Commits   int
	Rollbacks int
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Commits++
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	m.Rollbacks++
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator. Generated IDs
// are 26 zero-padded digits: they satisfy the ULID length check and their
// lexicographic order follows creation order, like real ULIDs.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("%026d", m.counter)
}

// MockCache is a mock implementation of Cache.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, usecase.ErrCacheMiss
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}
