package usecase

import (
	"context"
	"time"

	"github.com/finbase/ledgermatch/internal/domain"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	accountRepo AccountRepository
	idGen       IDGenerator
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accountRepo AccountRepository, idGen IDGenerator) *AccountUseCase {
	return &AccountUseCase{
		accountRepo: accountRepo,
		idGen:       idGen,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Name     string
	Type     domain.AccountType
	Currency string
}

// CreateAccount creates a new account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	account := &domain.Account{
		ID:        uc.idGen.Generate(),
		Name:      input.Name,
		Type:      input.Type,
		Currency:  input.Currency,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// DeactivateAccount soft-deletes an account. Existing lines are untouched;
// new lines against the account are refused.
func (uc *AccountUseCase) DeactivateAccount(ctx context.Context, id string) error {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !account.Active {
		return nil
	}

	return uc.accountRepo.SetActive(ctx, id, false, time.Now().UTC())
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.accountRepo.List(ctx, limit, offset)
}
