package domain

import "time"

// AccountType classifies an account within the accounting equation.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the direction that increases an account of this type.
// Assets and expenses are debit-normal; liabilities, equity and income are
// credit-normal.
func (t AccountType) NormalSide() Direction {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return DirectionDebit
	default:
		return DirectionCredit
	}
}

// Account represents a ledger account. Balances are not stored on the
// account; they are derived from posted journal lines.
type Account struct {
	ID        string
	Name      string
	Type      AccountType
	Currency  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the account's static fields.
func (a *Account) Validate() error {
	if err := ValidateAccountName(a.Name); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return ValidateCurrency(a.Currency)
}
