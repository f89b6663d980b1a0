package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidAccountName = errors.New("invalid account name")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrInvalidIDFormat    = errors.New("invalid ID format")
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MinAccountNameLength = 1
	MaxMemoLength        = 1024
	MaxLineAmount        = "1000000000000" // 1 trillion
	ULIDLength           = 26
)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
}

// ValidateAccountName validates account name
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinAccountNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}

	if len(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	return nil
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if !validCurrencies[currency] {
		return fmt.Errorf("%w: %s is not a valid ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateLineAmount validates a journal line amount: strictly positive and
// below the sanity ceiling.
func ValidateLineAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	maxAmount, _ := decimal.NewFromString(MaxLineAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxLineAmount)
	}

	return nil
}

// ValidateID checks that an identifier looks like a ULID.
func ValidateID(id string) error {
	if len(id) != ULIDLength {
		return fmt.Errorf("%w: expected %d characters", ErrInvalidIDFormat, ULIDLength)
	}
	return nil
}

// ValidateMemo bounds free-text memo length.
func ValidateMemo(memo string) error {
	if len(memo) > MaxMemoLength {
		return NewValidationError("memo", fmt.Sprintf("memo exceeds %d characters", MaxMemoLength))
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
