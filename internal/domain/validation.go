package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrAmountTooLarge      = errors.New("amount exceeds maximum allowed")
	ErrMetadataTooLarge    = errors.New("metadata size exceeds limit")
	ErrDescriptionTooLarge = errors.New("description exceeds maximum length")
)

// Validation constants
const (
	MaxMetadataSize   = 10240             // 10KB
	MaxPostingAmount  = "100000000000000" // 100 trillion, KRW-sized ledgers
	MaxDescriptionLen = 500
)

var maxPostingAmount = decimal.RequireFromString(MaxPostingAmount)

// ValidateCurrency checks the shape of an ISO 4217 style code. Whether the
// currency exists is up to the currency table.
func ValidateCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if len(currency) != 3 {
		return fmt.Errorf("%w: %q must be three letters", ErrInvalidCurrency, currency)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q must be three letters", ErrInvalidCurrency, currency)
		}
	}

	return nil
}

// ValidateDescription enforces MaxDescriptionLen, counted in characters.
func ValidateDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > MaxDescriptionLen {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrDescriptionTooLarge, n, MaxDescriptionLen)
	}
	return nil
}

// ValidateAmount checks the upper bound of a posted magnitude. Sign rules
// live in ValidateSides.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}

	if amount.GreaterThan(maxPostingAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxPostingAmount)
	}

	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMetadataTooLarge, err)
	}

	if len(raw) > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrMetadataTooLarge, len(raw), MaxMetadataSize)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
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

	return limit, offset
}
