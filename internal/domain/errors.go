package domain

import "errors"

var (
	// Posting validation errors
	ErrAmbiguousPosting   = errors.New("posting has both credit and debit")
	ErrEmptyPosting       = errors.New("posting has neither credit nor debit")
	ErrInvalidAmount      = errors.New("amount must not be negative")
	ErrInvalidDate        = errors.New("posting date is required")
	ErrUnbalancedLink     = errors.New("linked legs do not net as required by their kind")
	ErrInvalidCorrelation = errors.New("invalid correlation kind")
	ErrInvalidStockEvent  = errors.New("invalid stock event")
	ErrInvalidBatch       = errors.New("invalid posting batch")
	ErrReasonRequired     = errors.New("correction reason is required")
	ErrNonPositiveRate    = errors.New("exchange rate must be positive")

	// Consistency errors
	ErrNoPriorPosting       = errors.New("no prior posting to correct")
	ErrImmutableBaseRate    = errors.New("base currency rate is fixed at 1")
	ErrBaseCurrencyInactive = errors.New("base currency cannot be deactivated")
	ErrCurrencyInactive     = errors.New("currency is not active")
	ErrNoBaseCurrency       = errors.New("no base currency configured")
	ErrCurrencyExists       = errors.New("currency already exists")

	// Arithmetic guard errors
	ErrDivisionByZero      = errors.New("division by zero exchange rate")
	ErrInvalidExchangeRate = errors.New("stored exchange rate is not positive")

	// Lookup errors
	ErrEntryNotFound    = errors.New("ledger entry not found")
	ErrCurrencyNotFound = errors.New("currency not found")
)

// Error classes used for metrics labels and transport mapping.
const (
	ErrorClassValidation  = "validation"
	ErrorClassConsistency = "consistency"
	ErrorClassArithmetic  = "arithmetic"
	ErrorClassNotFound    = "not_found"
	ErrorClassInternal    = "internal"
)

// ClassifyError returns the class of a ledger error.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAmbiguousPosting),
		errors.Is(err, ErrEmptyPosting),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrUnbalancedLink),
		errors.Is(err, ErrInvalidCorrelation),
		errors.Is(err, ErrInvalidStockEvent),
		errors.Is(err, ErrInvalidBatch),
		errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrAmountTooLarge),
		errors.Is(err, ErrMetadataTooLarge),
		errors.Is(err, ErrDescriptionTooLarge),
		errors.Is(err, ErrNonPositiveRate):
		return ErrorClassValidation
	case errors.Is(err, ErrNoPriorPosting),
		errors.Is(err, ErrImmutableBaseRate),
		errors.Is(err, ErrBaseCurrencyInactive),
		errors.Is(err, ErrCurrencyInactive),
		errors.Is(err, ErrNoBaseCurrency),
		errors.Is(err, ErrCurrencyExists):
		return ErrorClassConsistency
	case errors.Is(err, ErrDivisionByZero),
		errors.Is(err, ErrInvalidExchangeRate):
		return ErrorClassArithmetic
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrCurrencyNotFound):
		return ErrorClassNotFound
	default:
		return ErrorClassInternal
	}
}
