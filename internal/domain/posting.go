package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CorrelationKind labels the business event that links several entries.
type CorrelationKind string

const (
	// CorrelationKindInternalConsumption moves value from inventory to
	// operations. The legs cancel out and the cash balance is unchanged.
	CorrelationKindInternalConsumption CorrelationKind = "internal_consumption"
	// CorrelationKindInventorySale records stock sold to customers. It nets to
	// a cash increase.
	CorrelationKindInventorySale CorrelationKind = "inventory_sale"
	// CorrelationKindPurchaseCorrection links the postings of a purchase
	// correction flow.
	CorrelationKindPurchaseCorrection CorrelationKind = "purchase_correction"
)

// Valid reports whether k is a known correlation kind.
func (k CorrelationKind) Valid() bool {
	switch k {
	case CorrelationKindInternalConsumption, CorrelationKindInventorySale, CorrelationKindPurchaseCorrection:
		return true
	}
	return false
}

// NetsToZero reports whether entries linked under k must cancel out.
func (k CorrelationKind) NetsToZero() bool {
	return k == CorrelationKindInternalConsumption
}

// PostingRequest is a validated request to post one ledger line.
type PostingRequest struct {
	Date             time.Time
	Credit           decimal.Decimal
	Debit            decimal.Decimal
	CurrencyCode     string // empty means base currency
	CategoryRef      string
	PaymentMethodRef string
	ActorRef         string
	Description      string
	Reference        *Reference
	Metadata         map[string]any
}

// Validate enforces that exactly one of credit and debit is positive.
func (r *PostingRequest) Validate() error {
	if err := ValidateSides(r.Credit, r.Debit); err != nil {
		return err
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if r.CurrencyCode != "" {
		if err := ValidateCurrency(r.CurrencyCode); err != nil {
			return err
		}
	}
	if err := ValidateAmount(r.Amount()); err != nil {
		return err
	}
	if err := ValidateDescription(r.Description); err != nil {
		return err
	}
	return ValidateMetadata(r.Metadata)
}

// Normalize trims text fields and reduces the date to a calendar date.
func (r *PostingRequest) Normalize() {
	r.Date = NormalizeDate(r.Date)
	r.CurrencyCode = strings.ToUpper(strings.TrimSpace(r.CurrencyCode))
	r.Description = strings.TrimSpace(r.Description)
}

// Amount returns the positive side of the request.
func (r *PostingRequest) Amount() decimal.Decimal {
	if r.Credit.IsPositive() {
		return r.Credit
	}
	return r.Debit
}

// ValidateSides checks the credit/debit exclusivity rule.
func ValidateSides(credit, debit decimal.Decimal) error {
	if credit.IsNegative() || debit.IsNegative() {
		return fmt.Errorf("%w: credit and debit must not be negative", ErrInvalidAmount)
	}
	creditSet := credit.IsPositive()
	debitSet := debit.IsPositive()
	switch {
	case creditSet && debitSet:
		return ErrAmbiguousPosting
	case !creditSet && !debitSet:
		return ErrEmptyPosting
	}
	return nil
}

// PostingResult is returned by every ledger mutation that leaves an entry
// behind.
type PostingResult struct {
	Entry       *LedgerEntry
	TailBalance decimal.Decimal
}
