package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one posted movement of money. Entries are ordered by
// (Date, ID); RunningBalance is the base-currency balance after the entry in
// that order and is written only by balance recalculation.
type LedgerEntry struct {
	ID   int64
	Date time.Time

	Credit decimal.Decimal
	Debit  decimal.Decimal

	RunningBalance decimal.Decimal

	CurrencyCode         string
	AmountOriginal       decimal.Decimal
	AmountBase           decimal.Decimal
	ExchangeRateSnapshot decimal.Decimal

	CorrelationID   string
	CorrelationKind CorrelationKind
	BatchID         string

	CategoryRef      string
	PaymentMethodRef string
	ActorRef         string
	Description      string
	Reference        *Reference
	Metadata         map[string]any

	CorrectionCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Reference links an entry to the business object that produced it, e.g. a
// purchase or a stock movement.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Reference types used by the inventory flows.
const (
	ReferenceTypePurchase      = "purchase"
	ReferenceTypeSale          = "sale"
	ReferenceTypeStockMovement = "stock_movement"
)

// IsZero reports whether the reference is unset.
func (r *Reference) IsZero() bool {
	return r == nil || (r.Type == "" && r.ID == "")
}

// IsCredit reports whether the entry moves money in.
func (e *LedgerEntry) IsCredit() bool {
	return e.Credit.IsPositive()
}

// Amount returns the positive side of the entry in its own currency.
func (e *LedgerEntry) Amount() decimal.Decimal {
	if e.IsCredit() {
		return e.Credit
	}
	return e.Debit
}

// SignedBase is the entry's contribution to the running balance in base
// currency: +AmountBase for a credit, -AmountBase for a debit.
func (e *LedgerEntry) SignedBase() decimal.Decimal {
	if e.IsCredit() {
		return e.AmountBase
	}
	return e.AmountBase.Neg()
}

// Before reports whether e sorts strictly before other.
func (e *LedgerEntry) Before(other *LedgerEntry) bool {
	if e.Date.Equal(other.Date) {
		return e.ID < other.ID
	}
	return e.Date.Before(other.Date)
}

// Clone returns a deep copy of the entry.
func (e *LedgerEntry) Clone() *LedgerEntry {
	c := *e
	if e.Reference != nil {
		ref := *e.Reference
		c.Reference = &ref
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ApplyAmounts sets credit/debit and the converted amounts for the given
// currency rate snapshot.
func (e *LedgerEntry) ApplyAmounts(credit, debit decimal.Decimal, currencyCode string, snapshot, amountBase decimal.Decimal) {
	e.Credit = credit
	e.Debit = debit
	e.CurrencyCode = currencyCode
	e.ExchangeRateSnapshot = snapshot
	e.AmountBase = amountBase
	if credit.IsPositive() {
		e.AmountOriginal = credit
	} else {
		e.AmountOriginal = debit
	}
}

// SnapshotCurrency returns the entry's currency frozen at its snapshot rate.
// Amount changes that keep the currency convert through it.
func (e *LedgerEntry) SnapshotCurrency() *Currency {
	return RestoreCurrency(e.CurrencyCode, "", "", e.ExchangeRateSnapshot, false, true, e.CreatedAt, e.CreatedAt)
}

// NormalizeDate strips the time of day, keeping the calendar date in UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MinDate returns the earlier of two dates.
func MinDate(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

// BalanceUpdate is a recalculated running balance for one entry.
type BalanceUpdate struct {
	EntryID        int64
	RunningBalance decimal.Decimal
}
