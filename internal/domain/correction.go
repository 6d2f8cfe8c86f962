package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CorrectionRecord is the append-only audit trail of one in-place correction.
// Records are never corrected themselves.
type CorrectionRecord struct {
	ID      string
	EntryID int64

	OldCredit       decimal.Decimal
	OldDebit        decimal.Decimal
	OldCurrencyCode string
	OldAmountBase   decimal.Decimal

	NewCredit       decimal.Decimal
	NewDebit        decimal.Decimal
	NewCurrencyCode string
	NewAmountBase   decimal.Decimal

	// DeltaBase is the change of the entry's signed base contribution. Every
	// running balance from the entry onward moves by this amount.
	DeltaBase decimal.Decimal

	Reason    string
	ActorRef  string
	CreatedAt time.Time
}

// NewCorrectionRecord captures before/after state of an entry.
func NewCorrectionRecord(id string, before, after *LedgerEntry, reason, actor string, at time.Time) *CorrectionRecord {
	return &CorrectionRecord{
		ID:              id,
		EntryID:         before.ID,
		OldCredit:       before.Credit,
		OldDebit:        before.Debit,
		OldCurrencyCode: before.CurrencyCode,
		OldAmountBase:   before.AmountBase,
		NewCredit:       after.Credit,
		NewDebit:        after.Debit,
		NewCurrencyCode: after.CurrencyCode,
		NewAmountBase:   after.AmountBase,
		DeltaBase:       after.SignedBase().Sub(before.SignedBase()),
		Reason:          reason,
		ActorRef:        actor,
		CreatedAt:       at,
	}
}
