package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockMovementKind is the inventory event that changed a quantity.
type StockMovementKind string

const (
	StockMovementPurchase            StockMovementKind = "purchase"
	StockMovementSale                StockMovementKind = "sale"
	StockMovementInternalConsumption StockMovementKind = "internal_consumption"
	StockMovementDamage              StockMovementKind = "damage"
	StockMovementAdjustment          StockMovementKind = "adjustment"
)

// PostsToLedger reports whether a movement of this kind has a financial
// side. Damage write-downs only change quantities.
func (k StockMovementKind) PostsToLedger() bool {
	return k != StockMovementDamage
}

// StockMovement is an inventory quantity change, optionally tied to the
// ledger entry it produced.
type StockMovement struct {
	ID            string
	ItemRef       string
	Kind          StockMovementKind
	Quantity      decimal.Decimal // signed: positive adds stock
	UnitPrice     decimal.Decimal
	Date          time.Time
	LedgerEntryID *int64
	CorrelationID string
	Reason        string
	ActorRef      string
	CreatedAt     time.Time
}

// Value is the absolute monetary value of the movement.
func (m *StockMovement) Value() decimal.Decimal {
	return m.Quantity.Abs().Mul(m.UnitPrice)
}

// StockEvent is an inventory-side request that may result in postings.
type StockEvent struct {
	ItemRef          string
	Quantity         decimal.Decimal // magnitude, always positive
	UnitPrice        decimal.Decimal
	Date             time.Time
	CurrencyCode     string
	CategoryRef      string
	PaymentMethodRef string
	ActorRef         string
	Reason           string
	Reference        *Reference
}

// Validate checks quantity and price. Damage events may omit the price.
func (e *StockEvent) Validate(kind StockMovementKind) error {
	if e.ItemRef == "" {
		return fmt.Errorf("%w: item reference is required", ErrInvalidStockEvent)
	}
	if !e.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidStockEvent)
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if kind.PostsToLedger() && !e.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive", ErrInvalidAmount)
	}
	return nil
}

// Value is quantity times unit price.
func (e *StockEvent) Value() decimal.Decimal {
	return e.Quantity.Mul(e.UnitPrice)
}

// ReferenceOr returns the event's reference, or {refType, id} when unset.
func (e *StockEvent) ReferenceOr(refType, id string) *Reference {
	if !e.Reference.IsZero() {
		ref := *e.Reference
		return &ref
	}
	return &Reference{Type: refType, ID: id}
}

// PostingRequest builds the ledger side of the event without amounts.
func (e *StockEvent) PostingRequest(refType, fallbackID string) PostingRequest {
	return PostingRequest{
		Date:             e.Date,
		CurrencyCode:     e.CurrencyCode,
		CategoryRef:      e.CategoryRef,
		PaymentMethodRef: e.PaymentMethodRef,
		ActorRef:         e.ActorRef,
		Description:      e.Reason,
		Reference:        e.ReferenceOr(refType, fallbackID),
	}
}
