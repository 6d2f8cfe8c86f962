package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeEntryPosted         = "entry.posted"
	EventTypeEntryUpdated        = "entry.updated"
	EventTypeEntryDeleted        = "entry.deleted"
	EventTypeEntryCorrected      = "entry.corrected"
	EventTypeEntriesLinked       = "entries.linked"
	EventTypeCurrencyBaseChanged = "currency.base_changed"
	EventTypeCurrencyRateUpdated = "currency.rate_updated"
	EventTypeStockDamaged        = "stock.damaged"
)

// Aggregate types
const (
	AggregateTypeEntry       = "ledger_entry"
	AggregateTypeCorrelation = "correlation"
	AggregateTypeCurrency    = "currency"
	AggregateTypeStock       = "stock_movement"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewEntryEvent builds an outbox event describing an entry.
func NewEntryEvent(id, eventType string, entry *LedgerEntry, at time.Time) *OutboxEvent {
	payload := map[string]any{
		"entry_id":        entry.ID,
		"date":            entry.Date.Format(time.DateOnly),
		"credit":          entry.Credit.String(),
		"debit":           entry.Debit.String(),
		"currency":        entry.CurrencyCode,
		"amount_base":     entry.AmountBase.String(),
		"running_balance": entry.RunningBalance.String(),
	}
	if entry.CorrelationID != "" {
		payload["correlation_id"] = entry.CorrelationID
		payload["correlation_kind"] = string(entry.CorrelationKind)
	}
	if entry.BatchID != "" {
		payload["batch_id"] = entry.BatchID
	}

	return &OutboxEvent{
		ID:            id,
		AggregateID:   strconv.FormatInt(entry.ID, 10),
		AggregateType: AggregateTypeEntry,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	}
}

// AlertKind is the type of an advisory notification.
type AlertKind string

const (
	AlertKindHighExpense AlertKind = "high_expense"
	AlertKindLowBalance  AlertKind = "low_balance"
)

// Alert is an advisory signal raised after a posting commits. It carries no
// ledger semantics.
type Alert struct {
	Kind        AlertKind       `json:"kind"`
	EntryID     int64           `json:"entry_id"`
	Amount      decimal.Decimal `json:"amount"`
	Threshold   decimal.Decimal `json:"threshold"`
	TailBalance decimal.Decimal `json:"tail_balance"`
	RaisedAt    time.Time       `json:"raised_at"`
}
