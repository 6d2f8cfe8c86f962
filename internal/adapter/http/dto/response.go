package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID                   int64             `json:"id"`
	Date                 string            `json:"date"`
	Credit               decimal.Decimal   `json:"credit"`
	Debit                decimal.Decimal   `json:"debit"`
	RunningBalance       decimal.Decimal   `json:"running_balance"`
	CurrencyCode         string            `json:"currency_code"`
	AmountOriginal       decimal.Decimal   `json:"amount_original"`
	AmountBase           decimal.Decimal   `json:"amount_base"`
	ExchangeRateSnapshot decimal.Decimal   `json:"exchange_rate_snapshot"`
	CorrelationID        string            `json:"correlation_id,omitempty"`
	CorrelationKind      string            `json:"correlation_kind,omitempty"`
	BatchID              string            `json:"batch_id,omitempty"`
	CategoryRef          string            `json:"category_ref,omitempty"`
	PaymentMethodRef     string            `json:"payment_method_ref,omitempty"`
	ActorRef             string            `json:"actor_ref,omitempty"`
	Description          string            `json:"description,omitempty"`
	Reference            *ReferenceRequest `json:"reference,omitempty"`
	Metadata             map[string]any    `json:"metadata,omitempty"`
	CorrectionCount      int               `json:"correction_count"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// EntryFromDomain converts a domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	if e == nil {
		return nil
	}
	resp := &EntryResponse{
		ID:                   e.ID,
		Date:                 e.Date.Format(DateLayout),
		Credit:               e.Credit,
		Debit:                e.Debit,
		RunningBalance:       e.RunningBalance,
		CurrencyCode:         e.CurrencyCode,
		AmountOriginal:       e.AmountOriginal,
		AmountBase:           e.AmountBase,
		ExchangeRateSnapshot: e.ExchangeRateSnapshot,
		CorrelationID:        e.CorrelationID,
		CorrelationKind:      string(e.CorrelationKind),
		BatchID:              e.BatchID,
		CategoryRef:          e.CategoryRef,
		PaymentMethodRef:     e.PaymentMethodRef,
		ActorRef:             e.ActorRef,
		Description:          e.Description,
		Metadata:             e.Metadata,
		CorrectionCount:      e.CorrectionCount,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
	if !e.Reference.IsZero() {
		resp.Reference = &ReferenceRequest{Type: e.Reference.Type, ID: e.Reference.ID}
	}
	return resp
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// PostingResponse is a single posted entry and the balance after the last
// entry of the ledger.
type PostingResponse struct {
	Entry       *EntryResponse  `json:"entry"`
	TailBalance decimal.Decimal `json:"tail_balance"`
}

// PostingFromDomain converts a posting result.
func PostingFromDomain(r *domain.PostingResult) *PostingResponse {
	return &PostingResponse{Entry: EntryFromDomain(r.Entry), TailBalance: r.TailBalance}
}

// EntryListResponse is a page of entries.
type EntryListResponse struct {
	Entries []*EntryResponse `json:"entries"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// BatchResponse is the outcome of a multi-line submission.
type BatchResponse struct {
	BatchID     string           `json:"batch_id"`
	Entries     []*EntryResponse `json:"entries"`
	TailBalance decimal.Decimal  `json:"tail_balance"`
}

// BatchFromDomain converts a batch result.
func BatchFromDomain(r *usecase.BatchResult) *BatchResponse {
	return &BatchResponse{BatchID: r.BatchID, Entries: EntriesFromDomain(r.Entries), TailBalance: r.TailBalance}
}

// DeleteResponse lists removed entries.
type DeleteResponse struct {
	Deleted     []*EntryResponse `json:"deleted"`
	TailBalance decimal.Decimal  `json:"tail_balance"`
}

// DeleteFromDomain converts a delete result.
func DeleteFromDomain(r *usecase.DeleteResult) *DeleteResponse {
	return &DeleteResponse{Deleted: EntriesFromDomain(r.Deleted), TailBalance: r.TailBalance}
}

// LinkedResponse is a pair of correlated entries.
type LinkedResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Kind          string          `json:"kind"`
	Primary       *EntryResponse  `json:"primary"`
	Secondary     *EntryResponse  `json:"secondary"`
	TailBalance   decimal.Decimal `json:"tail_balance"`
}

// LinkedFromDomain converts a linked posting result.
func LinkedFromDomain(r *usecase.LinkedPostingResult) *LinkedResponse {
	return &LinkedResponse{
		CorrelationID: r.CorrelationID,
		Kind:          string(r.Kind),
		Primary:       EntryFromDomain(r.Primary),
		Secondary:     EntryFromDomain(r.Secondary),
		TailBalance:   r.TailBalance,
	}
}

// CorrectionRecordResponse is one audit record of an in-place correction.
type CorrectionRecordResponse struct {
	ID              string          `json:"id"`
	EntryID         int64           `json:"entry_id"`
	OldCredit       decimal.Decimal `json:"old_credit"`
	OldDebit        decimal.Decimal `json:"old_debit"`
	OldCurrencyCode string          `json:"old_currency_code"`
	OldAmountBase   decimal.Decimal `json:"old_amount_base"`
	NewCredit       decimal.Decimal `json:"new_credit"`
	NewDebit        decimal.Decimal `json:"new_debit"`
	NewCurrencyCode string          `json:"new_currency_code"`
	NewAmountBase   decimal.Decimal `json:"new_amount_base"`
	DeltaBase       decimal.Decimal `json:"delta_base"`
	Reason          string          `json:"reason"`
	ActorRef        string          `json:"actor_ref,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CorrectionRecordFromDomain converts an audit record.
func CorrectionRecordFromDomain(c *domain.CorrectionRecord) *CorrectionRecordResponse {
	if c == nil {
		return nil
	}
	return &CorrectionRecordResponse{
		ID:              c.ID,
		EntryID:         c.EntryID,
		OldCredit:       c.OldCredit,
		OldDebit:        c.OldDebit,
		OldCurrencyCode: c.OldCurrencyCode,
		OldAmountBase:   c.OldAmountBase,
		NewCredit:       c.NewCredit,
		NewDebit:        c.NewDebit,
		NewCurrencyCode: c.NewCurrencyCode,
		NewAmountBase:   c.NewAmountBase,
		DeltaBase:       c.DeltaBase,
		Reason:          c.Reason,
		ActorRef:        c.ActorRef,
		CreatedAt:       c.CreatedAt,
	}
}

// CorrectionRecordsFromDomain converts audit records.
func CorrectionRecordsFromDomain(records []*domain.CorrectionRecord) []*CorrectionRecordResponse {
	result := make([]*CorrectionRecordResponse, len(records))
	for i, c := range records {
		result[i] = CorrectionRecordFromDomain(c)
	}
	return result
}

// CorrectionResponse is the corrected entry with its audit record.
type CorrectionResponse struct {
	Correction  *CorrectionRecordResponse `json:"correction"`
	Entry       *EntryResponse            `json:"entry"`
	TailBalance decimal.Decimal           `json:"tail_balance"`
}

// CorrectionFromDomain converts a correction result.
func CorrectionFromDomain(r *usecase.CorrectionResult) *CorrectionResponse {
	return &CorrectionResponse{
		Correction:  CorrectionRecordFromDomain(r.Record),
		Entry:       EntryFromDomain(r.Entry),
		TailBalance: r.TailBalance,
	}
}

// CurrencyResponse represents a currency in API responses.
type CurrencyResponse struct {
	Code         string          `json:"code"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	IsBase       bool            `json:"is_base"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CurrencyFromDomain converts a domain currency to response.
func CurrencyFromDomain(c *domain.Currency) *CurrencyResponse {
	return &CurrencyResponse{
		Code:         c.Code,
		Symbol:       c.Symbol,
		Name:         c.Name,
		ExchangeRate: c.Rate(),
		IsBase:       c.IsBase,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// CurrenciesFromDomain converts domain currencies to responses.
func CurrenciesFromDomain(currencies []*domain.Currency) []*CurrencyResponse {
	result := make([]*CurrencyResponse, len(currencies))
	for i, c := range currencies {
		result[i] = CurrencyFromDomain(c)
	}
	return result
}

// RefreshResponse summarizes a rate refresh.
type RefreshResponse struct {
	Base    string            `json:"base"`
	Source  string            `json:"source,omitempty"`
	AsOf    time.Time         `json:"as_of"`
	Cached  bool              `json:"cached"`
	Updated []string          `json:"updated"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// RefreshFromDomain converts a refresh result.
func RefreshFromDomain(r *usecase.RefreshResult) *RefreshResponse {
	return &RefreshResponse{
		Base:    r.Base,
		Source:  r.Source,
		AsOf:    r.AsOf,
		Cached:  r.Cached,
		Updated: r.Updated,
		Skipped: r.Skipped,
		Failed:  r.Failed,
	}
}

// StockMovementResponse represents an inventory movement.
type StockMovementResponse struct {
	ID            string          `json:"id"`
	ItemRef       string          `json:"item_ref"`
	Kind          string          `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Date          string          `json:"date"`
	LedgerEntryID *int64          `json:"ledger_entry_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	ActorRef      string          `json:"actor_ref,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StockMovementFromDomain converts a movement.
func StockMovementFromDomain(m *domain.StockMovement) *StockMovementResponse {
	if m == nil {
		return nil
	}
	return &StockMovementResponse{
		ID:            m.ID,
		ItemRef:       m.ItemRef,
		Kind:          string(m.Kind),
		Quantity:      m.Quantity,
		UnitPrice:     m.UnitPrice,
		Date:          m.Date.Format(DateLayout),
		LedgerEntryID: m.LedgerEntryID,
		CorrelationID: m.CorrelationID,
		Reason:        m.Reason,
		ActorRef:      m.ActorRef,
		CreatedAt:     m.CreatedAt,
	}
}

// StockMovementsFromDomain converts movements.
func StockMovementsFromDomain(movements []*domain.StockMovement) []*StockMovementResponse {
	result := make([]*StockMovementResponse, len(movements))
	for i, m := range movements {
		result[i] = StockMovementFromDomain(m)
	}
	return result
}

// StockResponse is the outcome of an inventory event.
type StockResponse struct {
	Movement    *StockMovementResponse    `json:"movement,omitempty"`
	Entries     []*EntryResponse          `json:"entries"`
	Correction  *CorrectionRecordResponse `json:"correction,omitempty"`
	TailBalance decimal.Decimal           `json:"tail_balance"`
}

// StockFromDomain converts a stock result.
func StockFromDomain(r *usecase.StockResult) *StockResponse {
	return &StockResponse{
		Movement:    StockMovementFromDomain(r.Movement),
		Entries:     EntriesFromDomain(r.Entries),
		Correction:  CorrectionRecordFromDomain(r.Correction),
		TailBalance: r.TailBalance,
	}
}

// TailResponse is the balance after the last entry.
type TailResponse struct {
	TailBalance decimal.Decimal `json:"tail_balance"`
}

// ViolationResponse is one broken ledger invariant.
type ViolationResponse struct {
	EntryID  int64           `json:"entry_id"`
	Date     string          `json:"date,omitempty"`
	Kind     string          `json:"kind"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Detail   string          `json:"detail,omitempty"`
}

// ConsistencyResponse is the result of a full ledger scan.
type ConsistencyResponse struct {
	Consistent  bool                 `json:"consistent"`
	Entries     int                  `json:"entries"`
	TailBalance decimal.Decimal      `json:"tail_balance"`
	Violations  []*ViolationResponse `json:"violations"`
	CheckedAt   time.Time            `json:"checked_at"`
}

// ConsistencyFromDomain converts a consistency report.
func ConsistencyFromDomain(r *usecase.ConsistencyReport) *ConsistencyResponse {
	violations := make([]*ViolationResponse, len(r.Violations))
	for i, v := range r.Violations {
		violations[i] = &ViolationResponse{
			EntryID:  v.EntryID,
			Kind:     v.Kind,
			Expected: v.Expected,
			Actual:   v.Actual,
			Detail:   v.Detail,
		}
		if !v.Date.IsZero() {
			violations[i].Date = v.Date.Format(DateLayout)
		}
	}
	return &ConsistencyResponse{
		Consistent:  r.Consistent,
		Entries:     r.Entries,
		TailBalance: r.TailBalance,
		Violations:  violations,
		CheckedAt:   r.CheckedAt,
	}
}

// RebuildResponse is the outcome of a full balance replay.
type RebuildResponse struct {
	Replayed    int             `json:"replayed"`
	Written     int             `json:"written"`
	TailBalance decimal.Decimal `json:"tail_balance"`
}

// RebuildFromDomain converts a recalculation result.
func RebuildFromDomain(r *usecase.RecalcResult) *RebuildResponse {
	return &RebuildResponse{Replayed: r.Replayed, Written: r.Written, TailBalance: r.Tail}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Class   string `json:"class,omitempty"`
	Message string `json:"message,omitempty"`
}
