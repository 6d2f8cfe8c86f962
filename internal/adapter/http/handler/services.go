package handler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// PostingService defines the behavior needed by EntryHandler for writes.
type PostingService interface {
	Post(ctx context.Context, req domain.PostingRequest) (*domain.PostingResult, error)
	PostBatch(ctx context.Context, lines []domain.PostingRequest) (*usecase.BatchResult, error)
	Update(ctx context.Context, input usecase.UpdateEntryInput) (*domain.PostingResult, error)
	Delete(ctx context.Context, id int64) (*usecase.DeleteResult, error)
}

// LedgerService defines ledger reads and maintenance.
type LedgerService interface {
	GetEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*domain.LedgerEntry, error)
	Tail(ctx context.Context) (decimal.Decimal, error)
	CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error)
	Rebuild(ctx context.Context) (*usecase.RecalcResult, error)
}

// LinkedPostingService defines correlated two-leg postings.
type LinkedPostingService interface {
	PostLinked(ctx context.Context, primary, secondary domain.PostingRequest, kind domain.CorrelationKind) (*usecase.LinkedPostingResult, error)
	PostInternalConsumption(ctx context.Context, in usecase.InternalConsumptionInput) (*usecase.LinkedPostingResult, error)
}

// CorrectionService defines in-place corrections.
type CorrectionService interface {
	CorrectPosting(ctx context.Context, in usecase.CorrectionInput) (*usecase.CorrectionResult, error)
	ListCorrections(ctx context.Context, entryID int64) ([]*domain.CorrectionRecord, error)
}

// CurrencyService defines currency maintenance.
type CurrencyService interface {
	Create(ctx context.Context, in usecase.CreateCurrencyInput) (*domain.Currency, error)
	Get(ctx context.Context, code string) (*domain.Currency, error)
	List(ctx context.Context) ([]*domain.Currency, error)
	SetAsBase(ctx context.Context, code string) (*domain.Currency, error)
	SetRate(ctx context.Context, code string, rate decimal.Decimal) (*domain.Currency, error)
	Deactivate(ctx context.Context, code string) (*domain.Currency, error)
	RefreshRates(ctx context.Context) (*usecase.RefreshResult, error)
}

// StockService defines inventory events.
type StockService interface {
	RecordPurchase(ctx context.Context, event domain.StockEvent) (*usecase.StockResult, error)
	RecordSale(ctx context.Context, event domain.StockEvent) (*usecase.StockResult, error)
	RecordInternalConsumption(ctx context.Context, event usecase.ConsumptionEvent) (*usecase.StockResult, error)
	RecordDamage(ctx context.Context, event domain.StockEvent) (*usecase.StockResult, error)
	CorrectPurchase(ctx context.Context, in usecase.PurchaseCorrection) (*usecase.StockResult, error)
	ListMovements(ctx context.Context, itemRef string, limit, offset int) ([]*domain.StockMovement, error)
}
