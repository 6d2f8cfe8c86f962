package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

type postingServiceStub struct {
	postFn   func(ctx context.Context, req domain.PostingRequest) (*domain.PostingResult, error)
	batchFn  func(ctx context.Context, lines []domain.PostingRequest) (*usecase.BatchResult, error)
	updateFn func(ctx context.Context, input usecase.UpdateEntryInput) (*domain.PostingResult, error)
	deleteFn func(ctx context.Context, id int64) (*usecase.DeleteResult, error)
}

func (s *postingServiceStub) Post(ctx context.Context, req domain.PostingRequest) (*domain.PostingResult, error) {
	return s.postFn(ctx, req)
}

func (s *postingServiceStub) PostBatch(ctx context.Context, lines []domain.PostingRequest) (*usecase.BatchResult, error) {
	return s.batchFn(ctx, lines)
}

func (s *postingServiceStub) Update(ctx context.Context, input usecase.UpdateEntryInput) (*domain.PostingResult, error) {
	return s.updateFn(ctx, input)
}

func (s *postingServiceStub) Delete(ctx context.Context, id int64) (*usecase.DeleteResult, error) {
	return s.deleteFn(ctx, id)
}

type ledgerServiceStub struct {
	getFn         func(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	listFn        func(ctx context.Context, from, to time.Time, limit, offset int) ([]*domain.LedgerEntry, error)
	tail          decimal.Decimal
	report        *usecase.ConsistencyReport
	rebuildResult *usecase.RecalcResult
	err           error
}

func (s *ledgerServiceStub) GetEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	return s.getFn(ctx, id)
}

func (s *ledgerServiceStub) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*domain.LedgerEntry, error) {
	return s.listFn(ctx, from, to, limit, offset)
}

func (s *ledgerServiceStub) Tail(ctx context.Context) (decimal.Decimal, error) {
	return s.tail, s.err
}

func (s *ledgerServiceStub) CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error) {
	return s.report, s.err
}

func (s *ledgerServiceStub) Rebuild(ctx context.Context) (*usecase.RecalcResult, error) {
	return s.rebuildResult, s.err
}

type linkedServiceStub struct {
	linkedFn      func(ctx context.Context, primary, secondary domain.PostingRequest, kind domain.CorrelationKind) (*usecase.LinkedPostingResult, error)
	consumptionFn func(ctx context.Context, in usecase.InternalConsumptionInput) (*usecase.LinkedPostingResult, error)
}

func (s *linkedServiceStub) PostLinked(ctx context.Context, primary, secondary domain.PostingRequest, kind domain.CorrelationKind) (*usecase.LinkedPostingResult, error) {
	return s.linkedFn(ctx, primary, secondary, kind)
}

func (s *linkedServiceStub) PostInternalConsumption(ctx context.Context, in usecase.InternalConsumptionInput) (*usecase.LinkedPostingResult, error) {
	return s.consumptionFn(ctx, in)
}

type correctionServiceStub struct {
	correctFn func(ctx context.Context, in usecase.CorrectionInput) (*usecase.CorrectionResult, error)
	records   []*domain.CorrectionRecord
}

func (s *correctionServiceStub) CorrectPosting(ctx context.Context, in usecase.CorrectionInput) (*usecase.CorrectionResult, error) {
	return s.correctFn(ctx, in)
}

func (s *correctionServiceStub) ListCorrections(ctx context.Context, entryID int64) ([]*domain.CorrectionRecord, error) {
	return s.records, nil
}

type currencyServiceStub struct {
	byCode  map[string]*domain.Currency
	rateErr error
	refresh *usecase.RefreshResult
}

func (s *currencyServiceStub) Create(ctx context.Context, in usecase.CreateCurrencyInput) (*domain.Currency, error) {
	if _, ok := s.byCode[in.Code]; ok {
		return nil, domain.ErrCurrencyExists
	}
	return domain.NewCurrency(in.Code, in.Symbol, in.Name, in.Rate)
}

func (s *currencyServiceStub) Get(ctx context.Context, code string) (*domain.Currency, error) {
	c, ok := s.byCode[code]
	if !ok {
		return nil, domain.ErrCurrencyNotFound
	}
	return c, nil
}

func (s *currencyServiceStub) List(ctx context.Context) ([]*domain.Currency, error) {
	out := make([]*domain.Currency, 0, len(s.byCode))
	for _, c := range s.byCode {
		out = append(out, c)
	}
	return out, nil
}

func (s *currencyServiceStub) SetAsBase(ctx context.Context, code string) (*domain.Currency, error) {
	c, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	c.MarkBase()
	return c, nil
}

func (s *currencyServiceStub) SetRate(ctx context.Context, code string, rate decimal.Decimal) (*domain.Currency, error) {
	if s.rateErr != nil {
		return nil, s.rateErr
	}
	c, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return c, c.SetRate(rate)
}

func (s *currencyServiceStub) Deactivate(ctx context.Context, code string) (*domain.Currency, error) {
	return nil, domain.ErrBaseCurrencyInactive
}

func (s *currencyServiceStub) RefreshRates(ctx context.Context) (*usecase.RefreshResult, error) {
	return s.refresh, nil
}

type stockServiceStub struct {
	events      []domain.StockEvent
	consumption *usecase.ConsumptionEvent
	correction  *usecase.PurchaseCorrection
	listRef     string
	err         error
}

func (s *stockServiceStub) result(ev domain.StockEvent, kind domain.StockMovementKind) (*usecase.StockResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.events = append(s.events, ev)
	return &usecase.StockResult{
		Movement: &domain.StockMovement{ID: "m1", ItemRef: ev.ItemRef, Kind: kind, Quantity: ev.Quantity, Date: ev.Date},
	}, nil
}

func (s *stockServiceStub) RecordPurchase(ctx context.Context, ev domain.StockEvent) (*usecase.StockResult, error) {
	return s.result(ev, domain.StockMovementPurchase)
}

func (s *stockServiceStub) RecordSale(ctx context.Context, ev domain.StockEvent) (*usecase.StockResult, error) {
	return s.result(ev, domain.StockMovementSale)
}

func (s *stockServiceStub) RecordInternalConsumption(ctx context.Context, ev usecase.ConsumptionEvent) (*usecase.StockResult, error) {
	s.consumption = &ev
	return s.result(ev.StockEvent, domain.StockMovementInternalConsumption)
}

func (s *stockServiceStub) RecordDamage(ctx context.Context, ev domain.StockEvent) (*usecase.StockResult, error) {
	return s.result(ev, domain.StockMovementDamage)
}

func (s *stockServiceStub) CorrectPurchase(ctx context.Context, in usecase.PurchaseCorrection) (*usecase.StockResult, error) {
	s.correction = &in
	return &usecase.StockResult{Correction: &domain.CorrectionRecord{ID: "c1", Reason: in.Reason}}, nil
}

func (s *stockServiceStub) ListMovements(ctx context.Context, itemRef string, limit, offset int) ([]*domain.StockMovement, error) {
	s.listRef = itemRef
	return []*domain.StockMovement{}, nil
}

// withURLParams attaches chi route params to a request built outside a router.
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
