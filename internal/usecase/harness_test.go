package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/bistroledger/internal/adapter/repository/memory"
	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
	"github.com/iho/bistroledger/internal/usecase"
)

var (
	d1 = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	d2 = d1.AddDate(0, 0, 1)
	d3 = d1.AddDate(0, 0, 2)
	d4 = d1.AddDate(0, 0, 3)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recordingNotifier collects alerts and can be told to fail.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *recordingNotifier) kinds() []domain.AlertKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.AlertKind
	for _, a := range n.alerts {
		out = append(out, a.Kind)
	}
	return out
}

type harness struct {
	store       *memory.Store
	ledger      *memory.LedgerRepository
	currencies  *memory.CurrencyRepository
	stockRepo   *memory.StockMovementRepository
	outbox      *memory.OutboxRepository
	notifier    *recordingNotifier
	metrics     *metrics.Metrics
	deps        usecase.Dependencies
	recalc      *usecase.Recalculator
	posting     *usecase.PostingUseCase
	linked      *usecase.LinkedPostingUseCase
	correction  *usecase.CorrectionUseCase
	stock       *usecase.StockUseCase
	ledgerUC    *usecase.LedgerUseCase
	currencyUC  *usecase.CurrencyUseCase
	rateSource  usecase.RateSource
	rateCache   usecase.Cache
	clockTime   time.Time
	thresholds  usecase.AlertThresholds
	withoutBase bool
}

type harnessOption func(*harness)

func withThresholds(th usecase.AlertThresholds) harnessOption {
	return func(h *harness) { h.thresholds = th }
}

func withRates(source usecase.RateSource, cache usecase.Cache) harnessOption {
	return func(h *harness) {
		h.rateSource = source
		h.rateCache = cache
	}
}

func withoutBaseCurrency() harnessOption {
	return func(h *harness) { h.withoutBase = true }
}

// newHarness wires every use case over one memory store with KRW as base.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		store:     memory.NewStore(),
		notifier:  &recordingNotifier{},
		metrics:   metrics.NewWithRegisterer(prometheus.NewRegistry()),
		clockTime: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.ledger = memory.NewLedgerRepository(h.store)
	h.currencies = memory.NewCurrencyRepository(h.store)
	h.stockRepo = memory.NewStockMovementRepository(h.store)
	h.outbox = memory.NewOutboxRepository(h.store)

	h.deps = usecase.Dependencies{
		TxManager:   memory.NewTxManager(h.store),
		Store:       h.ledger,
		Reader:      h.ledger,
		Currencies:  h.currencies,
		Corrections: memory.NewCorrectionRepository(h.store),
		Stock:       h.stockRepo,
		Outbox:      h.outbox,
		IDGen:       &memory.IDGenerator{},
		Notifier:    h.notifier,
		Thresholds:  h.thresholds,
		Metrics:     h.metrics,
		Clock:       func() time.Time { return h.clockTime },
	}

	h.recalc = usecase.NewRecalculator(h.ledger, h.metrics)
	h.posting = usecase.NewPostingUseCase(h.deps, h.recalc)
	h.linked = usecase.NewLinkedPostingUseCase(h.deps, h.posting, h.recalc)
	h.correction = usecase.NewCorrectionUseCase(h.deps, h.posting, h.recalc)
	h.stock = usecase.NewStockUseCase(h.deps, h.posting, h.linked, h.correction, h.recalc)
	h.ledgerUC = usecase.NewLedgerUseCase(h.deps, h.recalc)
	h.currencyUC = usecase.NewCurrencyUseCase(h.deps, h.rateSource, h.rateCache, time.Hour)

	if !h.withoutBase {
		_, err := h.currencyUC.Create(context.Background(), usecase.CreateCurrencyInput{
			Code: "KRW", Symbol: "₩", Name: "South Korean Won", IsBase: true,
		})
		require.NoError(t, err)
	}
	return h
}

func (h *harness) addCurrency(t *testing.T, code, rate string) {
	t.Helper()
	_, err := h.currencyUC.Create(context.Background(), usecase.CreateCurrencyInput{
		Code: code, Name: code, Rate: dec(rate),
	})
	require.NoError(t, err)
}

func (h *harness) post(t *testing.T, date time.Time, credit, debit string) *domain.LedgerEntry {
	t.Helper()
	req := domain.PostingRequest{Date: date}
	if credit != "" {
		req.Credit = dec(credit)
	}
	if debit != "" {
		req.Debit = dec(debit)
	}
	res, err := h.posting.Post(context.Background(), req)
	require.NoError(t, err)
	return res.Entry
}

// balances returns running balances in ledger order.
func (h *harness) balances(t *testing.T) []string {
	t.Helper()
	entries, err := h.ledgerUC.ListRange(context.Background(), time.Time{}, time.Time{}, 1000, 0)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.RunningBalance.String())
	}
	return out
}

func (h *harness) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := h.ledgerUC.CheckConsistency(context.Background())
	require.NoError(t, err)
	require.True(t, report.Consistent, "violations: %+v", report.Violations)
}

func (h *harness) outboxTypes(t *testing.T) []string {
	t.Helper()
	events, err := h.outbox.GetUnpublished(context.Background(), 0)
	require.NoError(t, err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}
