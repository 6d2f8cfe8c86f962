package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// Violation kinds reported by CheckConsistency.
const (
	ViolationRunningBalance = "running_balance"
	ViolationSides          = "sides"
	ViolationConversion     = "conversion"
	ViolationLinkedNet      = "linked_net"
	ViolationBaseCurrency   = "base_currency"
)

// Violation is one entry that fails a ledger invariant. Base currency
// violations carry no entry.
type Violation struct {
	EntryID  int64
	Date     time.Time
	Kind     string
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Detail   string
}

// ConsistencyReport is the outcome of a full ledger scan.
type ConsistencyReport struct {
	Entries     int
	TailBalance decimal.Decimal
	Consistent  bool
	Violations  []Violation
	CheckedAt   time.Time
}

// LedgerUseCase handles ledger-wide reads and maintenance.
type LedgerUseCase struct {
	uow        *unitOfWork
	reader     LedgerReader
	currencies CurrencyRepository
	recalc     *Recalculator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(deps Dependencies, recalc *Recalculator) *LedgerUseCase {
	return &LedgerUseCase{
		uow:        newUnitOfWork(deps),
		reader:     deps.Reader,
		currencies: deps.Currencies,
		recalc:     recalc,
		metrics:    deps.Metrics,
		logger:     deps.logger(),
		now:        deps.clock(),
	}
}

// GetEntry returns one entry with its settled running balance.
func (uc *LedgerUseCase) GetEntry(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	return uc.reader.FindByID(ctx, id)
}

// ListRange returns entries dated within [from, to] in ledger order. A zero
// to means no upper bound.
func (uc *LedgerUseCase) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*domain.LedgerEntry, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	if !from.IsZero() {
		from = domain.NormalizeDate(from)
	}
	if !to.IsZero() {
		to = domain.NormalizeDate(to)
		if !from.IsZero() && to.Before(from) {
			return nil, fmt.Errorf("%w: range ends before it starts", domain.ErrInvalidDate)
		}
	}
	return uc.reader.ListRange(ctx, from, to, limit, offset)
}

// Tail returns the balance after the last entry, zero on an empty ledger.
func (uc *LedgerUseCase) Tail(ctx context.Context) (decimal.Decimal, error) {
	last, err := uc.reader.Tail(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if last == nil {
		return decimal.Zero, nil
	}
	return last.RunningBalance, nil
}

// CheckConsistency replays the whole ledger in memory and compares each
// stored balance and conversion against it. It also checks that internal
// consumption groups net to zero and that exactly one base currency exists
// at rate 1. Nothing is written.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{CheckedAt: uc.now()}

	type group struct {
		first *domain.LedgerEntry
		net   decimal.Decimal
	}
	var groupOrder []string
	groups := map[string]*group{}

	running := decimal.Zero
	err := uc.reader.Scan(ctx, func(e *domain.LedgerEntry) error {
		report.Entries++

		if e.CorrelationID != "" && e.CorrelationKind == domain.CorrelationKindInternalConsumption {
			g, ok := groups[e.CorrelationID]
			if !ok {
				g = &group{first: e}
				groups[e.CorrelationID] = g
				groupOrder = append(groupOrder, e.CorrelationID)
			}
			g.net = g.net.Add(e.SignedBase())
		}

		if err := domain.ValidateSides(e.Credit, e.Debit); err != nil {
			report.Violations = append(report.Violations, Violation{
				EntryID: e.ID, Date: e.Date, Kind: ViolationSides,
				Expected: decimal.Zero, Actual: e.Credit.Sub(e.Debit),
			})
		}

		if want := e.AmountOriginal.Mul(e.ExchangeRateSnapshot); !want.Equal(e.AmountBase) {
			report.Violations = append(report.Violations, Violation{
				EntryID: e.ID, Date: e.Date, Kind: ViolationConversion,
				Expected: want, Actual: e.AmountBase,
			})
		}

		running = running.Add(e.SignedBase())
		if !running.Equal(e.RunningBalance) {
			report.Violations = append(report.Violations, Violation{
				EntryID: e.ID, Date: e.Date, Kind: ViolationRunningBalance,
				Expected: running, Actual: e.RunningBalance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range groupOrder {
		if g := groups[id]; !g.net.IsZero() {
			report.Violations = append(report.Violations, Violation{
				EntryID: g.first.ID, Date: g.first.Date, Kind: ViolationLinkedNet,
				Expected: decimal.Zero, Actual: g.net, Detail: id,
			})
		}
	}

	if uc.currencies != nil {
		v, err := uc.checkBaseCurrency(ctx)
		if err != nil {
			return nil, err
		}
		report.Violations = append(report.Violations, v...)
	}

	report.TailBalance = running
	report.Consistent = len(report.Violations) == 0

	if !report.Consistent {
		uc.logger.Warn().
			Int("violations", len(report.Violations)).
			Int("entries", report.Entries).
			Msg("ledger consistency check failed")
	}

	return report, nil
}

// Rebuild replays running balances over the whole ledger.
func (uc *LedgerUseCase) Rebuild(ctx context.Context) (*RecalcResult, error) {
	start := time.Now()

	var result *RecalcResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		result, err = uc.recalc.Recalculate(ctx, tx, time.Time{})
		return err
	})
	observe(uc.metrics, "rebuild", start, err)
	if err != nil {
		return nil, err
	}

	setTail(uc.metrics, result.Tail)
	uc.logger.Info().
		Int("replayed", result.Replayed).
		Int("written", result.Written).
		Str("tail", result.Tail.String()).
		Msg("ledger rebuilt")

	return result, nil
}

func (uc *LedgerUseCase) checkBaseCurrency(ctx context.Context) ([]Violation, error) {
	all, err := uc.currencies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}

	one := decimal.NewFromInt(1)
	var bases []*domain.Currency
	var out []Violation
	for _, c := range all {
		if !c.IsBase {
			continue
		}
		bases = append(bases, c)
		if !c.Rate().Equal(one) {
			out = append(out, Violation{
				Kind: ViolationBaseCurrency, Expected: one, Actual: c.Rate(),
				Detail: c.Code + " is base with a rate other than 1",
			})
		}
	}
	if len(all) > 0 && len(bases) != 1 {
		out = append(out, Violation{
			Kind: ViolationBaseCurrency, Expected: one, Actual: decimal.NewFromInt(int64(len(bases))),
			Detail: "exactly one base currency is required",
		})
	}
	return out, nil
}
