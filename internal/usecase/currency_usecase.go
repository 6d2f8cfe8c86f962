package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// ErrQuoteBaseMismatch is returned when a feed quotes against another base.
var ErrQuoteBaseMismatch = errors.New("rate quote base does not match base currency")

// CreateCurrencyInput registers a currency.
type CreateCurrencyInput struct {
	Code   string
	Symbol string
	Name   string
	Rate   decimal.Decimal
	IsBase bool
}

// RefreshResult summarizes one rate refresh run.
type RefreshResult struct {
	Base    string
	Source  string
	AsOf    time.Time
	Cached  bool
	Updated []string
	Skipped []string
	Failed  map[string]string
}

// CurrencyUseCase maintains currencies and their rates. None of its
// operations touch ledger entries or their rate snapshots.
type CurrencyUseCase struct {
	uow        *unitOfWork
	currencies CurrencyRepository
	outbox     OutboxRepository
	source     RateSource
	cache      Cache
	cacheTTL   time.Duration
	idGen      IDGenerator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewCurrencyUseCase creates a new CurrencyUseCase. source and cache may be
// nil; without a source RefreshRates fails.
func NewCurrencyUseCase(deps Dependencies, source RateSource, cache Cache, cacheTTL time.Duration) *CurrencyUseCase {
	if cacheTTL <= 0 {
		cacheTTL = DefaultRateCacheTTL
	}
	return &CurrencyUseCase{
		uow:        newUnitOfWork(deps),
		currencies: deps.Currencies,
		outbox:     deps.Outbox,
		source:     source,
		cache:      cache,
		cacheTTL:   cacheTTL,
		idGen:      deps.IDGen,
		metrics:    deps.Metrics,
		logger:     deps.logger(),
		now:        deps.clock(),
	}
}

// Create registers a currency. A base currency is created with rate 1 and
// takes the flag over from the previous base in the same transaction; its
// Rate is then read against the previous base and every other currency is
// rebased by it.
func (uc *CurrencyUseCase) Create(ctx context.Context, in CreateCurrencyInput) (*domain.Currency, error) {
	rate := in.Rate
	if in.IsBase {
		rate = decimal.NewFromInt(1)
	}
	currency, err := domain.NewCurrency(in.Code, in.Symbol, in.Name, rate)
	if err != nil {
		return nil, err
	}

	err = uc.uow.runUnlocked(ctx, func(ctx context.Context, tx Transaction) error {
		existing, err := uc.currencies.ListForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if c.Code == currency.Code {
				return fmt.Errorf("%w: %s", domain.ErrCurrencyExists, currency.Code)
			}
		}

		now := uc.now()
		currency.CreatedAt = now
		currency.UpdatedAt = now

		if in.IsBase || len(existing) == 0 {
			if hasBase(existing) {
				if !in.Rate.IsPositive() {
					return fmt.Errorf("%w: a new base needs its rate against %s", domain.ErrNonPositiveRate, baseCode(existing))
				}
				if err := uc.rebase(ctx, tx, existing, currency.Code, in.Rate, now); err != nil {
					return err
				}
			}
			currency.MarkBase()
		}

		return uc.currencies.Create(ctx, tx, currency)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Str("code", currency.Code).Bool("base", currency.IsBase).Msg("currency created")
	return currency, nil
}

// Get returns one currency.
func (uc *CurrencyUseCase) Get(ctx context.Context, code string) (*domain.Currency, error) {
	return uc.currencies.Get(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// List returns all currencies ordered by code.
func (uc *CurrencyUseCase) List(ctx context.Context) ([]*domain.Currency, error) {
	return uc.currencies.List(ctx)
}

// SetAsBase moves the base flag to code: rate pinned to 1, active, and
// every other currency, the old base included, rebased onto it in the same
// transaction.
func (uc *CurrencyUseCase) SetAsBase(ctx context.Context, code string) (*domain.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var target *domain.Currency
	err := uc.uow.runUnlocked(ctx, func(ctx context.Context, tx Transaction) error {
		all, err := uc.currencies.ListForUpdate(ctx, tx)
		if err != nil {
			return err
		}

		target = nil
		for _, c := range all {
			if c.Code == code {
				target = c
			}
		}
		if target == nil {
			return fmt.Errorf("%w: %s", domain.ErrCurrencyNotFound, code)
		}

		now := uc.now()
		// demote first so the single-base constraint holds after every
		// statement
		if err := uc.rebase(ctx, tx, all, code, target.Rate(), now); err != nil {
			return err
		}

		target.MarkBase()
		target.UpdatedAt = now
		if err := uc.currencies.Save(ctx, tx, target); err != nil {
			return err
		}

		return uc.writeEvent(ctx, tx, domain.EventTypeCurrencyBaseChanged, target)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Str("code", target.Code).Msg("base currency changed")
	return target, nil
}

// SetRate stores a new "1 unit = rate base" value. The base currency only
// accepts 1.
func (uc *CurrencyUseCase) SetRate(ctx context.Context, code string, rate decimal.Decimal) (*domain.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var currency *domain.Currency
	err := uc.uow.runUnlocked(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		currency, err = uc.currencies.GetByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if err := currency.SetRate(rate); err != nil {
			return err
		}
		currency.UpdatedAt = uc.now()
		if err := uc.currencies.Save(ctx, tx, currency); err != nil {
			return err
		}
		return uc.writeEvent(ctx, tx, domain.EventTypeCurrencyRateUpdated, currency)
	})
	if err != nil {
		return nil, err
	}
	return currency, nil
}

// Deactivate hides a currency from new postings. Existing entries keep it.
func (uc *CurrencyUseCase) Deactivate(ctx context.Context, code string) (*domain.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var currency *domain.Currency
	err := uc.uow.runUnlocked(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		currency, err = uc.currencies.GetByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if currency.IsBase {
			return fmt.Errorf("%w: %s", domain.ErrBaseCurrencyInactive, code)
		}
		currency.IsActive = false
		currency.UpdatedAt = uc.now()
		return uc.currencies.Save(ctx, tx, currency)
	})
	if err != nil {
		return nil, err
	}
	return currency, nil
}

// RefreshRates pulls a quote for the base currency and stores the
// reciprocal of every "1 BASE = X FOREIGN" value for active non-base
// currencies. The base rate is re-asserted to 1.
func (uc *CurrencyUseCase) RefreshRates(ctx context.Context) (*RefreshResult, error) {
	result, err := uc.refresh(ctx)
	if uc.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		} else if len(result.Failed) > 0 {
			status = "partial"
		}
		uc.metrics.RateRefreshes.WithLabelValues(status).Inc()
		if result != nil {
			uc.metrics.RatesUpdated.Add(float64(len(result.Updated)))
		}
	}
	return result, err
}

func (uc *CurrencyUseCase) refresh(ctx context.Context) (*RefreshResult, error) {
	if uc.source == nil {
		return nil, errors.New("no rate source configured")
	}

	base, err := uc.baseCurrency(ctx)
	if err != nil {
		return nil, err
	}

	quote, cached, err := uc.quote(ctx, base.Code)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(quote.Base, base.Code) {
		return nil, fmt.Errorf("%w: quote base %s, ledger base %s", ErrQuoteBaseMismatch, quote.Base, base.Code)
	}

	result := &RefreshResult{
		Base:   base.Code,
		Source: quote.Source,
		AsOf:   quote.AsOf,
		Cached: cached,
		Failed: map[string]string{},
	}

	err = uc.uow.runUnlocked(ctx, func(ctx context.Context, tx Transaction) error {
		result.Updated, result.Skipped = nil, nil
		result.Failed = map[string]string{}

		all, err := uc.currencies.ListForUpdate(ctx, tx)
		if err != nil {
			return err
		}

		now := uc.now()
		for _, c := range all {
			if c.IsBase {
				if !c.Rate().Equal(decimal.NewFromInt(1)) {
					c.MarkBase()
					c.UpdatedAt = now
					if err := uc.currencies.Save(ctx, tx, c); err != nil {
						return err
					}
				}
				continue
			}
			if !c.IsActive {
				result.Skipped = append(result.Skipped, c.Code)
				continue
			}

			q, ok := quote.Rates[c.Code]
			if !ok {
				result.Skipped = append(result.Skipped, c.Code)
				continue
			}

			rate, err := domain.RateFromBaseQuote(q)
			if err != nil {
				result.Failed[c.Code] = err.Error()
				continue
			}
			if c.Rate().Equal(rate) {
				result.Skipped = append(result.Skipped, c.Code)
				continue
			}
			if err := c.SetRate(rate); err != nil {
				result.Failed[c.Code] = err.Error()
				continue
			}
			c.UpdatedAt = now
			if err := uc.currencies.Save(ctx, tx, c); err != nil {
				return err
			}
			if err := uc.writeEvent(ctx, tx, domain.EventTypeCurrencyRateUpdated, c); err != nil {
				return err
			}
			result.Updated = append(result.Updated, c.Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(result.Updated)
	sort.Strings(result.Skipped)

	for code, reason := range result.Failed {
		uc.logger.Error().Str("code", code).Str("reason", reason).Msg("rejected exchange rate quote")
	}
	uc.logger.Info().
		Str("base", result.Base).
		Strs("updated", result.Updated).
		Int("skipped", len(result.Skipped)).
		Bool("cached", result.Cached).
		Msg("exchange rates refreshed")

	return result, nil
}

func (uc *CurrencyUseCase) baseCurrency(ctx context.Context) (*domain.Currency, error) {
	all, err := uc.currencies.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.IsBase {
			return c, nil
		}
	}
	return nil, domain.ErrNoBaseCurrency
}

// quote returns a cached quote when one is younger than the cache TTL.
// Cache errors fall through to the source.
func (uc *CurrencyUseCase) quote(ctx context.Context, base string) (*RateQuote, bool, error) {
	key := rateCacheKeyPrefix + base

	if uc.cache != nil {
		raw, err := uc.cache.Get(ctx, key)
		switch {
		case err == nil:
			var q RateQuote
			if jsonErr := json.Unmarshal([]byte(raw), &q); jsonErr == nil {
				return &q, true, nil
			}
			uc.logger.Warn().Str("key", key).Msg("discarding unreadable cached quote")
		case !errors.Is(err, ErrCacheMiss):
			uc.logger.Warn().Err(err).Str("key", key).Msg("rate cache unavailable")
		}
	}

	q, err := uc.source.Latest(ctx, base)
	if err != nil {
		return nil, false, fmt.Errorf("fetch rates: %w", err)
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(q); err == nil {
			if err := uc.cache.Set(ctx, key, string(raw), uc.cacheTTL); err != nil {
				uc.logger.Warn().Err(err).Str("key", key).Msg("failed to cache rate quote")
			}
		}
	}

	return q, false, nil
}

// rebase moves every currency except keep onto a new base worth
// newBaseRate units of the current one. Entry snapshots are untouched.
func (uc *CurrencyUseCase) rebase(ctx context.Context, tx Transaction, all []*domain.Currency, keep string, newBaseRate decimal.Decimal, now time.Time) error {
	for _, c := range all {
		if c.Code == keep {
			continue
		}
		if err := c.Rebase(newBaseRate); err != nil {
			return err
		}
		c.UpdatedAt = now
		if err := uc.currencies.Save(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

func hasBase(all []*domain.Currency) bool {
	return baseCode(all) != ""
}

func baseCode(all []*domain.Currency) string {
	for _, c := range all {
		if c.IsBase {
			return c.Code
		}
	}
	return ""
}

func (uc *CurrencyUseCase) writeEvent(ctx context.Context, tx Transaction, eventType string, c *domain.Currency) error {
	if uc.outbox == nil {
		return nil
	}
	return uc.outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   c.Code,
		AggregateType: domain.AggregateTypeCurrency,
		EventType:     eventType,
		Payload: map[string]any{
			"code":    c.Code,
			"rate":    c.Rate().String(),
			"is_base": c.IsBase,
		},
		CreatedAt: uc.now(),
	})
}
