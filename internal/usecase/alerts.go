package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// AlertThresholds configures advisory notifications in base currency.
// A zero HighExpense disables expense alerts; LowBalanceEnabled gates the
// balance alert because zero is a meaningful floor.
type AlertThresholds struct {
	HighExpense       decimal.Decimal
	LowBalance        decimal.Decimal
	LowBalanceEnabled bool
}

type alerter struct {
	notifier   Notifier
	thresholds AlertThresholds
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

func newAlerter(deps Dependencies) *alerter {
	return &alerter{
		notifier:   deps.Notifier,
		thresholds: deps.Thresholds,
		metrics:    deps.Metrics,
		logger:     deps.logger(),
		now:        deps.clock(),
	}
}

// evaluate runs after commit. Delivery failures are logged and counted.
func (a *alerter) evaluate(ctx context.Context, entries []*domain.LedgerEntry, tail decimal.Decimal) {
	if a == nil || a.notifier == nil {
		return
	}

	for _, alert := range a.collect(entries, tail) {
		if a.metrics != nil {
			a.metrics.AlertsRaised.WithLabelValues(string(alert.Kind)).Inc()
		}
		if err := a.notifier.Notify(ctx, alert); err != nil {
			if a.metrics != nil {
				a.metrics.NotifyFailures.Inc()
			}
			a.logger.Warn().
				Err(err).
				Str("kind", string(alert.Kind)).
				Int64("entry_id", alert.EntryID).
				Msg("failed to deliver ledger alert")
		}
	}
}

func (a *alerter) collect(entries []*domain.LedgerEntry, tail decimal.Decimal) []domain.Alert {
	var alerts []domain.Alert
	now := a.now()

	var last *domain.LedgerEntry
	for _, entry := range entries {
		last = entry
		if entry.IsCredit() || entry.CorrelationKind.NetsToZero() {
			continue
		}
		if a.thresholds.HighExpense.IsPositive() && entry.AmountBase.GreaterThan(a.thresholds.HighExpense) {
			alerts = append(alerts, domain.Alert{
				Kind:        domain.AlertKindHighExpense,
				EntryID:     entry.ID,
				Amount:      entry.AmountBase,
				Threshold:   a.thresholds.HighExpense,
				TailBalance: tail,
				RaisedAt:    now,
			})
		}
	}

	if a.thresholds.LowBalanceEnabled && tail.LessThan(a.thresholds.LowBalance) {
		alert := domain.Alert{
			Kind:        domain.AlertKindLowBalance,
			Amount:      tail,
			Threshold:   a.thresholds.LowBalance,
			TailBalance: tail,
			RaisedAt:    now,
		}
		if last != nil {
			alert.EntryID = last.ID
		}
		alerts = append(alerts, alert)
	}

	return alerts
}
