package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// RecalcResult describes one replay of the ledger.
type RecalcResult struct {
	Anchor   time.Time
	Replayed int
	Written  int
	Tail     decimal.Decimal
}

// Recalculator restores the running-balance chain after a ledger mutation.
// It is the only writer of LedgerEntry.RunningBalance.
type Recalculator struct {
	store   LedgerStore
	metrics *metrics.Metrics
}

// NewRecalculator creates a new Recalculator.
func NewRecalculator(store LedgerStore, m *metrics.Metrics) *Recalculator {
	return &Recalculator{store: store, metrics: m}
}

// Recalculate replays every entry dated on or after anchor, seeded with the
// running balance of the last entry before it (zero on an empty prefix).
// Only balances that actually change are written, so running it twice over
// the same anchor is a no-op the second time.
func (r *Recalculator) Recalculate(ctx context.Context, tx Transaction, anchor time.Time) (*RecalcResult, error) {
	anchor = domain.NormalizeDate(anchor)

	seed := decimal.Zero
	prev, err := r.store.LastBefore(ctx, tx, anchor)
	if err != nil {
		return nil, fmt.Errorf("load entry before %s: %w", anchor.Format(time.DateOnly), err)
	}
	if prev != nil {
		seed = prev.RunningBalance
	}

	entries, err := r.store.RangeFrom(ctx, tx, anchor)
	if err != nil {
		return nil, fmt.Errorf("load entries from %s: %w", anchor.Format(time.DateOnly), err)
	}

	var updates []domain.BalanceUpdate
	for _, entry := range entries {
		seed = seed.Add(entry.SignedBase())
		if entry.RunningBalance.Equal(seed) {
			continue
		}
		entry.RunningBalance = seed
		updates = append(updates, domain.BalanceUpdate{EntryID: entry.ID, RunningBalance: seed})
	}

	if len(updates) > 0 {
		if err := r.store.SetRunningBalances(ctx, tx, updates); err != nil {
			return nil, fmt.Errorf("write running balances: %w", err)
		}
	}

	if r.metrics != nil {
		r.metrics.RecalcReplayed.Observe(float64(len(entries)))
		r.metrics.RecalcWritten.Observe(float64(len(updates)))
	}

	return &RecalcResult{
		Anchor:   anchor,
		Replayed: len(entries),
		Written:  len(updates),
		Tail:     seed,
	}, nil
}
