package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bistroledger/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestTx_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	txm := NewTxManager(store)
	ledger := NewLedgerRepository(store)

	tx, err := txm.Begin(ctx)
	require.NoError(t, err)
	_, err = ledger.Append(ctx, tx, &domain.LedgerEntry{Date: day(1), Credit: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx, err = txm.Begin(ctx)
	require.NoError(t, err)
	_, err = ledger.Append(ctx, tx, &domain.LedgerEntry{Date: day(2), Credit: decimal.NewFromInt(20)})
	require.NoError(t, err)
	_, err = ledger.Update(ctx, tx, 1, func(e *domain.LedgerEntry) error {
		e.Credit = decimal.NewFromInt(99)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	entries, err := ledger.ListRange(ctx, time.Time{}, time.Time{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Credit.Equal(decimal.NewFromInt(10)))

	// ids handed out in a rolled back tx are reused
	tx, err = txm.Begin(ctx)
	require.NoError(t, err)
	id, err := ledger.Append(ctx, tx, &domain.LedgerEntry{Date: day(3), Credit: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	require.NoError(t, tx.Commit(ctx))
}

func TestTx_FinishedTxRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx, err := NewTxManager(store).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assert.NoError(t, tx.Rollback(ctx))
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)

	_, err = NewLedgerRepository(store).Append(ctx, tx, &domain.LedgerEntry{Date: day(1)})
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestLedgerRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ledger := NewLedgerRepository(store)

	tx, err := NewTxManager(store).Begin(ctx)
	require.NoError(t, err)
	for _, d := range []int{5, 1, 5, 3} {
		_, err := ledger.Append(ctx, tx, &domain.LedgerEntry{Date: day(d), Credit: decimal.NewFromInt(int64(d))})
		require.NoError(t, err)
	}

	from, err := ledger.RangeFrom(ctx, tx, day(3))
	require.NoError(t, err)
	var ids []int64
	for _, e := range from {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{4, 1, 3}, ids)

	prev, err := ledger.LastBefore(ctx, tx, day(3))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(2), prev.ID)

	none, err := ledger.LastBefore(ctx, tx, day(1))
	require.NoError(t, err)
	assert.Nil(t, none)

	latest, err := ledger.Latest(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.ID)
	require.NoError(t, tx.Commit(ctx))
}

func TestLedgerRepository_FindLatestByReference(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ledger := NewLedgerRepository(store)
	ref := domain.Reference{Type: domain.ReferenceTypePurchase, ID: "p-1"}

	tx, err := NewTxManager(store).Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = ledger.FindLatestByReference(ctx, tx, ref)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, _ = ledger.Append(ctx, tx, &domain.LedgerEntry{Date: day(2), Debit: decimal.NewFromInt(1), Reference: &ref})
	_, _ = ledger.Append(ctx, tx, &domain.LedgerEntry{Date: day(1), Debit: decimal.NewFromInt(1), Reference: &ref})

	found, err := ledger.FindLatestByReference(ctx, tx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.ID)
}

func TestCurrencyRepository_SingleBase(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewCurrencyRepository(store)

	tx, err := NewTxManager(store).Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	krw, err := domain.NewCurrency("KRW", "₩", "Won", decimal.NewFromInt(1))
	require.NoError(t, err)
	krw.MarkBase()
	require.NoError(t, repo.Create(ctx, tx, krw))

	usd, err := domain.NewCurrency("USD", "$", "Dollar", decimal.NewFromInt(1300))
	require.NoError(t, err)
	usd.MarkBase()
	assert.Error(t, repo.Create(ctx, tx, usd))

	usd.IsBase = false
	require.NoError(t, repo.Create(ctx, tx, usd))
	assert.ErrorIs(t, repo.Create(ctx, tx, usd), domain.ErrCurrencyExists)

	base, err := repo.GetBase(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, "KRW", base.Code)
}
