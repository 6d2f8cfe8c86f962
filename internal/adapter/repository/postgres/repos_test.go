package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

func beginMock(t *testing.T, pool pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	pool.ExpectBegin()
	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestLedgerRepository_Lock(t *testing.T) {
	pool := newMockPool(t)
	repo := NewLedgerRepository(pool)
	tx := beginMock(t, pool)

	pool.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(ledgerLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, repo.Lock(context.Background(), tx))
	assertExpectations(t, pool)
}

func TestLedgerRepository_RejectsForeignTransaction(t *testing.T) {
	pool := newMockPool(t)
	repo := NewLedgerRepository(pool)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Lock(ctx, foreignTx{}), errForeignTx)
	_, err := repo.Append(ctx, foreignTx{}, &domain.LedgerEntry{})
	assert.ErrorIs(t, err, errForeignTx)
	_, err = repo.RangeFrom(ctx, foreignTx{}, time.Time{})
	assert.ErrorIs(t, err, errForeignTx)
	assert.ErrorIs(t, repo.SetRunningBalances(ctx, foreignTx{}, nil), errForeignTx)
}

func TestLedgerRepository_NotFound(t *testing.T) {
	pool := newMockPool(t)
	repo := NewLedgerRepository(pool)
	tx := beginMock(t, pool)
	ctx := context.Background()

	pool.ExpectQuery("DELETE FROM ledger_entries").WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)
	_, err := repo.Remove(ctx, tx, 7)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	pool.ExpectQuery("FROM ledger_entries WHERE id").WithArgs(int64(8)).WillReturnError(pgx.ErrNoRows)
	_, err = repo.FindByID(ctx, 8)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	pool.ExpectQuery("WHERE reference_type").WithArgs("purchase", "po-1").WillReturnError(pgx.ErrNoRows)
	_, err = repo.FindLatestByReference(ctx, tx, domain.Reference{Type: "purchase", ID: "po-1"})
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	assertExpectations(t, pool)
}

func TestLedgerRepository_EmptyLedger(t *testing.T) {
	pool := newMockPool(t)
	repo := NewLedgerRepository(pool)
	tx := beginMock(t, pool)
	ctx := context.Background()

	pool.ExpectQuery("WHERE entry_date <").WithArgs(anyArgs(1)...).WillReturnError(pgx.ErrNoRows)
	prev, err := repo.LastBefore(ctx, tx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, prev)

	pool.ExpectQuery("ORDER BY entry_date DESC").WillReturnError(pgx.ErrNoRows)
	tail, err := repo.Tail(ctx)
	require.NoError(t, err)
	assert.Nil(t, tail)

	assertExpectations(t, pool)
}

func TestLedgerRepository_UpdateMutateErrorWritesNothing(t *testing.T) {
	pool := newMockPool(t)
	repo := NewLedgerRepository(pool)
	tx := beginMock(t, pool)

	pool.ExpectQuery("FOR UPDATE").WithArgs(int64(3)).WillReturnError(pgx.ErrNoRows)

	called := false
	_, err := repo.Update(context.Background(), tx, 3, func(*domain.LedgerEntry) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.False(t, called)
	assertExpectations(t, pool)
}

func TestCurrencyRepository_Save(t *testing.T) {
	pool := newMockPool(t)
	repo := NewCurrencyRepository(pool)
	tx := beginMock(t, pool)
	ctx := context.Background()

	usd, err := domain.NewCurrency("USD", "$", "US Dollar", decimal.NewFromInt(1300))
	require.NoError(t, err)

	pool.ExpectExec("UPDATE currencies").WithArgs(anyArgs(7)...).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.Save(ctx, tx, usd))

	pool.ExpectExec("UPDATE currencies").WithArgs(anyArgs(7)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.Save(ctx, tx, usd), domain.ErrCurrencyNotFound)

	assertExpectations(t, pool)
}

func TestCurrencyRepository_CreateDuplicate(t *testing.T) {
	pool := newMockPool(t)
	repo := NewCurrencyRepository(pool)
	tx := beginMock(t, pool)

	usd, err := domain.NewCurrency("USD", "$", "US Dollar", decimal.NewFromInt(1300))
	require.NoError(t, err)

	pool.ExpectExec("INSERT INTO currencies").WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "currencies_pkey"})

	assert.ErrorIs(t, repo.Create(context.Background(), tx, usd), domain.ErrCurrencyExists)
	assertExpectations(t, pool)
}

func TestCurrencyRepository_SecondBaseIsRejectedByIndex(t *testing.T) {
	pool := newMockPool(t)
	repo := NewCurrencyRepository(pool)
	tx := beginMock(t, pool)

	eur, err := domain.NewCurrency("EUR", "€", "Euro", decimal.NewFromInt(1))
	require.NoError(t, err)
	eur.MarkBase()

	indexErr := &pgconn.PgError{Code: "23505", ConstraintName: "currencies_single_base"}
	pool.ExpectExec("INSERT INTO currencies").WithArgs(anyArgs(8)...).WillReturnError(indexErr)

	err = repo.Create(context.Background(), tx, eur)
	assert.NotErrorIs(t, err, domain.ErrCurrencyExists)
	assert.ErrorAs(t, err, &indexErr)
	assertExpectations(t, pool)
}

func TestCurrencyRepository_GetMissing(t *testing.T) {
	pool := newMockPool(t)
	repo := NewCurrencyRepository(pool)

	pool.ExpectQuery("FROM currencies WHERE code").WithArgs("GBP").WillReturnError(pgx.ErrNoRows)
	_, err := repo.Get(context.Background(), "GBP")
	assert.ErrorIs(t, err, domain.ErrCurrencyNotFound)
	assertExpectations(t, pool)
}

func TestCorrectionRepository_Create(t *testing.T) {
	pool := newMockPool(t)
	repo := NewCorrectionRepository(pool)
	tx := beginMock(t, pool)

	rec := &domain.CorrectionRecord{ID: "c1", EntryID: 4, Reason: "typo", CreatedAt: time.Now()}

	pool.ExpectExec("INSERT INTO ledger_corrections").WithArgs(anyArgs(14)...).
		WillReturnError(errors.New("connection reset"))
	err := repo.Create(context.Background(), tx, rec)
	assert.ErrorContains(t, err, "insert correction for entry 4")
	assertExpectations(t, pool)
}

func TestStockMovementRepository_Create(t *testing.T) {
	pool := newMockPool(t)
	repo := NewStockMovementRepository(pool)
	tx := beginMock(t, pool)

	m := &domain.StockMovement{
		ID:       "m1",
		ItemRef:  "flour",
		Kind:     domain.StockMovementDamage,
		Quantity: decimal.NewFromInt(-5),
		Date:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}

	pool.ExpectExec("INSERT INTO stock_movements").WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(context.Background(), tx, m))
	assertExpectations(t, pool)
}

func TestOutboxRepository(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOutboxRepository(pool)
	tx := beginMock(t, pool)
	ctx := context.Background()
	now := time.Now()

	pool.ExpectExec("INSERT INTO outbox_events").WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(ctx, tx, &domain.OutboxEvent{
		ID:        "ev1",
		EventType: domain.EventTypeEntryPosted,
		Payload:   map[string]any{"entry_id": 1},
		CreatedAt: now,
	}))

	pool.ExpectExec("UPDATE outbox_events SET published").WithArgs("ev1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkPublished(ctx, "ev1", now))

	pool.ExpectExec("DELETE FROM outbox_events").WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	require.NoError(t, repo.DeletePublished(ctx, now))

	assertExpectations(t, pool)
}
