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

// Dependencies bundles the collaborators shared by the ledger use cases.
type Dependencies struct {
	TxManager   TransactionManager
	Store       LedgerStore
	Reader      LedgerReader
	Currencies  CurrencyRepository
	Corrections CorrectionRepository
	Stock       StockMovementRepository
	Outbox      OutboxRepository
	IDGen       IDGenerator
	Retrier     Retrier
	Notifier    Notifier
	Thresholds  AlertThresholds
	Metrics     *metrics.Metrics
	Logger      *zerolog.Logger
	Clock       func() time.Time
}

func (d Dependencies) logger() zerolog.Logger {
	if d.Logger == nil {
		return zerolog.Nop()
	}
	return *d.Logger
}

func (d Dependencies) clock() func() time.Time {
	if d.Clock == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return d.Clock
}

// unitOfWork runs ledger mutations as one transaction. The whole attempt,
// including Begin, is re-run by the retrier on transient conflicts.
type unitOfWork struct {
	txManager TransactionManager
	store     LedgerStore
	retrier   Retrier
}

func newUnitOfWork(deps Dependencies) *unitOfWork {
	return &unitOfWork{
		txManager: deps.TxManager,
		store:     deps.Store,
		retrier:   deps.Retrier,
	}
}

// run executes fn holding the ledger writer lock.
func (u *unitOfWork) run(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	return u.retry(ctx, func() error { return u.attempt(ctx, true, fn) })
}

// runUnlocked executes fn in a transaction without the ledger lock. Used for
// currency maintenance, which never touches ledger rows.
func (u *unitOfWork) runUnlocked(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	return u.retry(ctx, func() error { return u.attempt(ctx, false, fn) })
}

func (u *unitOfWork) retry(ctx context.Context, op func() error) error {
	if u.retrier == nil {
		return op()
	}
	return u.retrier.Retry(ctx, op)
}

func (u *unitOfWork) attempt(ctx context.Context, lock bool, fn func(ctx context.Context, tx Transaction) error) error {
	// Add transaction timeout
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := u.txManager.Begin(txCtx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if lock {
		if err := u.store.Lock(txCtx, tx); err != nil {
			return fmt.Errorf("lock ledger: %w", err)
		}
	}

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// observe records duration and error class of a ledger operation.
func observe(m *metrics.Metrics, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.PostingDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.PostingErrors.WithLabelValues(operation, domain.ClassifyError(err)).Inc()
	}
}

func setTail(m *metrics.Metrics, tail decimal.Decimal) {
	if m == nil {
		return
	}
	m.TailBalance.Set(tail.InexactFloat64())
}
