package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
)

// LedgerStore is the ordered collection of posted entries. Every ordered read
// sorts by (date ASC, id ASC). Lookups that find nothing return
// domain.ErrEntryNotFound, except LastBefore and Latest which return nil.
type LedgerStore interface {
	// Lock serializes ledger writers for the lifetime of tx.
	Lock(ctx context.Context, tx Transaction) error
	Append(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) (int64, error)
	Update(ctx context.Context, tx Transaction, id int64, mutate func(*domain.LedgerEntry) error) (*domain.LedgerEntry, error)
	Remove(ctx context.Context, tx Transaction, id int64) (*domain.LedgerEntry, error)
	GetByID(ctx context.Context, tx Transaction, id int64) (*domain.LedgerEntry, error)
	RangeFrom(ctx context.Context, tx Transaction, from time.Time) ([]*domain.LedgerEntry, error)
	LastBefore(ctx context.Context, tx Transaction, before time.Time) (*domain.LedgerEntry, error)
	Latest(ctx context.Context, tx Transaction) (*domain.LedgerEntry, error)
	SetRunningBalances(ctx context.Context, tx Transaction, updates []domain.BalanceUpdate) error
	FindLatestByReference(ctx context.Context, tx Transaction, ref domain.Reference) (*domain.LedgerEntry, error)
	ListByCorrelation(ctx context.Context, tx Transaction, correlationID string) ([]*domain.LedgerEntry, error)
}

// LedgerReader serves reporting. It reads settled balances and never
// triggers recalculation.
type LedgerReader interface {
	FindByID(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*domain.LedgerEntry, error)
	Tail(ctx context.Context) (*domain.LedgerEntry, error)
	Scan(ctx context.Context, fn func(*domain.LedgerEntry) error) error
}

// CurrencyRepository defines data access for currencies.
type CurrencyRepository interface {
	Create(ctx context.Context, tx Transaction, currency *domain.Currency) error
	Save(ctx context.Context, tx Transaction, currency *domain.Currency) error
	GetByCode(ctx context.Context, tx Transaction, code string) (*domain.Currency, error)
	GetBase(ctx context.Context, tx Transaction) (*domain.Currency, error)
	ListForUpdate(ctx context.Context, tx Transaction) ([]*domain.Currency, error)
	Get(ctx context.Context, code string) (*domain.Currency, error)
	List(ctx context.Context) ([]*domain.Currency, error)
}

// CorrectionRepository stores the append-only correction trail.
type CorrectionRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.CorrectionRecord) error
	ListByEntry(ctx context.Context, entryID int64) ([]*domain.CorrectionRecord, error)
}

// StockMovementRepository stores inventory movements.
type StockMovementRepository interface {
	Create(ctx context.Context, tx Transaction, movement *domain.StockMovement) error
	SumQuantityByEntry(ctx context.Context, tx Transaction, entryID int64) (decimal.Decimal, error)
	ListByItem(ctx context.Context, itemRef string, limit, offset int) ([]*domain.StockMovement, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Notifier receives advisory alerts. Delivery errors never affect postings.
type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// RateQuote is a feed snapshot where Rates[code] reads "1 Base = X code".
type RateQuote struct {
	Base   string                     `json:"base"`
	Rates  map[string]decimal.Decimal `json:"rates"`
	AsOf   time.Time                  `json:"as_of"`
	Source string                     `json:"source"`
}

// RateSource fetches exchange rate quotes from an external feed.
type RateSource interface {
	Latest(ctx context.Context, base string) (*RateQuote, error)
}

// Retrier re-runs a unit of work on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}
