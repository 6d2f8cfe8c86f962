package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// CurrencyRepository implements usecase.CurrencyRepository.
type CurrencyRepository struct {
	store *Store
}

// NewCurrencyRepository creates a new CurrencyRepository.
func NewCurrencyRepository(store *Store) *CurrencyRepository {
	return &CurrencyRepository{store: store}
}

func (r *CurrencyRepository) Create(ctx context.Context, tx usecase.Transaction, c *domain.Currency) error {
	if err := r.store.checkTx(tx); err != nil {
		return err
	}
	if _, ok := r.store.currencies[c.Code]; ok {
		return fmt.Errorf("%w: %s", domain.ErrCurrencyExists, c.Code)
	}
	if err := r.checkSingleBase(c); err != nil {
		return err
	}
	cp := *c
	r.store.currencies[c.Code] = &cp
	return nil
}

func (r *CurrencyRepository) Save(ctx context.Context, tx usecase.Transaction, c *domain.Currency) error {
	if err := r.store.checkTx(tx); err != nil {
		return err
	}
	if _, ok := r.store.currencies[c.Code]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrCurrencyNotFound, c.Code)
	}
	if err := r.checkSingleBase(c); err != nil {
		return err
	}
	cp := *c
	r.store.currencies[c.Code] = &cp
	return nil
}

// checkSingleBase mirrors the partial unique index on is_base.
func (r *CurrencyRepository) checkSingleBase(c *domain.Currency) error {
	if !c.IsBase {
		return nil
	}
	for code, other := range r.store.currencies {
		if code != c.Code && other.IsBase {
			return fmt.Errorf("memory: %s is already the base currency", code)
		}
	}
	return nil
}

func (r *CurrencyRepository) GetByCode(ctx context.Context, tx usecase.Transaction, code string) (*domain.Currency, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	return r.get(code)
}

func (r *CurrencyRepository) GetBase(ctx context.Context, tx usecase.Transaction) (*domain.Currency, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	for _, c := range r.store.currencies {
		if c.IsBase {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrCurrencyNotFound
}

func (r *CurrencyRepository) ListForUpdate(ctx context.Context, tx usecase.Transaction) ([]*domain.Currency, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	return r.list(), nil
}

func (r *CurrencyRepository) Get(ctx context.Context, code string) (*domain.Currency, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.get(code)
}

func (r *CurrencyRepository) List(ctx context.Context) ([]*domain.Currency, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.list(), nil
}

func (r *CurrencyRepository) get(code string) (*domain.Currency, error) {
	c, ok := r.store.currencies[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCurrencyNotFound, code)
	}
	cp := *c
	return &cp, nil
}

func (r *CurrencyRepository) list() []*domain.Currency {
	out := make([]*domain.Currency, 0, len(r.store.currencies))
	for _, c := range r.store.currencies {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// CorrectionRepository implements usecase.CorrectionRepository.
type CorrectionRepository struct {
	store *Store
}

// NewCorrectionRepository creates a new CorrectionRepository.
func NewCorrectionRepository(store *Store) *CorrectionRepository {
	return &CorrectionRepository{store: store}
}

func (r *CorrectionRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.CorrectionRecord) error {
	if err := r.store.checkTx(tx); err != nil {
		return err
	}
	cp := *record
	r.store.corrections = append(r.store.corrections, &cp)
	return nil
}

func (r *CorrectionRepository) ListByEntry(ctx context.Context, entryID int64) ([]*domain.CorrectionRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.CorrectionRecord
	for _, rec := range r.store.corrections {
		if rec.EntryID == entryID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// StockMovementRepository implements usecase.StockMovementRepository.
type StockMovementRepository struct {
	store *Store
}

// NewStockMovementRepository creates a new StockMovementRepository.
func NewStockMovementRepository(store *Store) *StockMovementRepository {
	return &StockMovementRepository{store: store}
}

func (r *StockMovementRepository) Create(ctx context.Context, tx usecase.Transaction, m *domain.StockMovement) error {
	if err := r.store.checkTx(tx); err != nil {
		return err
	}
	cp := *m
	r.store.movements = append(r.store.movements, &cp)
	return nil
}

func (r *StockMovementRepository) SumQuantityByEntry(ctx context.Context, tx usecase.Transaction, entryID int64) (decimal.Decimal, error) {
	if err := r.store.checkTx(tx); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, m := range r.store.movements {
		if m.LedgerEntryID != nil && *m.LedgerEntryID == entryID {
			sum = sum.Add(m.Quantity)
		}
	}
	return sum, nil
}

func (r *StockMovementRepository) ListByItem(ctx context.Context, itemRef string, limit, offset int) ([]*domain.StockMovement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var matched []*domain.StockMovement
	for _, m := range r.store.movements {
		if m.ItemRef == itemRef {
			cp := *m
			matched = append(matched, &cp)
		}
	}
	if offset >= len(matched) {
		return []*domain.StockMovement{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if err := r.store.checkTx(tx); err != nil {
		return err
	}
	cp := *event
	r.store.outbox = append(r.store.outbox, &cp)
	return nil
}

func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, ev := range r.store.outbox {
		if ev.Published {
			continue
		}
		cp := *ev
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, ev := range r.store.outbox {
		if ev.ID == id {
			at := publishedAt
			ev.Published = true
			ev.PublishedAt = &at
			return nil
		}
	}
	return fmt.Errorf("memory: outbox event %s not found", id)
}

func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.outbox[:0]
	for _, ev := range r.store.outbox {
		if ev.Published && ev.PublishedAt != nil && ev.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, ev)
	}
	r.store.outbox = kept
	return nil
}
