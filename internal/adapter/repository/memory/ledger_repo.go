package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerStore and usecase.LedgerReader.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// Lock is a check only; Begin already holds the store.
func (r *LedgerRepository) Lock(ctx context.Context, tx usecase.Transaction) error {
	return r.store.checkTx(tx)
}

func (r *LedgerRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) (int64, error) {
	if err := r.store.checkTx(tx); err != nil {
		return 0, err
	}
	r.store.nextID++
	stored := entry.Clone()
	stored.ID = r.store.nextID
	r.store.entries[stored.ID] = stored
	return stored.ID, nil
}

func (r *LedgerRepository) Update(ctx context.Context, tx usecase.Transaction, id int64, mutate func(*domain.LedgerEntry) error) (*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	current, ok := r.store.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrEntryNotFound, id)
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	r.store.entries[id] = next
	return next.Clone(), nil
}

func (r *LedgerRepository) Remove(ctx context.Context, tx usecase.Transaction, id int64) (*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	entry, ok := r.store.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrEntryNotFound, id)
	}
	delete(r.store.entries, id)
	return entry, nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r *LedgerRepository) RangeFrom(ctx context.Context, tx usecase.Transaction, from time.Time) ([]*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	var out []*domain.LedgerEntry
	for _, e := range r.ordered() {
		if !e.Date.Before(from) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (r *LedgerRepository) LastBefore(ctx context.Context, tx usecase.Transaction, before time.Time) (*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	var last *domain.LedgerEntry
	for _, e := range r.ordered() {
		if !e.Date.Before(before) {
			break
		}
		last = e
	}
	if last == nil {
		return nil, nil
	}
	return last.Clone(), nil
}

func (r *LedgerRepository) Latest(ctx context.Context, tx usecase.Transaction) (*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	return r.latest(), nil
}

func (r *LedgerRepository) SetRunningBalances(ctx context.Context, tx usecase.Transaction, updates []domain.BalanceUpdate) error {
	if err := r.store.checkTx(tx); err != nil {
		return err
	}
	for _, u := range updates {
		e, ok := r.store.entries[u.EntryID]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrEntryNotFound, u.EntryID)
		}
		e.RunningBalance = u.RunningBalance
	}
	return nil
}

func (r *LedgerRepository) FindLatestByReference(ctx context.Context, tx usecase.Transaction, ref domain.Reference) (*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	var found *domain.LedgerEntry
	for _, e := range r.ordered() {
		if e.Reference != nil && *e.Reference == ref {
			found = e
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrEntryNotFound, ref.Type, ref.ID)
	}
	return found.Clone(), nil
}

func (r *LedgerRepository) ListByCorrelation(ctx context.Context, tx usecase.Transaction, correlationID string) ([]*domain.LedgerEntry, error) {
	if err := r.store.checkTx(tx); err != nil {
		return nil, err
	}
	var out []*domain.LedgerEntry
	for _, e := range r.ordered() {
		if e.CorrelationID == correlationID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// FindByID reads one entry outside a transaction.
func (r *LedgerRepository) FindByID(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.get(id)
}

func (r *LedgerRepository) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []*domain.LedgerEntry
	for _, e := range r.ordered() {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		matched = append(matched, e)
	}

	if offset >= len(matched) {
		return []*domain.LedgerEntry{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*domain.LedgerEntry, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (r *LedgerRepository) Tail(ctx context.Context) (*domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.latest(), nil
}

func (r *LedgerRepository) Scan(ctx context.Context, fn func(*domain.LedgerEntry) error) error {
	r.store.mu.Lock()
	entries := r.ordered()
	for i, e := range entries {
		entries[i] = e.Clone()
	}
	r.store.mu.Unlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *LedgerRepository) get(id int64) (*domain.LedgerEntry, error) {
	e, ok := r.store.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrEntryNotFound, id)
	}
	return e.Clone(), nil
}

func (r *LedgerRepository) latest() *domain.LedgerEntry {
	entries := r.ordered()
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1].Clone()
}

// ordered returns stored entries in (date, id) order. Caller must hold mu.
func (r *LedgerRepository) ordered() []*domain.LedgerEntry {
	out := make([]*domain.LedgerEntry, 0, len(r.store.entries))
	for _, e := range r.store.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
