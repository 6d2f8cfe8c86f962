// Package memory is an in-process implementation of the ledger repositories.
// A transaction holds the store mutex from Begin until Commit or Rollback, so
// writers are serialized the same way the Postgres advisory lock does it.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memory: transaction already finished")

// Store holds all ledger state.
type Store struct {
	mu sync.Mutex

	nextID      int64
	entries     map[int64]*domain.LedgerEntry
	currencies  map[string]*domain.Currency
	corrections []*domain.CorrectionRecord
	movements   []*domain.StockMovement
	outbox      []*domain.OutboxEvent
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:    make(map[int64]*domain.LedgerEntry),
		currencies: make(map[string]*domain.Currency),
	}
}

type snapshot struct {
	nextID      int64
	entries     map[int64]*domain.LedgerEntry
	currencies  map[string]*domain.Currency
	corrections []*domain.CorrectionRecord
	movements   []*domain.StockMovement
	outbox      []*domain.OutboxEvent
}

// snapshot copies the state. Caller must hold mu.
func (s *Store) snapshot() snapshot {
	snap := snapshot{
		nextID:      s.nextID,
		entries:     make(map[int64]*domain.LedgerEntry, len(s.entries)),
		currencies:  make(map[string]*domain.Currency, len(s.currencies)),
		corrections: append([]*domain.CorrectionRecord(nil), s.corrections...),
		movements:   append([]*domain.StockMovement(nil), s.movements...),
		outbox:      make([]*domain.OutboxEvent, 0, len(s.outbox)),
	}
	for id, e := range s.entries {
		snap.entries[id] = e.Clone()
	}
	for code, c := range s.currencies {
		cp := *c
		snap.currencies[code] = &cp
	}
	for _, ev := range s.outbox {
		cp := *ev
		snap.outbox = append(snap.outbox, &cp)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.nextID = snap.nextID
	s.entries = snap.entries
	s.currencies = snap.currencies
	s.corrections = snap.corrections
	s.movements = snap.movements
	s.outbox = snap.outbox
}

// Tx is a transaction on the store.
type Tx struct {
	store *Store
	saved snapshot
	done  bool
}

// Commit keeps the changes and releases the store.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// Rollback restores the state captured at Begin. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.restore(t.saved)
	t.store.mu.Unlock()
	return nil
}

// TxManager begins transactions on a Store.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin locks the store and records a rollback point.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	return &Tx{store: m.store, saved: m.store.snapshot()}, nil
}

func (s *Store) checkTx(tx usecase.Transaction) error {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return errors.New("memory: foreign transaction")
	}
	if t.done {
		return ErrTxDone
	}
	return nil
}

// IDGenerator hands out sequential string ids.
type IDGenerator struct {
	mu   sync.Mutex
	next int
}

// Generate returns the next id.
func (g *IDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return "id-" + strconv.Itoa(g.next)
}
