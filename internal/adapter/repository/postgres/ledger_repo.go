package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// ledgerLockKey is the advisory lock serializing ledger writers.
const ledgerLockKey int64 = 0x6C6564676572 // "ledger"

const entryColumns = `id, entry_date, credit, debit, running_balance, currency_code,
	amount_original, amount_base, exchange_rate_snapshot,
	correlation_id, correlation_kind, batch_id,
	category_ref, payment_method_ref, actor_ref, description,
	reference_type, reference_id, metadata, correction_count, created_at, updated_at`

// LedgerRepository implements usecase.LedgerStore and usecase.LedgerReader.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new LedgerRepository. db serves the
// read-only reporting queries; store methods run on the passed transaction.
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Lock takes the transaction-scoped advisory lock.
func (r *LedgerRepository) Lock(ctx context.Context, tx usecase.Transaction) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey)
	return err
}

// Append inserts an entry and returns its new id.
func (r *LedgerRepository) Append(ctx context.Context, tx usecase.Transaction, e *domain.LedgerEntry) (int64, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return 0, err
	}

	metadata, err := marshalMetadata(e.Metadata)
	if err != nil {
		return 0, err
	}
	refType, refID := referenceArgs(e.Reference)

	var id int64
	err = q.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			entry_date, credit, debit, running_balance, currency_code,
			amount_original, amount_base, exchange_rate_snapshot,
			correlation_id, correlation_kind, batch_id,
			category_ref, payment_method_ref, actor_ref, description,
			reference_type, reference_id, metadata, correction_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`,
		e.Date, e.Credit, e.Debit, e.RunningBalance, e.CurrencyCode,
		e.AmountOriginal, e.AmountBase, e.ExchangeRateSnapshot,
		nullString(e.CorrelationID), nullString(string(e.CorrelationKind)), nullString(e.BatchID),
		e.CategoryRef, e.PaymentMethodRef, e.ActorRef, e.Description,
		refType, refID, metadata, e.CorrectionCount, e.CreatedAt, e.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	return id, nil
}

// Update locks the row, applies mutate and writes every mutable column back.
func (r *LedgerRepository) Update(ctx context.Context, tx usecase.Transaction, id int64, mutate func(*domain.LedgerEntry) error) (*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}

	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, id)
	}

	if err := mutate(entry); err != nil {
		return nil, err
	}
	entry.ID = id

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = q.Exec(ctx, `
		UPDATE ledger_entries SET
			entry_date = $2, credit = $3, debit = $4, currency_code = $5,
			amount_original = $6, amount_base = $7, exchange_rate_snapshot = $8,
			category_ref = $9, payment_method_ref = $10, actor_ref = $11, description = $12,
			metadata = $13, correction_count = $14, updated_at = $15
		WHERE id = $1`,
		id, entry.Date, entry.Credit, entry.Debit, entry.CurrencyCode,
		entry.AmountOriginal, entry.AmountBase, entry.ExchangeRateSnapshot,
		entry.CategoryRef, entry.PaymentMethodRef, entry.ActorRef, entry.Description,
		metadata, entry.CorrectionCount, entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update ledger entry %d: %w", id, err)
	}
	return entry, nil
}

// Remove deletes an entry and returns it as it was.
func (r *LedgerRepository) Remove(ctx context.Context, tx usecase.Transaction, id int64) (*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	entry, err := scanEntry(q.QueryRow(ctx, `DELETE FROM ledger_entries WHERE id = $1 RETURNING `+entryColumns, id))
	if err != nil {
		return nil, notFound(err, id)
	}
	return entry, nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, tx usecase.Transaction, id int64) (*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, id)
	}
	return entry, nil
}

func (r *LedgerRepository) RangeFrom(ctx context.Context, tx usecase.Transaction, from time.Time) ([]*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return queryEntries(ctx, q, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE entry_date >= $1 ORDER BY entry_date, id`, from)
}

func (r *LedgerRepository) LastBefore(ctx context.Context, tx usecase.Transaction, before time.Time) (*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return optionalEntry(scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE entry_date < $1 ORDER BY entry_date DESC, id DESC LIMIT 1`, before)))
}

func (r *LedgerRepository) Latest(ctx context.Context, tx usecase.Transaction) (*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return optionalEntry(scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		ORDER BY entry_date DESC, id DESC LIMIT 1`)))
}

// SetRunningBalances writes all balances in one round trip.
func (r *LedgerRepository) SetRunningBalances(ctx context.Context, tx usecase.Transaction, updates []domain.BalanceUpdate) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE ledger_entries SET running_balance = $2 WHERE id = $1`, u.EntryID, u.RunningBalance)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for _, u := range updates {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("set running balance of %d: %w", u.EntryID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %d", domain.ErrEntryNotFound, u.EntryID)
		}
	}
	return nil
}

func (r *LedgerRepository) FindLatestByReference(ctx context.Context, tx usecase.Transaction, ref domain.Reference) (*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY entry_date DESC, id DESC LIMIT 1
		FOR UPDATE`, ref.Type, ref.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrEntryNotFound, ref.Type, ref.ID)
	}
	return entry, err
}

func (r *LedgerRepository) ListByCorrelation(ctx context.Context, tx usecase.Transaction, correlationID string) ([]*domain.LedgerEntry, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return queryEntries(ctx, q, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE correlation_id = $1 ORDER BY entry_date, id`, correlationID)
}

// FindByID reads one settled entry.
func (r *LedgerRepository) FindByID(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, id)
	}
	return entry, nil
}

// ListRange returns entries within [from, to]; zero bounds are open.
func (r *LedgerRepository) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*domain.LedgerEntry, error) {
	var (
		where []string
		args  []any
	)
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("entry_date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("entry_date <= $%d", len(args)))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY entry_date, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	entries, err := queryEntries(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}
	return entries, nil
}

func (r *LedgerRepository) Tail(ctx context.Context) (*domain.LedgerEntry, error) {
	return optionalEntry(scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		ORDER BY entry_date DESC, id DESC LIMIT 1`)))
}

// Scan streams the whole ledger in (date, id) order.
func (r *LedgerRepository) Scan(ctx context.Context, fn func(*domain.LedgerEntry) error) error {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries ORDER BY entry_date, id`)
	if err != nil {
		return fmt.Errorf("scan ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

func queryEntries(ctx context.Context, q DBTX, sql string, args ...any) ([]*domain.LedgerEntry, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e                   domain.LedgerEntry
		correlationID, kind *string
		batchID             *string
		refType, refID      *string
		metadata            []byte
	)
	err := row.Scan(
		&e.ID, &e.Date, &e.Credit, &e.Debit, &e.RunningBalance, &e.CurrencyCode,
		&e.AmountOriginal, &e.AmountBase, &e.ExchangeRateSnapshot,
		&correlationID, &kind, &batchID,
		&e.CategoryRef, &e.PaymentMethodRef, &e.ActorRef, &e.Description,
		&refType, &refID, &metadata, &e.CorrectionCount, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Date = domain.NormalizeDate(e.Date)
	e.CorrelationID = deref(correlationID)
	e.CorrelationKind = domain.CorrelationKind(deref(kind))
	e.BatchID = deref(batchID)
	if refType != nil && refID != nil {
		e.Reference = &domain.Reference{Type: *refType, ID: *refID}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of entry %d: %w", e.ID, err)
		}
	}
	return &e, nil
}

func optionalEntry(e *domain.LedgerEntry, err error) (*domain.LedgerEntry, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func notFound(err error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %d", domain.ErrEntryNotFound, id)
	}
	return err
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

func referenceArgs(ref *domain.Reference) (*string, *string) {
	if ref.IsZero() {
		return nil, nil
	}
	return &ref.Type, &ref.ID
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
