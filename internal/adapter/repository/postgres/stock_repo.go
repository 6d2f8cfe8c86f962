package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// StockMovementRepository implements usecase.StockMovementRepository.
type StockMovementRepository struct {
	db DBTX
}

// NewStockMovementRepository creates a new StockMovementRepository.
func NewStockMovementRepository(db DBTX) *StockMovementRepository {
	return &StockMovementRepository{db: db}
}

func (r *StockMovementRepository) Create(ctx context.Context, tx usecase.Transaction, m *domain.StockMovement) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO stock_movements (
			id, item_ref, kind, quantity, unit_price, movement_date,
			ledger_entry_id, correlation_id, reason, actor_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.ItemRef, string(m.Kind), m.Quantity, m.UnitPrice, m.Date,
		m.LedgerEntryID, nullString(m.CorrelationID), m.Reason, m.ActorRef, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// SumQuantityByEntry returns the net quantity of movements tied to an entry.
func (r *StockMovementRepository) SumQuantityByEntry(ctx context.Context, tx usecase.Transaction, entryID int64) (decimal.Decimal, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return decimal.Zero, err
	}
	var sum decimal.Decimal
	err = q.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE ledger_entry_id = $1`, entryID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum stock movements: %w", err)
	}
	return sum, nil
}

func (r *StockMovementRepository) ListByItem(ctx context.Context, itemRef string, limit, offset int) ([]*domain.StockMovement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, item_ref, kind, quantity, unit_price, movement_date,
			ledger_entry_id, correlation_id, reason, actor_ref, created_at
		FROM stock_movements
		WHERE item_ref = $1
		ORDER BY movement_date, created_at, id
		LIMIT $2 OFFSET $3`, itemRef, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query stock movements: %w", err)
	}
	defer rows.Close()

	movements := []*domain.StockMovement{}
	for rows.Next() {
		var (
			m             domain.StockMovement
			kind          string
			correlationID *string
		)
		if err := rows.Scan(
			&m.ID, &m.ItemRef, &kind, &m.Quantity, &m.UnitPrice, &m.Date,
			&m.LedgerEntryID, &correlationID, &m.Reason, &m.ActorRef, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Kind = domain.StockMovementKind(kind)
		m.Date = domain.NormalizeDate(m.Date)
		m.CorrelationID = deref(correlationID)
		movements = append(movements, &m)
	}
	return movements, rows.Err()
}
