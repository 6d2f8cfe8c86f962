package postgres

import (
	"context"
	"fmt"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// CorrectionRepository implements usecase.CorrectionRepository.
type CorrectionRepository struct {
	db DBTX
}

// NewCorrectionRepository creates a new CorrectionRepository.
func NewCorrectionRepository(db DBTX) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

func (r *CorrectionRepository) Create(ctx context.Context, tx usecase.Transaction, rec *domain.CorrectionRecord) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO ledger_corrections (
			id, entry_id,
			old_credit, old_debit, old_currency_code, old_amount_base,
			new_credit, new_debit, new_currency_code, new_amount_base,
			delta_base, reason, actor_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.EntryID,
		rec.OldCredit, rec.OldDebit, rec.OldCurrencyCode, rec.OldAmountBase,
		rec.NewCredit, rec.NewDebit, rec.NewCurrencyCode, rec.NewAmountBase,
		rec.DeltaBase, rec.Reason, rec.ActorRef, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert correction for entry %d: %w", rec.EntryID, err)
	}
	return nil
}

func (r *CorrectionRepository) ListByEntry(ctx context.Context, entryID int64) ([]*domain.CorrectionRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, entry_id,
			old_credit, old_debit, old_currency_code, old_amount_base,
			new_credit, new_debit, new_currency_code, new_amount_base,
			delta_base, reason, actor_ref, created_at
		FROM ledger_corrections
		WHERE entry_id = $1
		ORDER BY created_at, id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	records := []*domain.CorrectionRecord{}
	for rows.Next() {
		var rec domain.CorrectionRecord
		if err := rows.Scan(
			&rec.ID, &rec.EntryID,
			&rec.OldCredit, &rec.OldDebit, &rec.OldCurrencyCode, &rec.OldAmountBase,
			&rec.NewCredit, &rec.NewDebit, &rec.NewCurrencyCode, &rec.NewAmountBase,
			&rec.DeltaBase, &rec.Reason, &rec.ActorRef, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
