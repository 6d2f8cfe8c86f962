package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

const currencyColumns = `code, symbol, name, exchange_rate, is_base, is_active, created_at, updated_at`

// CurrencyRepository implements usecase.CurrencyRepository.
type CurrencyRepository struct {
	db DBTX
}

// NewCurrencyRepository creates a new CurrencyRepository.
func NewCurrencyRepository(db DBTX) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

func (r *CurrencyRepository) Create(ctx context.Context, tx usecase.Transaction, c *domain.Currency) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO currencies (`+currencyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.Code, c.Symbol, c.Name, c.Rate(), c.IsBase, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "currencies_pkey" {
		return fmt.Errorf("%w: %s", domain.ErrCurrencyExists, c.Code)
	}
	return err
}

func (r *CurrencyRepository) Save(ctx context.Context, tx usecase.Transaction, c *domain.Currency) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE currencies SET symbol = $2, name = $3, exchange_rate = $4,
			is_base = $5, is_active = $6, updated_at = $7
		WHERE code = $1`,
		c.Code, c.Symbol, c.Name, c.Rate(), c.IsBase, c.IsActive, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save currency %s: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCurrencyNotFound, c.Code)
	}
	return nil
}

func (r *CurrencyRepository) GetByCode(ctx context.Context, tx usecase.Transaction, code string) (*domain.Currency, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	c, err := scanCurrency(q.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE code = $1 FOR UPDATE`, code))
	return currencyOrNotFound(c, err, code)
}

func (r *CurrencyRepository) GetBase(ctx context.Context, tx usecase.Transaction) (*domain.Currency, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	c, err := scanCurrency(q.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE is_base`))
	return currencyOrNotFound(c, err, "base")
}

// ListForUpdate locks every currency row, so base changes serialize.
func (r *CurrencyRepository) ListForUpdate(ctx context.Context, tx usecase.Transaction) ([]*domain.Currency, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return queryCurrencies(ctx, q, `SELECT `+currencyColumns+` FROM currencies ORDER BY code FOR UPDATE`)
}

func (r *CurrencyRepository) Get(ctx context.Context, code string) (*domain.Currency, error) {
	c, err := scanCurrency(r.db.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE code = $1`, code))
	return currencyOrNotFound(c, err, code)
}

func (r *CurrencyRepository) List(ctx context.Context) ([]*domain.Currency, error) {
	return queryCurrencies(ctx, r.db, `SELECT `+currencyColumns+` FROM currencies ORDER BY code`)
}

func queryCurrencies(ctx context.Context, q DBTX, sql string) ([]*domain.Currency, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query currencies: %w", err)
	}
	defer rows.Close()

	currencies := []*domain.Currency{}
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

func scanCurrency(row pgx.Row) (*domain.Currency, error) {
	var (
		c    domain.Currency
		rate decimal.Decimal
	)
	if err := row.Scan(&c.Code, &c.Symbol, &c.Name, &rate, &c.IsBase, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return domain.RestoreCurrency(c.Code, c.Symbol, c.Name, rate, c.IsBase, c.IsActive, c.CreatedAt, c.UpdatedAt), nil
}

func currencyOrNotFound(c *domain.Currency, err error, code string) (*domain.Currency, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCurrencyNotFound, code)
	}
	return c, err
}
