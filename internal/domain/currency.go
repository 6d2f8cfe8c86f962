package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConversionPrecision is the number of fractional digits kept when dividing
// by an exchange rate.
const ConversionPrecision int32 = 16

// Currency is a unit of money. Its rate reads "1 unit of this currency =
// rate units of base currency", so converting to base always multiplies and
// converting from base always divides. The rate is only reachable through
// ToBase, FromBase and Rate.
type Currency struct {
	Code      string
	Symbol    string
	Name      string
	IsBase    bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	rate decimal.Decimal
}

// NewCurrency builds a non-base, active currency.
func NewCurrency(code, symbol, name string, rate decimal.Decimal) (*Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := ValidateCurrency(code); err != nil {
		return nil, err
	}
	c := &Currency{
		Code:     code,
		Symbol:   symbol,
		Name:     name,
		IsActive: true,
	}
	if err := c.SetRate(rate); err != nil {
		return nil, err
	}
	return c, nil
}

// RestoreCurrency rebuilds a currency from storage without validation.
func RestoreCurrency(code, symbol, name string, rate decimal.Decimal, isBase, isActive bool, createdAt, updatedAt time.Time) *Currency {
	return &Currency{
		Code:      code,
		Symbol:    symbol,
		Name:      name,
		IsBase:    isBase,
		IsActive:  isActive,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		rate:      rate,
	}
}

// Rate returns the stored rate, used for persistence and entry snapshots.
func (c *Currency) Rate() decimal.Decimal {
	return c.rate
}

// ToBase converts an amount in this currency to base currency.
func (c *Currency) ToBase(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: cannot convert negative amount %s", ErrInvalidAmount, amount)
	}
	if c.IsBase {
		return amount, nil
	}
	if !c.rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s has rate %s", ErrInvalidExchangeRate, c.Code, c.rate)
	}
	return amount.Mul(c.rate), nil
}

// FromBase converts a base-currency amount into this currency. Negative
// amounts are valid.
func (c *Currency) FromBase(amountBase decimal.Decimal) (decimal.Decimal, error) {
	if c.rate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s has zero rate", ErrDivisionByZero, c.Code)
	}
	if c.IsBase {
		return amountBase, nil
	}
	return amountBase.DivRound(c.rate, ConversionPrecision), nil
}

// SetRate replaces the rate. A base currency accepts only 1.
func (c *Currency) SetRate(rate decimal.Decimal) error {
	if c.IsBase && !rate.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s must keep rate 1, got %s", ErrImmutableBaseRate, c.Code, rate)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrNonPositiveRate, rate)
	}
	c.rate = rate
	return nil
}

// MarkBase makes c the base currency: rate pinned to 1 and active.
func (c *Currency) MarkBase() {
	c.IsBase = true
	c.IsActive = true
	c.rate = decimal.NewFromInt(1)
}

// Rebase re-expresses the rate against a new base currency worth
// newBaseRate units of the current base. A demoted base leaves with
// 1/newBaseRate.
func (c *Currency) Rebase(newBaseRate decimal.Decimal) error {
	if !newBaseRate.IsPositive() {
		return fmt.Errorf("%w: new base rate %s", ErrNonPositiveRate, newBaseRate)
	}
	c.IsBase = false
	c.rate = c.rate.DivRound(newBaseRate, ConversionPrecision)
	return nil
}

// RateFromBaseQuote turns a "1 BASE = quote FOREIGN" feed value into the
// stored "1 FOREIGN = rate BASE" form.
func RateFromBaseQuote(quote decimal.Decimal) (decimal.Decimal, error) {
	if quote.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: zero quote", ErrDivisionByZero)
	}
	if quote.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative quote %s", ErrNonPositiveRate, quote)
	}
	return decimal.NewFromInt(1).DivRound(quote, ConversionPrecision), nil
}
