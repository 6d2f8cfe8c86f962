package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCurrency(t *testing.T, code, rate string) *Currency {
	t.Helper()
	c, err := NewCurrency(code, "", code, decimal.RequireFromString(rate))
	require.NoError(t, err)
	return c
}

func baseKRW() *Currency {
	c := RestoreCurrency("KRW", "₩", "Korean won", decimal.NewFromInt(1), true, true, testTime, testTime)
	return c
}

func TestCurrency_ToBaseMultipliesByRate(t *testing.T) {
	usd := mustCurrency(t, "USD", "1320.5")

	got, err := usd.ToBase(decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(13205)), "got %s", got)
}

func TestCurrency_FromBaseDividesByRate(t *testing.T) {
	usd := mustCurrency(t, "USD", "1320.5")

	got, err := usd.FromBase(decimal.NewFromInt(13205))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(10)), "got %s", got)

	neg, err := usd.FromBase(decimal.NewFromInt(-13205))
	require.NoError(t, err)
	assert.True(t, neg.Equal(decimal.NewFromInt(-10)), "got %s", neg)
}

func TestCurrency_BaseIsIdentity(t *testing.T) {
	krw := baseKRW()

	got, err := krw.ToBase(decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(5000)))

	back, err := krw.FromBase(decimal.NewFromInt(-250))
	require.NoError(t, err)
	assert.True(t, back.Equal(decimal.NewFromInt(-250)))
}

func TestCurrency_ToBaseRejectsNegative(t *testing.T) {
	usd := mustCurrency(t, "USD", "1320.5")

	_, err := usd.ToBase(decimal.NewFromInt(-1))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCurrency_FromBaseZeroRate(t *testing.T) {
	broken := RestoreCurrency("USD", "$", "US dollar", decimal.Zero, false, true, testTime, testTime)

	_, err := broken.FromBase(decimal.NewFromInt(100))
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}

	_, err = broken.ToBase(decimal.NewFromInt(100))
	if !errors.Is(err, ErrInvalidExchangeRate) {
		t.Fatalf("expected ErrInvalidExchangeRate, got %v", err)
	}
}

func TestCurrency_RoundTrip(t *testing.T) {
	tests := []struct {
		rate   string
		amount string
	}{
		{"1320.5", "10"},
		{"1320.5", "0.01"},
		{"9.1234", "12345.67"},
		{"0.0075", "98765.4321"},
		{"1", "42"},
		{"1478.33", "3.33"},
	}

	tolerance := decimal.New(1, -10)
	for _, tt := range tests {
		t.Run(tt.rate+"/"+tt.amount, func(t *testing.T) {
			c := mustCurrency(t, "EUR", tt.rate)
			x := decimal.RequireFromString(tt.amount)

			base, err := c.ToBase(x)
			require.NoError(t, err)
			back, err := c.FromBase(base)
			require.NoError(t, err)

			if back.Sub(x).Abs().GreaterThan(tolerance) {
				t.Fatalf("round trip drifted: %s -> %s -> %s", x, base, back)
			}
		})
	}
}

func TestCurrency_SetRate(t *testing.T) {
	usd := mustCurrency(t, "USD", "1300")

	require.NoError(t, usd.SetRate(decimal.RequireFromString("1350.25")))
	assert.True(t, usd.Rate().Equal(decimal.RequireFromString("1350.25")))

	if err := usd.SetRate(decimal.Zero); !errors.Is(err, ErrNonPositiveRate) {
		t.Fatalf("expected ErrNonPositiveRate, got %v", err)
	}

	krw := baseKRW()
	if err := krw.SetRate(decimal.NewFromInt(2)); !errors.Is(err, ErrImmutableBaseRate) {
		t.Fatalf("expected ErrImmutableBaseRate, got %v", err)
	}
	require.NoError(t, krw.SetRate(decimal.NewFromInt(1)))
}

func TestCurrency_MarkBasePinsRate(t *testing.T) {
	usd := mustCurrency(t, "USD", "1320.5")
	usd.IsActive = false

	usd.MarkBase()

	assert.True(t, usd.IsBase)
	assert.True(t, usd.IsActive)
	assert.True(t, usd.Rate().Equal(decimal.NewFromInt(1)))
}

func TestRateFromBaseQuote_StoresReciprocal(t *testing.T) {
	// Feed says 1 KRW = 0.0008 USD, so 1 USD must be stored as 1250 KRW.
	rate, err := RateFromBaseQuote(decimal.RequireFromString("0.0008"))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1250)), "got %s", rate)

	usd := mustCurrency(t, "USD", rate.String())
	base, err := usd.ToBase(decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, base.Equal(decimal.NewFromInt(2500)), "got %s", base)
}

func TestRateFromBaseQuote_Guards(t *testing.T) {
	if _, err := RateFromBaseQuote(decimal.Zero); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := RateFromBaseQuote(decimal.NewFromInt(-2)); !errors.Is(err, ErrNonPositiveRate) {
		t.Fatalf("expected ErrNonPositiveRate, got %v", err)
	}
}

func TestNewCurrency_InvalidCode(t *testing.T) {
	for _, code := range []string{"XXXX", "X1X", ""} {
		if _, err := NewCurrency(code, "", "", decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("expected ErrInvalidCurrency for %q, got %v", code, err)
		}
	}

	if _, err := NewCurrency("LAK", "₭", "Lao Kip", decimal.RequireFromString("0.063")); err != nil {
		t.Fatalf("expected any well-formed code to be accepted, got %v", err)
	}
}

func TestCurrency_Rebase(t *testing.T) {
	krw := mustCurrency(t, "KRW", "1")
	krw.MarkBase()

	if err := krw.Rebase(decimal.NewFromInt(1250)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if krw.IsBase {
		t.Fatalf("rebased currency must not stay base")
	}
	if want := decimal.RequireFromString("0.0008"); !krw.Rate().Equal(want) {
		t.Fatalf("expected demoted base rate %s, got %s", want, krw.Rate())
	}

	if err := krw.Rebase(decimal.Zero); !errors.Is(err, ErrNonPositiveRate) {
		t.Fatalf("expected ErrNonPositiveRate, got %v", err)
	}
}
