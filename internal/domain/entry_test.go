package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestNormalizeDate(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"utc with time", time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"keeps local calendar day", time.Date(2024, 3, 2, 1, 0, 0, 0, seoul), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"already normalized", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDate(tt.in); !got.Equal(tt.want) {
				t.Fatalf("NormalizeDate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLedgerEntry_SignedBase(t *testing.T) {
	credit := &LedgerEntry{Credit: decimal.NewFromInt(10), AmountBase: decimal.NewFromInt(13205)}
	debit := &LedgerEntry{Debit: decimal.NewFromInt(300), AmountBase: decimal.NewFromInt(300)}

	if got := credit.SignedBase(); !got.Equal(decimal.NewFromInt(13205)) {
		t.Fatalf("credit contributes %s", got)
	}
	if got := debit.SignedBase(); !got.Equal(decimal.NewFromInt(-300)) {
		t.Fatalf("debit contributes %s", got)
	}
}

func TestLedgerEntry_BeforeUsesIDOnSameDate(t *testing.T) {
	day1 := NormalizeDate(testTime)
	day2 := day1.AddDate(0, 0, 1)

	a := &LedgerEntry{ID: 1, Date: day1}
	b := &LedgerEntry{ID: 3, Date: day1}
	c := &LedgerEntry{ID: 2, Date: day2}

	if !a.Before(b) || b.Before(a) {
		t.Fatalf("same-date entries must order by id")
	}
	if !b.Before(c) {
		t.Fatalf("earlier date must sort first regardless of id")
	}
}

func TestLedgerEntry_CloneIsDeep(t *testing.T) {
	e := &LedgerEntry{
		ID:        7,
		Reference: &Reference{Type: ReferenceTypePurchase, ID: "p-1"},
		Metadata:  map[string]any{"k": "v"},
	}

	c := e.Clone()
	c.Reference.ID = "p-2"
	c.Metadata["k"] = "changed"

	if e.Reference.ID != "p-1" || e.Metadata["k"] != "v" {
		t.Fatalf("clone shares state with original: %+v", e)
	}
}

func TestLedgerEntry_ApplyAmounts(t *testing.T) {
	e := &LedgerEntry{}
	e.ApplyAmounts(decimal.Zero, decimal.NewFromInt(40), "USD", decimal.RequireFromString("1320.5"), decimal.NewFromInt(52820))

	if !e.AmountOriginal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected original amount 40, got %s", e.AmountOriginal)
	}
	if e.IsCredit() {
		t.Fatalf("expected debit entry")
	}
}
