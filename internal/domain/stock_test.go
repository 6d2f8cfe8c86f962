package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStockEvent_Validate(t *testing.T) {
	base := func() StockEvent {
		return StockEvent{
			ItemRef:   "flour-20kg",
			Quantity:  decimal.NewFromInt(5),
			UnitPrice: decimal.NewFromInt(32000),
			Date:      testTime,
		}
	}

	tests := []struct {
		name    string
		kind    StockMovementKind
		mutate  func(e *StockEvent)
		wantErr error
	}{
		{"purchase ok", StockMovementPurchase, func(e *StockEvent) {}, nil},
		{"missing item", StockMovementSale, func(e *StockEvent) { e.ItemRef = "" }, ErrInvalidStockEvent},
		{"zero quantity", StockMovementPurchase, func(e *StockEvent) { e.Quantity = decimal.Zero }, ErrInvalidStockEvent},
		{"priced kind without price", StockMovementSale, func(e *StockEvent) { e.UnitPrice = decimal.Zero }, ErrInvalidAmount},
		{"damage without price", StockMovementDamage, func(e *StockEvent) { e.UnitPrice = decimal.Zero }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := base()
			tt.mutate(&ev)
			err := ev.Validate(tt.kind)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStockMovementKind_PostsToLedger(t *testing.T) {
	if StockMovementDamage.PostsToLedger() {
		t.Fatalf("damage write-downs must not post to the ledger")
	}
	for _, k := range []StockMovementKind{StockMovementPurchase, StockMovementSale, StockMovementInternalConsumption, StockMovementAdjustment} {
		if !k.PostsToLedger() {
			t.Fatalf("%s should post to the ledger", k)
		}
	}
}

func TestNewCorrectionRecord_Delta(t *testing.T) {
	before := &LedgerEntry{ID: 4, Credit: decimal.NewFromInt(1000), AmountBase: decimal.NewFromInt(1000), CurrencyCode: "KRW"}
	after := before.Clone()
	after.ApplyAmounts(decimal.NewFromInt(1200), decimal.Zero, "KRW", decimal.NewFromInt(1), decimal.NewFromInt(1200))

	rec := NewCorrectionRecord("c-1", before, after, "invoice fix", "chef", testTime)

	if !rec.DeltaBase.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected delta 200, got %s", rec.DeltaBase)
	}
	if rec.EntryID != 4 || !rec.OldCredit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// credit 1000 turned into debit 500 swings the balance by -1500
	flipped := before.Clone()
	flipped.ApplyAmounts(decimal.Zero, decimal.NewFromInt(500), "KRW", decimal.NewFromInt(1), decimal.NewFromInt(500))
	rec = NewCorrectionRecord("c-2", before, flipped, "sign fix", "chef", testTime)
	if !rec.DeltaBase.Equal(decimal.NewFromInt(-1500)) {
		t.Fatalf("expected delta -1500, got %s", rec.DeltaBase)
	}
}
