package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

func TestLinkedPostingUseCase_InternalConsumptionNetsToZero(t *testing.T) {
	h := newHarness(t, withThresholds(usecase.AlertThresholds{HighExpense: dec("100")}))
	ctx := context.Background()
	h.post(t, d1, "1000", "")

	res, err := h.linked.PostInternalConsumption(ctx, usecase.InternalConsumptionInput{
		Date:                 d2,
		Amount:               dec("400"),
		PaymentMethodRef:     "cash",
		InventoryCategoryRef: "inventory",
		ExpenseCategoryRef:   "kitchen",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.CorrelationID)
	assert.Equal(t, res.CorrelationID, res.Primary.CorrelationID)
	assert.Equal(t, res.CorrelationID, res.Secondary.CorrelationID)
	assert.Equal(t, domain.CorrelationKindInternalConsumption, res.Primary.CorrelationKind)
	assert.True(t, res.Primary.IsCredit())
	assert.False(t, res.Secondary.IsCredit())
	assert.Equal(t, "1000", res.TailBalance.String())
	assert.Equal(t, []string{"1000", "1400", "1000"}, h.balances(t))

	// the debit leg of a net-zero pair is not an expense
	assert.Empty(t, h.notifier.kinds())
	h.requireConsistent(t)
}

func TestLinkedPostingUseCase_RollsBackBothLegs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.post(t, d1, "1000", "")

	tests := []struct {
		name      string
		primary   domain.PostingRequest
		secondary domain.PostingRequest
		kind      domain.CorrelationKind
		want      error
	}{
		{
			name:      "second leg fails",
			primary:   domain.PostingRequest{Date: d2, Credit: dec("50")},
			secondary: domain.PostingRequest{Date: d2, Debit: dec("50"), CurrencyCode: "JPY"},
			kind:      domain.CorrelationKindInternalConsumption,
			want:      domain.ErrCurrencyNotFound,
		},
		{
			name:      "legs do not cancel",
			primary:   domain.PostingRequest{Date: d2, Credit: dec("50")},
			secondary: domain.PostingRequest{Date: d2, Debit: dec("40")},
			kind:      domain.CorrelationKindInternalConsumption,
			want:      domain.ErrUnbalancedLink,
		},
		{
			name:      "legs on different dates",
			primary:   domain.PostingRequest{Date: d2, Credit: dec("50")},
			secondary: domain.PostingRequest{Date: d3, Debit: dec("50")},
			kind:      domain.CorrelationKindInternalConsumption,
			want:      domain.ErrUnbalancedLink,
		},
		{
			name:      "sale must raise cash",
			primary:   domain.PostingRequest{Date: d2, Credit: dec("50")},
			secondary: domain.PostingRequest{Date: d2, Debit: dec("60")},
			kind:      domain.CorrelationKindInventorySale,
			want:      domain.ErrUnbalancedLink,
		},
		{
			name:      "unknown kind",
			primary:   domain.PostingRequest{Date: d2, Credit: dec("50")},
			secondary: domain.PostingRequest{Date: d2, Debit: dec("50")},
			kind:      "gift",
			want:      domain.ErrInvalidCorrelation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.linked.PostLinked(ctx, tt.primary, tt.secondary, tt.kind)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, []string{"1000"}, h.balances(t))
		})
	}
}

func TestLinkedPostingUseCase_ConvertedLegsNetInBase(t *testing.T) {
	h := newHarness(t)
	h.addCurrency(t, "USD", "1300")
	ctx := context.Background()

	res, err := h.linked.PostLinked(ctx,
		domain.PostingRequest{Date: d1, Credit: dec("2"), CurrencyCode: "USD"},
		domain.PostingRequest{Date: d1, Debit: dec("2600")},
		domain.CorrelationKindInternalConsumption,
	)
	require.NoError(t, err)
	assert.True(t, res.TailBalance.IsZero())
}

func TestLinkedPostingUseCase_DeleteRemovesWholeGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.post(t, d1, "1000", "")

	res, err := h.linked.PostLinked(ctx,
		domain.PostingRequest{Date: d2, Credit: dec("700")},
		domain.PostingRequest{Date: d2, Debit: dec("200")},
		domain.CorrelationKindInventorySale,
	)
	require.NoError(t, err)
	assert.Equal(t, "1500", res.TailBalance.String())

	del, err := h.posting.Delete(ctx, res.Secondary.ID)
	require.NoError(t, err)
	assert.Len(t, del.Deleted, 2)
	assert.Equal(t, "1000", del.TailBalance.String())
	assert.Equal(t, []string{"1000"}, h.balances(t))
}

func TestLinkedPostingUseCase_OneSidedChangesAreRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.post(t, d1, "1000", "")

	res, err := h.linked.PostInternalConsumption(ctx, usecase.InternalConsumptionInput{
		Date:                 d1,
		Amount:               dec("300"),
		PaymentMethodRef:     "cash",
		InventoryCategoryRef: "inventory",
		ExpenseCategoryRef:   "kitchen",
	})
	require.NoError(t, err)
	before := h.balances(t)

	t.Run("correcting one leg", func(t *testing.T) {
		_, err := h.correction.CorrectPosting(ctx, usecase.CorrectionInput{
			EntryID:  res.Secondary.ID,
			NewDebit: dec("500"),
			Reason:   "miscounted",
		})
		assert.ErrorIs(t, err, domain.ErrUnbalancedLink)
	})

	t.Run("moving one leg", func(t *testing.T) {
		_, err := h.posting.Update(ctx, usecase.UpdateEntryInput{
			ID:             res.Primary.ID,
			PostingRequest: domain.PostingRequest{Date: d3, Credit: dec("300")},
		})
		assert.ErrorIs(t, err, domain.ErrUnbalancedLink)
	})

	t.Run("changing one leg amount", func(t *testing.T) {
		_, err := h.posting.Update(ctx, usecase.UpdateEntryInput{
			ID:             res.Primary.ID,
			PostingRequest: domain.PostingRequest{Date: d1, Credit: dec("250")},
		})
		assert.ErrorIs(t, err, domain.ErrUnbalancedLink)
	})

	assert.Equal(t, before, h.balances(t))
	h.requireConsistent(t)

	updated, err := h.posting.Update(ctx, usecase.UpdateEntryInput{
		ID:             res.Secondary.ID,
		PostingRequest: domain.PostingRequest{Date: d1, Debit: dec("300"), Description: "staff lunch"},
	})
	require.NoError(t, err)
	assert.Equal(t, "staff lunch", updated.Entry.Description)
	h.requireConsistent(t)
}
