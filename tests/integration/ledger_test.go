//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
	"github.com/iho/bistroledger/tests/testutil"
)

func TestBackdatedPostingPropagates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	l := testDB.NewLedger(ctx)

	_, err := l.Posting.Post(ctx, domain.PostingRequest{Date: testutil.Day(1), Credit: testutil.Dec("1000")})
	require.NoError(t, err)
	_, err = l.Posting.Post(ctx, domain.PostingRequest{Date: testutil.Day(3), Debit: testutil.Dec("300")})
	require.NoError(t, err)

	res, err := l.Posting.Post(ctx, domain.PostingRequest{Date: testutil.Day(2), Credit: testutil.Dec("200")})
	require.NoError(t, err)
	assert.Equal(t, "1200", res.Entry.RunningBalance.String())
	assert.Equal(t, "900", res.TailBalance.String())
	assert.Equal(t, []string{"1000", "1200", "900"}, l.Balances(ctx, t))

	report, err := l.Reports.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent, "violations: %+v", report.Violations)
}

func TestCorrectionPropagates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	l := testDB.NewLedger(ctx)

	first, err := l.Posting.Post(ctx, domain.PostingRequest{
		Date:      testutil.Day(1),
		Credit:    testutil.Dec("1000"),
		Reference: &domain.Reference{Type: "sale", ID: "receipt-1"},
	})
	require.NoError(t, err)
	_, err = l.Posting.Post(ctx, domain.PostingRequest{Date: testutil.Day(2), Debit: testutil.Dec("300")})
	require.NoError(t, err)

	res, err := l.Correction.CorrectPosting(ctx, usecase.CorrectionInput{
		Reference: &domain.Reference{Type: "sale", ID: "receipt-1"},
		NewCredit: testutil.Dec("1200"),
		Reason:    "till recount",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Entry.ID, res.Entry.ID)
	assert.Equal(t, "200", res.Record.DeltaBase.String())
	assert.Equal(t, []string{"1200", "900"}, l.Balances(ctx, t))

	records, err := l.Correction.ListCorrections(ctx, first.Entry.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "till recount", records[0].Reason)
}

func TestForeignCurrencySnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	l := testDB.NewLedger(ctx)

	_, err := l.Currencies.Create(ctx, usecase.CreateCurrencyInput{Code: "USD", Symbol: "$", Rate: testutil.Dec("1320.5")})
	require.NoError(t, err)

	res, err := l.Posting.Post(ctx, domain.PostingRequest{Date: testutil.Day(1), Credit: testutil.Dec("10"), CurrencyCode: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "13205", res.Entry.AmountBase.String())

	_, err = l.Currencies.SetRate(ctx, "USD", testutil.Dec("1400"))
	require.NoError(t, err)

	stored, err := l.Reports.GetEntry(ctx, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "1320.5", stored.ExchangeRateSnapshot.String())
	assert.Equal(t, "13205", stored.RunningBalance.String())

	_, err = l.Currencies.SetAsBase(ctx, "USD")
	require.NoError(t, err)

	all, err := l.Currencies.List(ctx)
	require.NoError(t, err)
	bases := 0
	for _, c := range all {
		if c.IsBase {
			bases++
		}
	}
	assert.Equal(t, 1, bases)
}
