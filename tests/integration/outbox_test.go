//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/tests/testutil"
)

func TestOutboxLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	l := testDB.NewLedger(ctx)

	_, err := l.Posting.Post(ctx, domain.PostingRequest{Date: testutil.Day(1), Credit: testutil.Dec("50")})
	require.NoError(t, err)

	events, err := l.Outbox.GetUnpublished(ctx, 100)
	require.NoError(t, err)

	var posted *domain.OutboxEvent
	for _, ev := range events {
		if ev.EventType == domain.EventTypeEntryPosted {
			posted = ev
		}
	}
	require.NotNil(t, posted, "expected an entry.posted event")
	assert.Equal(t, "50", posted.Payload["running_balance"])

	publishedAt := time.Now().Add(-time.Hour)
	require.NoError(t, l.Outbox.MarkPublished(ctx, posted.ID, publishedAt))
	require.NoError(t, l.Outbox.DeletePublished(ctx, time.Now()))

	remaining, err := l.Outbox.GetUnpublished(ctx, 100)
	require.NoError(t, err)
	for _, ev := range remaining {
		assert.NotEqual(t, posted.ID, ev.ID)
	}
}
