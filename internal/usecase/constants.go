package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultRateCacheTTL is how long a fetched rate quote is reused
	DefaultRateCacheTTL = time.Hour

	// MaxBatchLines caps a multi-line submission
	MaxBatchLines = 200

	rateCacheKeyPrefix = "rates:"
)
