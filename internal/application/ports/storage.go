package ports

import (
	"context"
	"time"

	"marketpulse/internal/domain/models"
)

// AnalyticalStorePort is the durable system of record. Writes upsert by the
// natural key (source, entity_key, observed_at), which is what makes
// re-submitting a previously failed batch safe.
type AnalyticalStorePort interface {
	// UpsertSnapshots writes a batch, overwriting rows that share a natural
	// key. Returns the number of rows attempted successfully.
	UpsertSnapshots(ctx context.Context, batch models.Batch) (int, error)

	// GetHistory returns snapshots for one entity within [from, to], newest
	// first, bounded by limit when positive.
	GetHistory(ctx context.Context, source, entityKey string, from, to time.Time, limit int) ([]models.CanonicalSnapshot, error)

	// RollupCandles materializes OHLC candles for every timeframe from the
	// recent snapshot history. Idempotent: buckets are upserted by key, so
	// re-running over an overlapping window overwrites rather than duplicates.
	RollupCandles(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}
