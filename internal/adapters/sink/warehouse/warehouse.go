// Package warehouse implements the analytical store on PostgreSQL as an
// append-only periodic-snapshot table. Writes upsert on the natural key
// (source, entity_key, observed_at) so re-submitted batches overwrite rather
// than duplicate.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"marketpulse/internal/application/ports"
	"marketpulse/internal/config"
	"marketpulse/internal/domain/models"
)

// Adapter implements the AnalyticalStorePort interface for PostgreSQL.
type Adapter struct {
	db    *sql.DB
	table string
}

// New opens the pool and verifies connectivity.
func New(cfg config.DatabaseConfig) (ports.AnalyticalStorePort, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewWithDB(db, cfg.Table), nil
}

// NewWithDB wraps an existing handle; used by tests.
func NewWithDB(db *sql.DB, table string) *Adapter {
	if table == "" {
		table = "snapshots"
	}
	return &Adapter{db: db, table: table}
}

// UpsertSnapshots writes a batch inside one transaction. A conflict on the
// natural key overwrites the measures, keeping retries idempotent.
func (a *Adapter) UpsertSnapshots(ctx context.Context, batch models.Batch) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (source, entity_key, observed_at, measures)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, entity_key, observed_at)
		DO UPDATE SET measures = EXCLUDED.measures`, a.table)

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &models.SinkError{Kind: models.SinkConnection, Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, &models.SinkError{Kind: models.SinkConnection, Err: err}
	}
	defer stmt.Close()

	written := 0
	for _, snap := range batch {
		measures, err := json.Marshal(snap.Measures)
		if err != nil {
			return written, &models.SinkError{Kind: models.SinkConstraint, Err: err}
		}
		if _, err := stmt.ExecContext(ctx, snap.Source, snap.EntityKey, snap.ObservedAt, measures); err != nil {
			return written, &models.SinkError{Kind: models.SinkConstraint, Err: err}
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, &models.SinkError{Kind: models.SinkConnection, Err: err}
	}
	return written, nil
}

// GetHistory returns snapshots for one entity within [from, to], newest
// first, bounded by limit when positive.
func (a *Adapter) GetHistory(ctx context.Context, source, entityKey string, from, to time.Time, limit int) ([]models.CanonicalSnapshot, error) {
	query := fmt.Sprintf(`SELECT source, entity_key, observed_at, measures
		FROM %s
		WHERE source = $1 AND entity_key = $2 AND observed_at BETWEEN $3 AND $4
		ORDER BY observed_at DESC`, a.table)
	args := []any{source, entityKey, from, to}
	if limit > 0 {
		query += " LIMIT $5"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.SinkError{Kind: models.SinkConnection, Err: err}
	}
	defer rows.Close()

	var snaps []models.CanonicalSnapshot
	for rows.Next() {
		var snap models.CanonicalSnapshot
		var measures []byte
		if err := rows.Scan(&snap.Source, &snap.EntityKey, &snap.ObservedAt, &measures); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(measures, &snap.Measures); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// rollupTimeframes orders the candle materializations from finest to
// coarsest. Lookbacks overlap several buckets so late-arriving snapshots
// self-heal on the next pass.
var rollupTimeframes = []struct {
	name     string
	seconds  int64
	lookback time.Duration
}{
	{"1m", 60, 5 * time.Minute},
	{"5m", 300, time.Hour},
	{"15m", 900, 4 * time.Hour},
	{"1h", 3600, 12 * time.Hour},
	{"4h", 14400, 48 * time.Hour},
	{"1d", 86400, 240 * time.Hour},
}

// RollupCandles recomputes OHLC candles for every timeframe directly from the
// snapshot table over the timeframe's lookback window. Only snapshots carrying
// a close measure participate; bucket conflicts overwrite.
func (a *Adapter) RollupCandles(ctx context.Context) error {
	query := fmt.Sprintf(`INSERT INTO candles (source, entity_key, timeframe, bucket, open, high, low, close, samples)
		SELECT source, entity_key, $1,
			to_timestamp(floor(extract(epoch FROM observed_at) / $2) * $2) AS bucket,
			(array_agg((measures->>'close')::double precision ORDER BY observed_at ASC))[1],
			MAX((measures->>'close')::double precision),
			MIN((measures->>'close')::double precision),
			(array_agg((measures->>'close')::double precision ORDER BY observed_at DESC))[1],
			COUNT(*)
		FROM %s
		WHERE measures ? 'close' AND observed_at >= $3
		GROUP BY source, entity_key, 4
		ON CONFLICT (source, entity_key, timeframe, bucket)
		DO UPDATE SET open = EXCLUDED.open, high = EXCLUDED.high,
			low = EXCLUDED.low, close = EXCLUDED.close, samples = EXCLUDED.samples`, a.table)

	for _, tf := range rollupTimeframes {
		cutoff := time.Now().UTC().Add(-tf.lookback)
		if _, err := a.db.ExecContext(ctx, query, tf.name, tf.seconds, cutoff); err != nil {
			return &models.SinkError{Kind: models.SinkConstraint, Err: err}
		}
	}
	return nil
}

// Close closes the pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}
