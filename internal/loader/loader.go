// Package loader implements the dual-sink write discipline: both sinks are
// attempted concurrently and judged independently, with no cross-sink
// transaction. The live sink favors freshness (bounded in-place retry, then
// drop); the analytical sink favors durability (failed rows are retained and
// re-submitted with the next batch, safe under upsert-by-key).
package loader

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"marketpulse/internal/application/ports"
	"marketpulse/internal/domain/models"
)

// liveRetries is the in-place retry budget per record on the live sink.
const liveRetries = 1

// SnapshotWriter loads batches for one source. It is owned by that source's
// runner; cycles are strictly sequential, so no locking is needed around the
// pending buffer.
type SnapshotWriter struct {
	live         ports.LiveStorePort
	analytical   ports.AnalyticalStorePort
	pendingLimit int
	pending      models.Batch
	log          *zap.Logger
}

// NewSnapshotWriter creates a writer for one source.
func NewSnapshotWriter(live ports.LiveStorePort, analytical ports.AnalyticalStorePort, pendingLimit int, log *zap.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		live:         live,
		analytical:   analytical,
		pendingLimit: pendingLimit,
		log:          log,
	}
}

// PendingRows reports how many analytical rows await re-submission.
func (w *SnapshotWriter) PendingRows() int { return len(w.pending) }

// Load writes the batch to both sinks concurrently and returns once both
// results are known. A failure in one sink never prevents or rolls back the
// other.
func (w *SnapshotWriter) Load(ctx context.Context, batch models.Batch) models.LoadOutcome {
	var outcome models.LoadOutcome
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		outcome.Live = w.loadLive(ctx, batch)
	}()
	go func() {
		defer wg.Done()
		outcome.Analytical = w.loadAnalytical(ctx, batch)
	}()
	wg.Wait()

	return outcome
}

// loadLive upserts records one at a time: the live store answers "most recent
// state", so a record that keeps failing is dropped rather than allowed to
// block the cycle.
func (w *SnapshotWriter) loadLive(ctx context.Context, batch models.Batch) models.SinkResult {
	if len(batch) == 0 {
		return models.SinkResult{Status: models.SinkSuccess}
	}

	written, failed := 0, 0
	var sample error
	for _, snap := range batch {
		var err error
		for attempt := 0; attempt <= liveRetries; attempt++ {
			if err = w.live.UpsertSnapshot(ctx, snap); err == nil {
				break
			}
		}
		if err != nil {
			failed++
			if sample == nil {
				sample = err
			}
			continue
		}
		written++
	}

	switch {
	case failed == 0:
		return models.SinkResult{Status: models.SinkSuccess, RowsWritten: written}
	case written == 0:
		w.log.Warn("live sink write failed", zap.Int("rows", failed), zap.Error(sample))
		return models.SinkResult{Status: models.SinkFailure, RowsFailed: failed, Err: sample.Error()}
	default:
		w.log.Warn("live sink write partial",
			zap.Int("written", written), zap.Int("failed", failed), zap.Error(sample))
		return models.SinkResult{
			Status: models.SinkPartial, RowsWritten: written, RowsFailed: failed, Err: sample.Error(),
		}
	}
}

// loadAnalytical re-submits any rows retained from prior failed cycles ahead
// of the new batch. On failure everything is retained again, bounded to the
// most recent pendingLimit rows.
func (w *SnapshotWriter) loadAnalytical(ctx context.Context, batch models.Batch) models.SinkResult {
	combined := batch
	if len(w.pending) > 0 {
		combined = append(append(models.Batch{}, w.pending...), batch...)
	}
	if len(combined) == 0 {
		return models.SinkResult{Status: models.SinkSuccess}
	}

	written, err := w.analytical.UpsertSnapshots(ctx, combined)
	if err != nil {
		w.retain(combined)
		w.log.Warn("analytical sink write failed, rows retained",
			zap.Int("rows", len(combined)), zap.Int("retained", len(w.pending)), zap.Error(err))
		return models.SinkResult{Status: models.SinkFailure, RowsFailed: len(combined), Err: err.Error()}
	}

	w.pending = nil
	return models.SinkResult{Status: models.SinkSuccess, RowsWritten: written}
}

func (w *SnapshotWriter) retain(rows models.Batch) {
	if w.pendingLimit > 0 && len(rows) > w.pendingLimit {
		rows = rows[len(rows)-w.pendingLimit:]
	}
	w.pending = rows
}
