package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/application/ports"
)

// RollupRunner periodically materializes OHLC candles in the analytical
// store. It runs beside the source runners but owns no source budget: a
// failed pass is logged and retried on the next tick, never backed off.
type RollupRunner struct {
	store    ports.AnalyticalStorePort
	clock    Clock
	interval time.Duration
	log      *zap.Logger
}

// NewRollupRunner creates a rollup loop. An interval of zero disables it.
func NewRollupRunner(store ports.AnalyticalStorePort, clock Clock, interval time.Duration, log *zap.Logger) *RollupRunner {
	return &RollupRunner{
		store:    store,
		clock:    clock,
		interval: interval,
		log:      log,
	}
}

// Run executes rollup passes until ctx is cancelled. The first pass waits a
// full interval so the ingest runners have written something to aggregate.
func (r *RollupRunner) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.log.Info("candle rollup loop started", zap.Duration("interval", r.interval))
	defer r.log.Info("candle rollup loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.interval):
		}
		if err := r.store.RollupCandles(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("candle rollup failed", zap.Error(err))
			continue
		}
		r.log.Debug("candle rollup completed")
	}
}
