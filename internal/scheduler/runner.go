package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"marketpulse/internal/application/ports"
	"marketpulse/internal/config"
	"marketpulse/internal/domain/models"
	"marketpulse/internal/loader"
	"marketpulse/internal/metrics"
	"marketpulse/internal/transform"
)

// Runner drives one source through Idle → Fetching → Transforming → Loading →
// Sleeping cycles. Each source has its own runner; they share nothing mutable
// except the metrics recorder. Cycles are strictly sequential within a
// source, so snapshots for an entity can never be written out of order.
type Runner struct {
	source  ports.SourcePort
	writer  *loader.SnapshotWriter
	rec     *metrics.Recorder
	clock   Clock
	limiter *rate.Limiter
	cfg     config.SchedulerConfig
	log     *zap.Logger

	budget  models.SourceBudget
	wakeAt  time.Time
	trigger chan struct{}
	state   atomic.Value // models.SourceState
}

// NewRunner creates a runner for one source. The limiter enforces the minimum
// interval floor regardless of configured cadence or manual triggers.
func NewRunner(source ports.SourcePort, writer *loader.SnapshotWriter, rec *metrics.Recorder,
	clock Clock, cfg config.SchedulerConfig, log *zap.Logger) *Runner {

	r := &Runner{
		source:  source,
		writer:  writer,
		rec:     rec,
		clock:   clock,
		limiter: rate.NewLimiter(rate.Every(cfg.MinIntervalFloor), 1),
		cfg:     cfg,
		log:     log.With(zap.String("source", source.Name())),
		budget:  models.SourceBudget{Interval: source.Interval()},
		trigger: make(chan struct{}, 1),
	}
	r.setState(models.StateIdle)
	return r
}

// Name returns the source identifier this runner owns.
func (r *Runner) Name() string { return r.source.Name() }

// State returns the runner's current position in the state machine.
func (r *Runner) State() models.SourceState {
	return r.state.Load().(models.SourceState)
}

func (r *Runner) setState(s models.SourceState) {
	r.state.Store(s)
	r.rec.SetState(r.source.Name(), s)
}

// Trigger requests an out-of-cadence cycle. It reports false when a cycle is
// already in flight; a second concurrent cycle is never enqueued.
func (r *Runner) Trigger() bool {
	switch r.State() {
	case models.StateFetching, models.StateTransforming, models.StateLoading:
		return false
	}
	select {
	case r.trigger <- struct{}{}:
	default:
		// A trigger is already queued; collapsing them is fine.
	}
	return true
}

// Run executes cycles until ctx is cancelled. The shutdown signal is observed
// during every sleep and between stage boundaries.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("source runner started", zap.Duration("interval", r.budget.Interval))
	defer r.log.Info("source runner stopped")

	for {
		if wait := r.wakeAt.Sub(r.clock.Now()); wait > 0 {
			r.setState(models.StateSleeping)
			select {
			case <-ctx.Done():
				return
			case <-r.clock.After(wait):
			case <-r.trigger:
				r.log.Info("manual trigger received")
			}
		}
		if ctx.Err() != nil {
			return
		}
		r.cycle(ctx)
	}
}

func (r *Runner) cycle(ctx context.Context) {
	started := r.clock.Now()

	r.setState(models.StateFetching)
	// The floor holds even for manual triggers: tighter requests are coerced
	// to the floor, never dropped.
	if err := r.limiter.Wait(ctx); err != nil {
		return
	}
	r.budget.LastFetch = r.clock.Now()

	raw, xerr := r.source.Fetch(ctx)
	if xerr != nil {
		r.failCycle(started, xerr)
		return
	}

	r.setState(models.StateTransforming)
	batch, dropped := r.source.Transform(raw, r.clock.Now())
	extracted := len(batch) + dropped
	cleansed := len(batch)
	batch = transform.Truncate(batch, r.cfg.BatchLimit)
	// Rows clipped by the batch limit count as dropped so the cycle totals
	// still sum: extracted == cleansed + dropped.
	dropped += cleansed - len(batch)

	r.setState(models.StateLoading)
	outcome := r.writer.Load(ctx, batch)
	if ctx.Err() != nil {
		return
	}

	if outcome.Live.Succeeded() || outcome.Analytical.Succeeded() {
		r.budget.ConsecutiveFailures = 0
	}

	latency := r.clock.Now().Sub(started)
	r.rec.RecordCycle(models.CycleResult{
		Source:    r.source.Name(),
		StartedAt: started,
		Latency:   latency,
		Extracted: extracted,
		Cleansed:  len(batch),
		Dropped:   dropped,
		Outcome:   &outcome,
	}, r.budget.ConsecutiveFailures)

	r.log.Info("cycle completed",
		zap.Duration("latency", latency),
		zap.Int("cleansed", len(batch)),
		zap.Int("dropped", dropped),
		zap.String("live", string(outcome.Live.Status)),
		zap.String("analytical", string(outcome.Analytical.Status)),
	)

	r.wakeAt = r.budget.LastFetch.Add(r.budget.Interval)
}

// failCycle moves straight to Sleeping with exponential backoff, honoring a
// source-provided retry hint when it is longer.
func (r *Runner) failCycle(started time.Time, xerr *models.ExtractError) {
	r.budget.ConsecutiveFailures++

	backoff := Backoff(r.cfg.BackoffBase, r.cfg.BackoffMax, r.budget.ConsecutiveFailures)
	if xerr.Kind == models.ExtractRateLimited && xerr.RetryAfter > backoff {
		backoff = xerr.RetryAfter
	}

	now := r.clock.Now()
	r.rec.RecordCycle(models.CycleResult{
		Source:     r.source.Name(),
		StartedAt:  started,
		Latency:    now.Sub(started),
		ExtractErr: xerr.Error(),
	}, r.budget.ConsecutiveFailures)

	r.log.Warn("extract failed, backing off",
		zap.String("kind", string(xerr.Kind)),
		zap.Int("consecutive_failures", r.budget.ConsecutiveFailures),
		zap.Duration("backoff", backoff),
		zap.Error(xerr),
	)

	r.wakeAt = now.Add(backoff)
}
