// Package metrics is the process-wide recorder: Prometheus collectors on a
// private registry for scraping, plus a bounded ring of recent cycle results
// and a per-source health map for the HTTP surfaces. All methods are safe for
// concurrent use by every source runner.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"marketpulse/internal/domain/models"
)

// DefaultRingSize bounds the recent-cycles window served by /stats.
const DefaultRingSize = 100

// Recorder aggregates pipeline observability state.
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
	droppedRows   *prometheus.CounterVec
	sinkFailures  *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec

	mu     sync.Mutex
	ring   []models.CycleResult
	next   int
	filled bool
	health map[string]models.SourceHealth
	errors map[string]int64
}

// New creates a recorder with a bounded ring of the given size.
func New(ringSize int) *Recorder {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ring:     make([]models.CycleResult, ringSize),
		health:   make(map[string]models.SourceHealth),
		errors:   make(map[string]int64),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketpulse", Subsystem: "pipeline",
			Name: "cycles_total", Help: "Total ingestion cycles by outcome.",
		}, []string{"source", "status"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketpulse", Subsystem: "pipeline",
			Name: "snapshots_written_total", Help: "Snapshots written per sink.",
		}, []string{"source", "sink"}),
		droppedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketpulse", Subsystem: "pipeline",
			Name: "records_dropped_total", Help: "Records dropped during transform.",
		}, []string{"source"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketpulse", Subsystem: "pipeline",
			Name: "sink_failures_total", Help: "Sink writes that did not fully succeed.",
		}, []string{"source", "sink"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketpulse", Subsystem: "pipeline",
			Name: "cycle_duration_seconds", Help: "End-to-end cycle latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"source"}),
	}

	r.registry.MustRegister(r.cycles, r.snapshots, r.droppedRows, r.sinkFailures, r.cycleDuration)
	return r
}

// Registry exposes the private registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// SetState publishes a source's current scheduler state.
func (r *Recorder) SetState(source string, state models.SourceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.health[source]
	h.State = state
	r.health[source] = h
}

// RecordCycle folds one finished cycle into the counters, the ring, and the
// source's health entry. consecutiveFailures is the runner's current extract
// failure streak after this cycle.
func (r *Recorder) RecordCycle(res models.CycleResult, consecutiveFailures int) {
	status := "ok"
	if res.ExtractErr != "" {
		status = "extract_error"
	}
	r.cycles.WithLabelValues(res.Source, status).Inc()
	r.cycleDuration.WithLabelValues(res.Source).Observe(res.Latency.Seconds())
	r.droppedRows.WithLabelValues(res.Source).Add(float64(res.Dropped))

	if res.Outcome != nil {
		r.snapshots.WithLabelValues(res.Source, "live").Add(float64(res.Outcome.Live.RowsWritten))
		r.snapshots.WithLabelValues(res.Source, "analytical").Add(float64(res.Outcome.Analytical.RowsWritten))
		if res.Outcome.Live.Status != models.SinkSuccess {
			r.sinkFailures.WithLabelValues(res.Source, "live").Inc()
		}
		if res.Outcome.Analytical.Status != models.SinkSuccess {
			r.sinkFailures.WithLabelValues(res.Source, "analytical").Inc()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring[r.next] = res
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.filled = true
	}

	if res.ExtractErr != "" {
		r.errors[res.Source]++
	}

	h := r.health[res.Source]
	h.ConsecutiveFailures = consecutiveFailures
	h.LastCycleLatency = res.Latency
	if res.ExtractErr == "" && res.Outcome != nil &&
		(res.Outcome.Live.Succeeded() || res.Outcome.Analytical.Succeeded()) {
		h.LastSuccessAt = res.StartedAt.Add(res.Latency)
	}
	r.health[res.Source] = h
}

// Health returns a copy of the per-source health map.
func (r *Recorder) Health() map[string]models.SourceHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.SourceHealth, len(r.health))
	for k, v := range r.health {
		out[k] = v
	}
	return out
}

// RecentCycles returns the ring contents, newest first.
func (r *Recorder) RecentCycles() []models.CycleResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.filled {
		size = len(r.ring)
	}
	out := make([]models.CycleResult, 0, size)
	for i := 1; i <= size; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}

// ErrorCounts returns cumulative extract-error counts per source.
func (r *Recorder) ErrorCounts() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.errors))
	for k, v := range r.errors {
		out[k] = v
	}
	return out
}
