package models

import "time"

// RawPayload is the opaque JSON document returned by a source. It is created
// by an extractor, consumed once by the matching transform, and not retained.
type RawPayload []byte

// CanonicalSnapshot is one immutable observation of an entity's measures at
// ingestion time. (Source, EntityKey, ObservedAt) is the natural key: a later
// snapshot for the same entity is a new row, never a mutation of a prior one.
type CanonicalSnapshot struct {
	EntityKey  string             `json:"entity_key"`
	ObservedAt time.Time          `json:"observed_at"`
	Source     string             `json:"source"`
	Measures   map[string]float64 `json:"measures"`
}

// Batch is the ordered output of one transform invocation. It is owned by the
// cycle that produced it and discarded after both sinks have been attempted.
type Batch []CanonicalSnapshot

// SinkStatus classifies the outcome of one sink write.
type SinkStatus string

const (
	SinkSuccess SinkStatus = "success"
	SinkPartial SinkStatus = "partial"
	SinkFailure SinkStatus = "failure"
)

// SinkResult reports a single sink's outcome for one batch.
type SinkResult struct {
	Status      SinkStatus `json:"status"`
	RowsWritten int        `json:"rows_written"`
	RowsFailed  int        `json:"rows_failed"`
	Err         string     `json:"error,omitempty"`
}

// Succeeded reports whether at least some rows landed.
func (r SinkResult) Succeeded() bool {
	return r.Status == SinkSuccess || r.Status == SinkPartial
}

// LoadOutcome carries both sink results for one batch. The sinks share no
// transaction; either side may fail without affecting the other.
type LoadOutcome struct {
	Live       SinkResult `json:"live"`
	Analytical SinkResult `json:"analytical"`
}

// CycleResult records one scheduler cycle for introspection. Retained in a
// bounded ring by the metrics recorder, never persisted.
type CycleResult struct {
	Source     string        `json:"source"`
	StartedAt  time.Time     `json:"started_at"`
	Latency    time.Duration `json:"latency"`
	Extracted  int           `json:"extracted"`
	Cleansed   int           `json:"cleansed"`
	Dropped    int           `json:"dropped"`
	Outcome    *LoadOutcome  `json:"outcome,omitempty"`
	ExtractErr string        `json:"extract_error,omitempty"`
}

// SourceState names a position in the per-source scheduler state machine.
type SourceState string

const (
	StateIdle         SourceState = "idle"
	StateFetching     SourceState = "fetching"
	StateTransforming SourceState = "transforming"
	StateLoading      SourceState = "loading"
	StateSleeping     SourceState = "sleeping"
)

// SourceBudget is the per-source mutable scheduling state. It is owned by the
// source's runner; nothing else writes it.
type SourceBudget struct {
	Interval            time.Duration
	LastFetch           time.Time
	ConsecutiveFailures int
}

// SourceHealth is the per-source view served by the health endpoint.
type SourceHealth struct {
	State               SourceState   `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	LastCycleLatency    time.Duration `json:"last_cycle_latency"`
}
