// Package transform holds the cleansing and enrichment steps shared by every
// source: tolerant numeric decoding, null coalescing, batch-wide derived
// measures, and entity-key normalization. Per-record problems surface as
// drops, never as errors aborting a batch.
package transform

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"marketpulse/internal/domain/models"
)

// Float decodes a JSON value that sources report either as a number or as a
// numeric string. Missing, null, and unparseable values report ok=false.
func Float(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FloatOrZero is Float with null coalescing: anything absent or malformed
// becomes 0 so downstream arithmetic stays total.
func FloatOrZero(v gjson.Result) float64 {
	f, ok := Float(v)
	if !ok {
		return 0
	}
	return f
}

// NormalizeSymbol canonicalizes a trading-symbol entity key.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeSlug canonicalizes a protocol/chain entity key.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ChangePct computes (current-previous)/previous*100, 0 when previous is 0.
func ChangePct(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// ApplyMarketShare writes target = measure/sum(measure)*100 across the batch,
// 0 for every record when the batch sum is 0. Runs strictly after per-record
// cleansing because it needs the batch-wide aggregate.
func ApplyMarketShare(batch models.Batch, measure, target string) {
	var total float64
	for _, snap := range batch {
		total += snap.Measures[measure]
	}
	for _, snap := range batch {
		if total == 0 {
			snap.Measures[target] = 0
			continue
		}
		snap.Measures[target] = snap.Measures[measure] / total * 100
	}
}

// DedupeKeys drops later records sharing an entity key with an earlier one,
// keeping (entity_key, observed_at) unique within the batch. Returns the
// surviving batch and the number dropped.
func DedupeKeys(batch models.Batch) (models.Batch, int) {
	seen := make(map[string]struct{}, len(batch))
	out := batch[:0]
	dropped := 0
	for _, snap := range batch {
		if _, dup := seen[snap.EntityKey]; dup {
			dropped++
			continue
		}
		seen[snap.EntityKey] = struct{}{}
		out = append(out, snap)
	}
	return out, dropped
}

// Truncate bounds a batch to the configured size limit, preserving order.
func Truncate(batch models.Batch, limit int) models.Batch {
	if limit > 0 && len(batch) > limit {
		return batch[:limit]
	}
	return batch
}
