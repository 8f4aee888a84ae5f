package ports

import (
	"context"
	"time"

	"marketpulse/internal/domain/models"
)

// SourcePort is one upstream data source: an extractor paired with the
// transform that understands its payload shape.
type SourcePort interface {
	// Name returns the stable source identifier used as provenance tag,
	// trigger path segment, and metrics label.
	Name() string

	// Interval returns the configured polling cadence.
	Interval() time.Duration

	// Fetch retrieves the full raw payload for this source. It never returns
	// a partial payload: either the document is complete or the error is a
	// *models.ExtractError. Idempotent to retry.
	Fetch(ctx context.Context) (models.RawPayload, *models.ExtractError)

	// Transform cleanses the payload into canonical snapshots stamped with
	// observedAt, reporting how many records were dropped. Per-record
	// problems never fail the batch.
	Transform(raw models.RawPayload, observedAt time.Time) (models.Batch, int)
}
