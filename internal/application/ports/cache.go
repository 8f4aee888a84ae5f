package ports

import (
	"context"

	"marketpulse/internal/domain/models"
)

// LiveStorePort is the low-latency sink holding the most recent snapshot per
// entity. Writes upsert by (source, entity_key): re-sending a snapshot is an
// overwrite, never a duplicate.
type LiveStorePort interface {
	// UpsertSnapshot writes or overwrites the latest snapshot for its entity.
	UpsertSnapshot(ctx context.Context, snap models.CanonicalSnapshot) error

	// GetLatest returns the most recent snapshot for one entity, nil when the
	// entity is unknown or expired.
	GetLatest(ctx context.Context, source, entityKey string) (*models.CanonicalSnapshot, error)

	// GetLatestBySource returns the most recent snapshot of every entity the
	// source currently tracks.
	GetLatestBySource(ctx context.Context, source string) ([]models.CanonicalSnapshot, error)

	// Close releases the connection.
	Close() error
}
