package usecases

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/application/ports"
	"marketpulse/internal/domain/models"
)

// SnapshotQueryUseCase serves the read-only query surfaces: latest state from
// the live store, history ranges from the analytical store.
type SnapshotQueryUseCase struct {
	live       ports.LiveStorePort
	analytical ports.AnalyticalStorePort
	logger     *zap.Logger
}

// NewSnapshotQueryUseCase creates a new SnapshotQueryUseCase.
func NewSnapshotQueryUseCase(live ports.LiveStorePort, analytical ports.AnalyticalStorePort, logger *zap.Logger) *SnapshotQueryUseCase {
	return &SnapshotQueryUseCase{
		live:       live,
		analytical: analytical,
		logger:     logger,
	}
}

// GetLatest returns the most recent snapshot for one entity, nil when unknown.
func (uc *SnapshotQueryUseCase) GetLatest(ctx context.Context, source, entityKey string) (*models.CanonicalSnapshot, error) {
	return uc.live.GetLatest(ctx, source, entityKey)
}

// GetLatestBySource returns the most recent snapshot of every entity a source
// tracks.
func (uc *SnapshotQueryUseCase) GetLatestBySource(ctx context.Context, source string) ([]models.CanonicalSnapshot, error) {
	return uc.live.GetLatestBySource(ctx, source)
}

// GetHistory returns an entity's snapshots within [from, to], newest first.
// A zero "to" means now; a zero "from" means 24 hours before "to".
func (uc *SnapshotQueryUseCase) GetHistory(ctx context.Context, source, entityKey string, from, to time.Time, limit int) ([]models.CanonicalSnapshot, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	return uc.analytical.GetHistory(ctx, source, entityKey, from, to, limit)
}
