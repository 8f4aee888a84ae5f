package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketpulse/internal/domain/models"
)

// rollupStore counts rollup passes and fails the first failFirst of them.
type rollupStore struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	onCall    func(n int)
}

func (s *rollupStore) RollupCandles(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	n := s.calls
	cb := s.onCall
	s.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	if n <= s.failFirst {
		return errors.New("rollup failed")
	}
	return nil
}

func (s *rollupStore) UpsertSnapshots(ctx context.Context, batch models.Batch) (int, error) {
	return len(batch), nil
}
func (s *rollupStore) GetHistory(ctx context.Context, source, entityKey string, from, to time.Time, limit int) ([]models.CanonicalSnapshot, error) {
	return nil, nil
}
func (s *rollupStore) Close() error { return nil }

func (s *rollupStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRollupRunnerTicksAtInterval(t *testing.T) {
	clock := newFakeClock(true)
	ctx, cancel := context.WithCancel(context.Background())
	store := &rollupStore{}
	store.onCall = func(n int) {
		if n >= 3 {
			cancel()
		}
	}

	r := NewRollupRunner(store, clock, time.Minute, zap.NewNop())
	r.Run(ctx)

	assert.GreaterOrEqual(t, store.callCount(), 3)
	sleeps := clock.sleeps()
	require.GreaterOrEqual(t, len(sleeps), 3)
	for _, d := range sleeps[:3] {
		assert.Equal(t, time.Minute, d)
	}
}

func TestRollupRunnerSurvivesFailedPass(t *testing.T) {
	clock := newFakeClock(true)
	ctx, cancel := context.WithCancel(context.Background())
	store := &rollupStore{failFirst: 1}
	store.onCall = func(n int) {
		if n >= 2 {
			cancel()
		}
	}

	r := NewRollupRunner(store, clock, time.Minute, zap.NewNop())
	r.Run(ctx)

	// The failed first pass does not stop the loop.
	assert.GreaterOrEqual(t, store.callCount(), 2)
}

func TestRollupRunnerDisabledByZeroInterval(t *testing.T) {
	store := &rollupStore{}
	r := NewRollupRunner(store, newFakeClock(true), 0, zap.NewNop())

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disabled rollup runner did not return")
	}
	assert.Zero(t, store.callCount())
}
