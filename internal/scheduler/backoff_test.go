package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesUntilCap(t *testing.T) {
	base := 5 * time.Second
	max := 10 * time.Minute

	assert.Equal(t, 5*time.Second, Backoff(base, max, 1))
	assert.Equal(t, 10*time.Second, Backoff(base, max, 2))
	assert.Equal(t, 20*time.Second, Backoff(base, max, 3))
	assert.Equal(t, 40*time.Second, Backoff(base, max, 4))

	// Capped from failure 8 on: 5s * 2^7 = 640s > 600s.
	assert.Equal(t, max, Backoff(base, max, 8))
	assert.Equal(t, max, Backoff(base, max, 50))
}

func TestBackoffMonotonic(t *testing.T) {
	base := time.Second
	max := time.Hour

	prev := time.Duration(0)
	for failures := 1; failures <= 40; failures++ {
		d := Backoff(base, max, failures)
		assert.GreaterOrEqual(t, d, prev, "failures=%d", failures)
		assert.LessOrEqual(t, d, max)
		prev = d
	}
}

func TestBackoffZeroFailuresIsBase(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(time.Second, time.Minute, 0))
}

func TestBackoffOverflowGuard(t *testing.T) {
	// Enough doublings to overflow int64 without the guard.
	assert.Equal(t, time.Hour, Backoff(time.Second, time.Hour, 100))
}
