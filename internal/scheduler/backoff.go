package scheduler

import "time"

// Backoff returns the sleep before the next attempt after the given number of
// consecutive extract failures: min(max, base * 2^(failures-1)). The sequence
// is non-decreasing in failures and resets to base after one success.
func Backoff(base, max time.Duration, consecutiveFailures int) time.Duration {
	if consecutiveFailures < 1 {
		return base
	}
	d := base
	for i := 1; i < consecutiveFailures; i++ {
		d *= 2
		if d >= max || d < 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
