package scheduler

import "time"

// Backoff returns the retry delay after the given number of failures:
// base*2^(failures-1), capped at max. Zero failures yields no delay.
func Backoff(failures int, base, max time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
