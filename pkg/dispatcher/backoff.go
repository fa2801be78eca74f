package dispatcher

import "time"

// backoffDelay computes the exponential retry delay for the given retry
// count: base * 2^retries, capped at maxDelay.
func backoffDelay(base, maxDelay time.Duration, retries int) time.Duration {
	delay := base

	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}

	if delay > maxDelay {
		return maxDelay
	}

	return delay
}
