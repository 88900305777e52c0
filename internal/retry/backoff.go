package retry

import "time"

// maxShift bounds the doubling so large attempt counts cannot overflow the
// duration arithmetic.
const maxShift = 16

// ExponentialBackoff returns the delay before the given retry attempt.
// The delay doubles with each attempt: base * 2^attempt, capped at
// base * 2^16. Negative attempts return the base delay.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	return base * (1 << attempt)
}
