// Package retry holds the backoff policy the pipeline applies to recoverable
// stage failures.
package retry

import "time"

// Policy describes exponential backoff with a cap and an attempt budget.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Delay computes the backoff before retry number attempt (zero-based):
// base * 2^attempt, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted reports whether a unit that has already failed retryCount times
// has used up its budget. A budget of N allows N retries after the first
// failure, so only the count exceeding N gives up.
func (p Policy) Exhausted(retryCount int) bool {
	return retryCount > p.MaxAttempts
}
