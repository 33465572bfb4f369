package download

import (
	"math"
	"time"
)

// RetryPolicy decides whether and when a failed transfer is re-queued.
//
// The zero value retries forever without delay.
type RetryPolicy struct {
	// MaxAttempts caps the number of transfers per task. 0 means unlimited.
	MaxAttempts int

	// Cooldown is the wait after the first failure.
	Cooldown time.Duration

	// Exponent multiplies the wait after every further failure.
	// Values below 1 are treated as 1.
	Exponent float64

	// MaxCooldown caps the wait. 0 means uncapped.
	MaxCooldown time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 7,
		Cooldown:    200 * time.Millisecond,
		Exponent:    2.0,
		MaxCooldown: 30 * time.Second,
	}
}

// Exhausted reports whether a task that has made attempts transfers must
// be abandoned.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// Delay returns how long a task waits before re-entering the queue after
// its attempts-th failed transfer.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if p.Cooldown <= 0 || attempts <= 0 {
		return 0
	}

	exp := p.Exponent
	if exp < 1 {
		exp = 1
	}

	d := float64(p.Cooldown) * math.Pow(exp, float64(attempts-1))
	if p.MaxCooldown > 0 && d > float64(p.MaxCooldown) {
		return p.MaxCooldown
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
