package probe

import "time"

const (
	// InitialInterval is the delay after the first failed attempt.
	InitialInterval = 10 * time.Millisecond
	// AttemptTimeout bounds a single predicate invocation. It is generous
	// because slow name resolution (localhost on some Windows hosts) can eat
	// several seconds.
	AttemptTimeout = 5 * time.Second
	// DefaultTimeout is the overall readiness budget used when none is set.
	DefaultTimeout = 5 * time.Second
)

// NextInterval returns the delay before the attempt following attempt (zero
// based), given how long polling has run and the overall budget. The delay
// doubles on every attempt and is clamped so the sleep never runs past the
// deadline. It is never negative.
func NextInterval(attempt int, elapsed, timeout time.Duration) time.Duration {
	return nextInterval(InitialInterval, attempt, elapsed, timeout)
}

func nextInterval(initial time.Duration, attempt int, elapsed, timeout time.Duration) time.Duration {
	remaining := timeout - elapsed
	if remaining <= 0 {
		return 0
	}
	if initial <= 0 {
		initial = InitialInterval
	}
	interval := initial
	for i := 0; i < attempt && interval < remaining; i++ {
		interval *= 2
	}
	if interval > remaining {
		return remaining
	}
	return interval
}
