package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckFunc reports whether the target is ready. It should honour ctx, but
// Poll abandons it once the per-attempt timeout elapses either way.
type CheckFunc func(ctx context.Context) (bool, error)

// Attempt describes the outcome of one readiness check.
type Attempt struct {
	Number  int
	Ready   bool
	Err     error
	Elapsed time.Duration
	Next    time.Duration
}

// Options configures Poll. Zero values select the package defaults.
type Options struct {
	Timeout        time.Duration
	Initial        time.Duration
	AttemptTimeout time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Poll invokes check until it reports ready, the overall timeout elapses, ctx
// is cancelled or alive reports false. Failures never escape: they are handed
// to observe and collapse into a false result.
func Poll(ctx context.Context, opts Options, alive func() bool, check CheckFunc, observe func(Attempt)) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	attemptTimeout := opts.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = AttemptTimeout
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	start := now()
	for attempt := 0; ; attempt++ {
		if now().Sub(start) >= timeout {
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		// Only a dead or killed target ends polling early. A target that is
		// between restarts is still worth waiting for.
		if alive != nil && !alive() {
			return false
		}

		ready, err := runAttempt(ctx, attemptTimeout, check)
		elapsed := now().Sub(start)
		next := nextInterval(opts.Initial, attempt, elapsed, timeout)
		if observe != nil {
			observe(Attempt{Number: attempt, Ready: ready, Err: err, Elapsed: elapsed, Next: next})
		}
		if ready {
			return true
		}
		if err := sleep(ctx, next); err != nil {
			return false
		}
	}
}

func runAttempt(ctx context.Context, timeout time.Duration, check CheckFunc) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		ready bool
		err   error
	}
	results := make(chan result, 1)
	go func() {
		ready, err := check(attemptCtx)
		results <- result{ready: ready, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("timeout after %s", timeout)
		}
		return res.ready && res.err == nil, res.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("timeout after %s", timeout)
		}
		return false, attemptCtx.Err()
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
