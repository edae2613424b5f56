package ngpas

import (
	"context"
	"time"

	"github.com/eposlink/ngenius-go/internal/pool"
)

// expBackoff returns base * 2^(attempt-1), capped at maxDelay.
// attempt is 1-based; values below 1 are treated as 1.
func expBackoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}

	if d > maxDelay {
		return maxDelay
	}

	return d
}

// linBackoff returns base * attempt.
// attempt is 1-based; values below 1 are treated as 1.
func linBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return base * time.Duration(attempt)
}

// sleepFunc suspends the caller for d or until ctx is done. All waits in the
// engine go through one of these, which keeps every backoff schedule
// observable in tests.
type sleepFunc func(ctx context.Context, d time.Duration) error

// ctxSleep is the production sleepFunc.
func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
