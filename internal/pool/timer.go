// Package pool provides pooled timers for the many short-lived sleeps and
// deadlines the PED protocol engine performs.
package pool

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{
	New: func() any { return time.NewTimer(time.Hour) },
}

// GetTimer returns a timer for the given duration d from the pool.
//
// Return the timer to the pool with PutTimer once fired or stopped.
func GetTimer(d time.Duration) *time.Timer {
	t, _ := timerPool.Get().(*time.Timer)
	if t.Reset(d) {
		// Timer was active, drain the channel to prevent a stale tick.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer returns timer to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if it wasn't consumed by the caller yet.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
