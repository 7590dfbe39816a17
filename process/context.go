package process

import (
	"context"
	"time"
)

// Liveness reports whether a process is still running.
type Liveness interface {
	Alive() bool
}

// ExitCtx creates a context.Context that is marked as done when
// target stops being alive. target is polled every interval, or
// every second if interval is not positive.
//
// The returned function cancels the context and stops polling.
func ExitCtx(ctx context.Context, target Liveness, interval time.Duration) (context.Context, func()) {
	if interval <= 0 {
		interval = time.Second
	}

	newCtx, cancelFn := context.WithCancel(ctx)

	go func() {
		defer cancelFn()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if !target.Alive() {
				return
			}

			select {
			case <-newCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return newCtx, cancelFn
}
