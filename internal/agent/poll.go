package agent

import (
	"context"
	"errors"
	"time"
)

// errPollTimeout is returned when a condition never holds within its
// deadline. Callers wrap it into a state-specific failure so the
// operator learns which stage stalled.
var errPollTimeout = errors.New("condition not met before deadline")

// poll re-checks cond at a fixed interval until it holds, the timeout
// elapses or the context ends. Every wait in the agent goes through this
// so a hung page becomes an explicit, reportable failure instead of a
// silent infinite loop.
func poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return errPollTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
