package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/frankahw/frankahw/logging"
)

// SlowLogger warns every few seconds until the returned function is called or ctx is done. Use
// it around blocking calls that usually return quickly, such as connecting to a robot.
func SlowLogger(ctx context.Context, clk clock.Clock, msg, fieldName, fieldVal string, logger logging.Logger) func() {
	slowTimer := clk.Timer(2 * time.Second)
	startTime := clk.Now()

	ctxWithCancel, cancel := context.WithCancel(ctx)
	sw := NewStoppableWorkers(func(workerCtx context.Context) {
		next := 3 * time.Second
		for {
			select {
			case <-slowTimer.C:
				elapsed := clk.Since(startTime).Round(time.Second).String()
				logger.CWarnw(ctx, msg, fieldName, fieldVal, "time_elapsed", elapsed)
				slowTimer.Reset(next)
				next = 5 * time.Second
			case <-ctxWithCancel.Done():
				return
			case <-workerCtx.Done():
				return
			}
		}
	})
	return func() {
		slowTimer.Stop()
		cancel()
		sw.Stop()
	}
}
