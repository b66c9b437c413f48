package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"
)

func TestStoppableWorkers(t *testing.T) {
	var started atomic.Int32
	worker := func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
	}

	sw := NewStoppableWorkers(worker, worker)
	sw.Add(worker)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, int(started.Load()), test.ShouldEqual, 3)
	})
	test.That(t, sw.Context().Err(), test.ShouldBeNil)

	sw.Stop()
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// Workers added after Stop never run.
	sw.Add(worker)
	test.That(t, int(started.Load()), test.ShouldEqual, 3)
}

func TestStoppableWorkersTicker(t *testing.T) {
	clk := clock.NewMock()
	var ticks atomic.Int32

	sw := NewStoppableWorkers()
	sw.AddTicker(clk, time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	})

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(time.Millisecond)
		test.That(tb, int(ticks.Load()), test.ShouldBeGreaterThanOrEqualTo, 3)
	})

	sw.Stop()
	stopped := ticks.Load()
	clk.Add(10 * time.Millisecond)
	test.That(t, ticks.Load(), test.ShouldEqual, stopped)
}
