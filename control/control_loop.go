// Package control drives a hardware system at a fixed rate. Every tick reads the hardware,
// applies a pending command mode switch, lets a controller compute commands and writes them.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/frankahw/frankahw/hardware"
	"github.com/frankahw/frankahw/logging"
	"github.com/frankahw/frankahw/utils"
)

// MaxFrequency is the highest supported loop rate in Hz.
const MaxFrequency = 1000.0

var (
	errNotRunning     = errors.New("control loop is not running")
	errAlreadyRunning = errors.New("control loop is already running")
)

// Config configures a Loop.
type Config struct {
	// Frequency is the loop rate in Hz.
	Frequency float64 `json:"frequency"`
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.Frequency <= 0 || cfg.Frequency > MaxFrequency {
		return errors.Errorf("loop frequency must be above 0 and at most %.0fHz, got %g", MaxFrequency, cfg.Frequency)
	}
	return nil
}

// Controller computes commands once per tick, after the state was read and before it is written.
type Controller interface {
	Update(ctx context.Context, period time.Duration, ifaces *Interfaces) error
}

// Stats counts what happened in the loop so far.
type Stats struct {
	Ticks            int
	ReadErrors       int
	WriteErrors      int
	SwitchErrors     int
	ControllerErrors int
	Switches         int
}

type switchRequest struct {
	start  []string
	stop   []string
	result chan error
}

// Loop holds the loop config.
type Loop struct {
	cfg        Config
	dt         time.Duration
	logger     logging.Logger
	clk        clock.Clock
	system     hardware.SystemInterface
	ifaces     *Interfaces
	controller Controller
	requests   chan switchRequest

	mu       sync.Mutex
	workers  *utils.StoppableWorkers
	stats    Stats
	lastTick time.Time
}

// NewLoop constructs a loop for an initialized hardware system. A nil clock means the wall clock.
func NewLoop(logger logging.Logger, cfg Config, system hardware.SystemInterface, clk clock.Clock) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		cfg:      cfg,
		dt:       time.Duration(float64(time.Second) / cfg.Frequency),
		logger:   logger,
		clk:      clk,
		system:   system,
		ifaces:   newInterfaces(system.ExportStateInterfaces(), system.ExportCommandInterfaces()),
		requests: make(chan switchRequest),
	}, nil
}

// SetController sets the controller run on every tick. It must be called before Start.
func (l *Loop) SetController(c Controller) {
	l.controller = c
}

// Interfaces returns the exported interfaces of the system.
func (l *Loop) Interfaces() *Interfaces {
	return l.ifaces
}

// Frequency returns the loop's frequency.
func (l *Loop) Frequency() float64 {
	return l.cfg.Frequency
}

// Period returns the time between ticks.
func (l *Loop) Period() time.Duration {
	return l.dt
}

// Start activates the system and starts ticking.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers != nil {
		return errAlreadyRunning
	}
	if err := l.system.Activate(ctx); err != nil {
		return errors.Wrap(err, "failed to activate hardware")
	}
	l.logger.Infow("running loop", "frequency", l.cfg.Frequency, "period", l.dt.String())
	l.lastTick = time.Time{}
	l.workers = utils.NewStoppableWorkers()
	l.workers.AddTicker(l.clk, l.dt, l.tick)
	return nil
}

// Stop stops ticking and deactivates the system. Pending switch requests fail.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	workers := l.workers
	l.workers = nil
	l.mu.Unlock()
	if workers == nil {
		return nil
	}

	l.logger.Debug("closing loop")
	workers.Stop()
	if err := l.system.Deactivate(ctx); err != nil {
		return errors.Wrap(err, "failed to deactivate hardware")
	}
	return nil
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) count(f func(s *Stats)) {
	l.mu.Lock()
	f(&l.stats)
	l.mu.Unlock()
}

// RequestSwitch hands a command mode switch to the loop and waits until a tick applied it.
// start and stop hold full command interface names. A tick whose read fails rejects the pending
// request with the read error.
func (l *Loop) RequestSwitch(ctx context.Context, start, stop []string) error {
	l.mu.Lock()
	workers := l.workers
	l.mu.Unlock()
	if workers == nil {
		return errNotRunning
	}
	stopped := workers.Context().Done()

	req := switchRequest{start: start, stop: stop, result: make(chan error, 1)}
	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return errNotRunning
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return errNotRunning
	}
}

func (l *Loop) tick(ctx context.Context) {
	now := l.clk.Now()
	period := l.dt
	if !l.lastTick.IsZero() {
		period = now.Sub(l.lastTick)
	}
	l.lastTick = now
	l.count(func(s *Stats) { s.Ticks++ })

	if err := l.system.Read(ctx, now, period); err != nil {
		l.count(func(s *Stats) { s.ReadErrors++ })
		l.logger.CErrorw(ctx, "read failed", "error", err)
		// A switch must not be applied on stale state.
		select {
		case req := <-l.requests:
			l.count(func(s *Stats) { s.SwitchErrors++ })
			req.result <- errors.Wrap(err, "mode switch skipped, read failed")
		default:
		}
		return
	}

	select {
	case req := <-l.requests:
		err := l.applySwitch(ctx, req.start, req.stop)
		if err != nil {
			l.count(func(s *Stats) { s.SwitchErrors++ })
		} else {
			l.count(func(s *Stats) { s.Switches++ })
		}
		req.result <- err
	default:
	}

	if l.controller != nil {
		if err := l.controller.Update(ctx, period, l.ifaces); err != nil {
			l.count(func(s *Stats) { s.ControllerErrors++ })
			l.logger.CWarnw(ctx, "controller update failed", "error", err)
			return
		}
	}

	if err := l.system.Write(ctx, now, period); err != nil {
		l.count(func(s *Stats) { s.WriteErrors++ })
		l.logger.CErrorw(ctx, "write failed", "error", err)
	}
}

func (l *Loop) applySwitch(ctx context.Context, start, stop []string) error {
	if err := l.system.PrepareCommandModeSwitch(start, stop); err != nil {
		return err
	}
	l.ifaces.release(stop)
	l.ifaces.claim(start)
	if err := l.system.PerformCommandModeSwitch(ctx, start, stop); err != nil {
		l.logger.CErrorw(ctx, "mode switch failed", "start", start, "stop", stop, "error", err)
		return err
	}
	l.logger.CInfow(ctx, "mode switch done", "claimed", l.ifaces.Claimed())
	return nil
}
