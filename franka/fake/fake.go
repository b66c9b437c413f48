// Package fake implements an in-memory robot that records every call made to it.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/frankahw/frankahw/franka"
	"github.com/frankahw/frankahw/logging"
)

// Call names as recorded in the call log.
const (
	CallReadOnce     = "ReadOnce"
	CallWriteOnce    = "WriteOnce"
	CallStopRobot    = "StopRobot"
	CallInitTorque   = "InitializeTorqueInterface"
	CallInitVelocity = "InitializeJointVelocityInterface"
	CallModel        = "Model"
	CallClose        = "Close"
)

const defaultCycle = time.Millisecond

// Robot simulates a seven joint arm with unit inertia. Velocity commands set joint velocities
// directly, torque commands accelerate the joints. One cycle passes per read.
type Robot struct {
	mu          sync.Mutex
	errs        map[string]error
	logger      logging.Logger
	cycle       time.Duration
	state       franka.State
	model       franka.Model
	mode        franka.ControllerMode
	lastCommand franka.JointVector
	calls       []string
}

var _ franka.Robot = (*Robot)(nil)

// NewRobot returns an idle fake robot at the zero configuration.
func NewRobot(logger logging.Logger) *Robot {
	return &Robot{
		logger: logger,
		errs:   map[string]error{},
		cycle:  defaultCycle,
		model:  franka.Model{Version: 1, Library: []byte("fake")},
	}
}

func (r *Robot) record(call string) {
	r.calls = append(r.calls, call)
}

// ReadOnce advances the simulation by one cycle and returns the new state.
func (r *Robot) ReadOnce(ctx context.Context) (franka.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(CallReadOnce)
	if err := r.errs[CallReadOnce]; err != nil {
		return franka.State{}, err
	}
	r.step()
	return r.state, nil
}

func (r *Robot) step() {
	dt := r.cycle.Seconds()
	r.state.Time += r.cycle
	switch r.mode {
	case franka.ModeTorque:
		for i, tau := range r.lastCommand {
			r.state.DQ[i] += tau * dt
			r.state.Q[i] += r.state.DQ[i] * dt
		}
		r.state.TauJ = r.lastCommand
	case franka.ModeJointVelocity:
		r.state.DQ = r.lastCommand
		for i, v := range r.lastCommand {
			r.state.Q[i] += v * dt
		}
		r.state.TauJ = franka.JointVector{}
	case franka.ModeIdle:
		r.state.DQ = franka.JointVector{}
		r.state.TauJ = franka.JointVector{}
	}
}

// WriteOnce stores the commands for the next cycle. It fails when no interface is streaming.
func (r *Robot) WriteOnce(ctx context.Context, commands franka.JointVector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(CallWriteOnce)
	if err := r.errs[CallWriteOnce]; err != nil {
		return err
	}
	if r.mode == franka.ModeIdle {
		return errors.New("no streaming interface active")
	}
	r.lastCommand = commands
	return nil
}

// StopRobot returns the robot to idle.
func (r *Robot) StopRobot(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(CallStopRobot)
	if err := r.errs[CallStopRobot]; err != nil {
		return err
	}
	r.mode = franka.ModeIdle
	r.lastCommand = franka.JointVector{}
	return nil
}

// InitializeTorqueInterface starts torque streaming.
func (r *Robot) InitializeTorqueInterface(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(CallInitTorque)
	if err := r.errs[CallInitTorque]; err != nil {
		return err
	}
	return r.start(franka.ModeTorque)
}

// InitializeJointVelocityInterface starts joint velocity streaming.
func (r *Robot) InitializeJointVelocityInterface(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(CallInitVelocity)
	if err := r.errs[CallInitVelocity]; err != nil {
		return err
	}
	return r.start(franka.ModeJointVelocity)
}

func (r *Robot) start(mode franka.ControllerMode) error {
	if r.mode != franka.ModeIdle {
		return errors.Errorf("cannot start %s while %s is active", mode, r.mode)
	}
	r.mode = mode
	r.lastCommand = franka.JointVector{}
	r.logger.Debugw("fake robot streaming", "mode", mode.String())
	return nil
}

// Model returns the fake dynamics model.
func (r *Robot) Model(ctx context.Context) (franka.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(CallModel)
	if err := r.errs[CallModel]; err != nil {
		return franka.Model{}, err
	}
	return r.model, nil
}

// Close records the call.
func (r *Robot) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(CallClose)
	return r.errs[CallClose]
}

// SetError makes the named call fail with err until it is cleared with a nil error.
func (r *Robot) SetError(call string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.errs, call)
		return
	}
	r.errs[call] = err
}

// SetState replaces the simulated state.
func (r *Robot) SetState(state franka.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// Mode returns the active streaming interface.
func (r *Robot) Mode() franka.ControllerMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// LastCommand returns the commands of the last successful write.
func (r *Robot) LastCommand() franka.JointVector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCommand
}

// Calls returns every call made so far, in order.
func (r *Robot) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CallCount returns how often the named call was made.
func (r *Robot) CallCount(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Count(r.calls, call)
}

// ResetCalls clears the call log.
func (r *Robot) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
