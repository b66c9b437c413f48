package franka

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	libfranka "github.com/frankahw/frankahw/franka"
	"github.com/frankahw/frankahw/hardware"
	"github.com/frankahw/frankahw/logging"
)

// Mode is a command mode of the arm.
type Mode int

// The command modes. Each mode owns one command interface per joint.
const (
	ModeEffort Mode = iota
	ModeVelocity
)

var modes = []Mode{ModeEffort, ModeVelocity}

func (m Mode) String() string {
	switch m {
	case ModeEffort:
		return "effort"
	case ModeVelocity:
		return "velocity"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Interface is the command interface name the mode claims on every joint.
func (m Mode) Interface() string {
	switch m {
	case ModeEffort:
		return hardware.InterfaceEffort
	case ModeVelocity:
		return hardware.InterfaceVelocity
	}
	return ""
}

type modeClaim struct {
	claimed bool
	running bool
}

type claimKey struct {
	mode  Mode
	joint int
}

// modeSwitch tracks which command mode the framework has claimed and which one the robot is
// currently streaming. A mode is claimed or released with all of its joint interfaces at once.
type modeSwitch struct {
	logger logging.Logger
	joints []string
	// table maps every command interface identifier to its mode and joint.
	table  map[string]claimKey
	claims [2]modeClaim
}

func newModeSwitch(joints []string, logger logging.Logger) *modeSwitch {
	table := make(map[string]claimKey, len(modes)*len(joints))
	for _, m := range modes {
		for i, joint := range joints {
			table[joint+"/"+m.Interface()] = claimKey{mode: m, joint: i}
		}
	}
	return &modeSwitch{logger: logger, joints: joints, table: table}
}

// count returns how many of the identifiers belong to mode and whether they cover every joint.
func (ms *modeSwitch) count(identifiers []string, mode Mode) (int, bool) {
	var joints []int
	for _, id := range identifiers {
		if key, ok := ms.table[id]; ok && key.mode == mode {
			joints = append(joints, key.joint)
		}
	}
	return len(joints), len(joints) == len(ms.joints) && len(lo.Uniq(joints)) == len(ms.joints)
}

// prepare records which modes the framework claims after the switch. A mode changes only when
// the request names all of its interfaces. A switch that would leave both modes claimed fails,
// so moving from one mode to the other must stop the old mode in the same request. Nothing
// changes when an error is returned.
func (ms *modeSwitch) prepare(start, stop []string) error {
	next := ms.claims
	for _, m := range modes {
		n, full := ms.count(stop, m)
		if n == 0 {
			continue
		}
		if !full {
			return validationErrorf("partial stop of %s interfaces not allowed: got %d of %d", m, n, len(ms.joints))
		}
		next[m].claimed = false
	}
	for _, m := range modes {
		n, full := ms.count(start, m)
		if n == 0 {
			continue
		}
		if !full {
			return validationErrorf("partial start of %s interfaces not allowed: got %d of %d", m, n, len(ms.joints))
		}
		next[m].claimed = true
	}
	if next[ModeEffort].claimed && next[ModeVelocity].claimed {
		return validationErrorf("%s and %s interfaces cannot be claimed at the same time", ModeEffort, ModeVelocity)
	}

	for _, m := range modes {
		if next[m].claimed != ms.claims[m].claimed {
			ms.logger.Debugw("claim changed", "mode", m.String(), "claimed", next[m].claimed)
		}
	}
	ms.claims = next
	return nil
}

// perform brings the robot in line with the claims. Released modes are stopped before claimed
// modes are started. A mode's running flag changes only after the robot accepted the change.
func (ms *modeSwitch) perform(ctx context.Context, robot libfranka.Robot, resetCommands func()) error {
	for _, m := range modes {
		c := &ms.claims[m]
		if !c.running || c.claimed {
			continue
		}
		if err := robot.StopRobot(ctx); err != nil {
			return withKind(ErrDevice, errors.Wrapf(err, "failed to stop %s control", m))
		}
		c.running = false
		ms.logger.Infow("stopped control", "mode", m.String())
	}

	for _, m := range modes {
		c := &ms.claims[m]
		if !c.claimed || c.running {
			continue
		}
		resetCommands()
		if err := robot.StopRobot(ctx); err != nil {
			return withKind(ErrDevice, errors.Wrapf(err, "failed to stop robot before starting %s control", m))
		}
		if err := startMode(ctx, robot, m); err != nil {
			return withKind(ErrDevice, errors.Wrapf(err, "failed to start %s control", m))
		}
		c.running = true
		ms.logger.Infow("started control", "mode", m.String())
	}
	return nil
}

func startMode(ctx context.Context, robot libfranka.Robot, m Mode) error {
	switch m {
	case ModeEffort:
		return robot.InitializeTorqueInterface(ctx)
	case ModeVelocity:
		return robot.InitializeJointVelocityInterface(ctx)
	}
	return errors.Errorf("unknown mode %s", m)
}

// running returns the mode the robot is streaming, if any.
func (ms *modeSwitch) running() (Mode, bool) {
	for _, m := range modes {
		if ms.claims[m].running {
			return m, true
		}
	}
	return 0, false
}

// stopped clears the running flags after the robot was stopped outside of a switch.
func (ms *modeSwitch) stopped() {
	for _, m := range modes {
		ms.claims[m].running = false
	}
}
