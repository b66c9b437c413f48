package control

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/frankahw/frankahw/hardware"
)

// JointDamping holds joints in place. Joints with a claimed effort interface get a torque
// opposing their velocity, joints with a claimed velocity interface are commanded to stand still.
type JointDamping struct {
	Joints []string
	// Gain is the damping in Nm per rad/s.
	Gain float64
}

// NewJointDamping returns a damping controller for the given joints.
func NewJointDamping(joints []string, gain float64) (*JointDamping, error) {
	if len(joints) == 0 {
		return nil, errors.New("damping needs at least one joint")
	}
	if gain < 0 {
		return nil, errors.Errorf("damping gain must not be negative, got %g", gain)
	}
	return &JointDamping{Joints: joints, Gain: gain}, nil
}

// Update implements Controller.
func (d *JointDamping) Update(ctx context.Context, period time.Duration, ifaces *Interfaces) error {
	for _, joint := range d.Joints {
		effortName := joint + "/" + hardware.InterfaceEffort
		velocityName := joint + "/" + hardware.InterfaceVelocity

		switch {
		case ifaces.IsClaimed(effortName):
			velocity, ok := ifaces.State(velocityName)
			if !ok {
				return errors.Errorf("no state interface %s", velocityName)
			}
			cmd, _ := ifaces.Command(effortName)
			cmd.SetValue(-d.Gain * velocity.Value())
		case ifaces.IsClaimed(velocityName):
			cmd, _ := ifaces.Command(velocityName)
			cmd.SetValue(0)
		}
	}
	return nil
}
