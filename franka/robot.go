// Package franka is the client side of the robot controller: it reads joint state, streams
// joint commands and switches the controller between torque and joint velocity streaming.
package franka

import (
	"context"
	"time"
)

// NumJoints is the number of joints of the arm.
const NumJoints = 7

// JointVector holds one value per joint.
type JointVector [NumJoints]float64

// State is one control cycle's worth of robot state.
type State struct {
	// Time is the controller's clock at which the state was sampled.
	Time time.Duration
	// Q are the measured joint positions in rad.
	Q JointVector
	// DQ are the measured joint velocities in rad/s.
	DQ JointVector
	// TauJ are the measured joint torques in Nm.
	TauJ JointVector
}

// Model is the dynamics model handle served by the controller. It is fetched once and passed
// on untouched to consumers that compute kinematics or dynamics.
type Model struct {
	Version uint16
	Library []byte
}

// Robot is a connection to the robot controller.
type Robot interface {
	// ReadOnce blocks until the next state sample is available.
	ReadOnce(ctx context.Context) (State, error)
	// WriteOnce sends one cycle of commands for the active streaming interface.
	WriteOnce(ctx context.Context, commands JointVector) error
	// StopRobot stops any active streaming interface. Stopping an idle robot is not an error.
	StopRobot(ctx context.Context) error
	// InitializeTorqueInterface starts streaming joint torques.
	InitializeTorqueInterface(ctx context.Context) error
	// InitializeJointVelocityInterface starts streaming joint velocities.
	InitializeJointVelocityInterface(ctx context.Context) error
	// Model fetches the dynamics model.
	Model(ctx context.Context) (Model, error)
	// Close releases the connection.
	Close(ctx context.Context) error
}
