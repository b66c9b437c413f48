// Package franka exposes a seven joint Franka arm as a hardware system. It validates the
// hardware description, exports joint state and command interfaces, streams commands to the
// robot and switches the robot between effort and velocity control.
package franka

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	libfranka "github.com/frankahw/frankahw/franka"
	"github.com/frankahw/frankahw/hardware"
	"github.com/frankahw/frankahw/logging"
	"github.com/frankahw/frankahw/utils"
)

// Names of the whole-device state channels.
const (
	DevicePrefix        = "panda"
	RobotStateInterface = "robot_state"
	RobotModelInterface = "robot_model"
)

// NumJoints is the number of joints the hardware description must list.
const NumJoints = libfranka.NumJoints

var (
	commandInterfaceNames = []string{hardware.InterfaceEffort, hardware.InterfaceVelocity}
	stateInterfaceNames   = []string{hardware.InterfacePosition, hardware.InterfaceVelocity, hardware.InterfaceEffort}
)

// errNotInitialized is returned by the lifecycle methods before Init succeeded or after Close.
var errNotInitialized = errors.New("hardware interface is not initialized")

// HardwareInterface drives one arm. All methods must be called from the same goroutine.
type HardwareInterface struct {
	logger logging.Logger
	robot  libfranka.Robot
	conf   *Config

	jointNames []string
	positions  libfranka.JointVector
	velocities libfranka.JointVector
	efforts    libfranka.JointVector
	// commands is shared by the effort and velocity interfaces of each joint.
	commands libfranka.JointVector

	state libfranka.State
	model *libfranka.Model
	modes *modeSwitch
}

var _ hardware.SystemInterface = (*HardwareInterface)(nil)

// New returns a hardware interface. When robot is nil, Init connects to the robot named by the
// robot_ip parameter. The hardware interface owns the robot and closes it in Close.
func New(logger logging.Logger, robot libfranka.Robot) *HardwareInterface {
	return &HardwareInterface{logger: logger, robot: robot}
}

// ValidateInfo checks that info describes the arm without connecting to it.
func ValidateInfo(info *hardware.Info) (*Config, error) {
	if info == nil {
		return nil, configurationErrorf("no hardware description")
	}
	if len(info.Joints) != NumJoints {
		return nil, configurationErrorf("got %d joints, expected %d", len(info.Joints), NumJoints)
	}
	names := lo.Map(info.Joints, func(j hardware.ComponentInfo, _ int) string { return j.Name })
	if len(lo.Uniq(names)) != NumJoints || lo.Contains(names, "") {
		return nil, configurationErrorf("joint names must be unique and non-empty, got %v", names)
	}

	for _, joint := range info.Joints {
		cmdNames := interfaceNames(joint.CommandInterfaces)
		if len(cmdNames) != len(commandInterfaceNames) {
			return nil, configurationErrorf("joint %q has %d command interfaces, expected %d",
				joint.Name, len(cmdNames), len(commandInterfaceNames))
		}
		if !lo.Every(cmdNames, commandInterfaceNames) || len(lo.Uniq(cmdNames)) != len(cmdNames) {
			return nil, configurationErrorf("joint %q has command interfaces %v, expected %v",
				joint.Name, cmdNames, commandInterfaceNames)
		}

		stateNames := interfaceNames(joint.StateInterfaces)
		if len(stateNames) != len(stateInterfaceNames) {
			return nil, configurationErrorf("joint %q has %d state interfaces, expected %d",
				joint.Name, len(stateNames), len(stateInterfaceNames))
		}
		for i, name := range stateNames {
			if name != stateInterfaceNames[i] {
				return nil, configurationErrorf("joint %q has state interface %q at position %d, expected %q",
					joint.Name, name, i, stateInterfaceNames[i])
			}
		}
	}

	conf, err := DecodeConfig(info.Parameters)
	if err != nil {
		return nil, withKind(ErrConfiguration, errors.Wrap(err, "invalid parameters"))
	}
	if err := conf.Validate("parameters"); err != nil {
		return nil, withKind(ErrConfiguration, err)
	}
	return conf, nil
}

func interfaceNames(infos []hardware.InterfaceInfo) []string {
	return lo.Map(infos, func(i hardware.InterfaceInfo, _ int) string { return i.Name })
}

// Init validates the hardware description and connects to the robot.
func (h *HardwareInterface) Init(ctx context.Context, info *hardware.Info) error {
	conf, err := ValidateInfo(info)
	if err != nil {
		h.logger.Errorw("invalid hardware description", "error", err)
		return err
	}

	if h.robot == nil {
		done := utils.SlowLogger(ctx, clock.New(), "waiting for robot connection", "robot_ip", conf.RobotIP, h.logger)
		robot, err := libfranka.ConnectWithTimeout(ctx, conf.RobotIP, conf.ConnectTimeout, h.logger.Sublogger("robot"))
		done()
		if err != nil {
			h.logger.Errorw("could not connect to robot", "robot_ip", conf.RobotIP, "error", err)
			return withKind(ErrConnection, err)
		}
		h.robot = robot
	}

	h.conf = conf
	h.jointNames = lo.Map(info.Joints, func(j hardware.ComponentInfo, _ int) string { return j.Name })
	h.modes = newModeSwitch(h.jointNames, h.logger.Sublogger("modeswitch"))
	h.logger.Infow("initialized", "name", info.Name, "robot_ip", conf.RobotIP)
	return nil
}

// ExportStateInterfaces returns position, velocity and effort per joint followed by the robot
// state and robot model channels.
func (h *HardwareInterface) ExportStateInterfaces() []hardware.StateInterface {
	states := make([]hardware.StateInterface, 0, len(h.jointNames)*len(stateInterfaceNames)+2)
	for i, joint := range h.jointNames {
		states = append(states,
			hardware.NewStateInterface(joint, hardware.InterfacePosition, &h.positions[i]),
			hardware.NewStateInterface(joint, hardware.InterfaceVelocity, &h.velocities[i]),
			hardware.NewStateInterface(joint, hardware.InterfaceEffort, &h.efforts[i]),
		)
	}
	return append(states,
		hardware.NewOpaqueStateInterface(DevicePrefix, RobotStateInterface, func() interface{} { return h.state }),
		hardware.NewOpaqueStateInterface(DevicePrefix, RobotModelInterface, func() interface{} { return h.model }),
	)
}

// ExportCommandInterfaces returns the effort and velocity interfaces of every joint. Both
// interfaces of a joint write the same command.
func (h *HardwareInterface) ExportCommandInterfaces() []hardware.CommandInterface {
	commands := make([]hardware.CommandInterface, 0, len(h.jointNames)*len(commandInterfaceNames))
	for i, joint := range h.jointNames {
		commands = append(commands,
			hardware.NewCommandInterface(joint, hardware.InterfaceEffort, &h.commands[i]),
			hardware.NewCommandInterface(joint, hardware.InterfaceVelocity, &h.commands[i]),
		)
	}
	return commands
}

// Activate zeroes the commands and reads the robot state once.
func (h *HardwareInterface) Activate(ctx context.Context) error {
	if h.modes == nil {
		return errNotInitialized
	}
	h.resetCommands()
	if err := h.Read(ctx, time.Now(), 0); err != nil {
		return err
	}
	h.logger.Info("activated")
	return nil
}

// Deactivate stops the robot.
func (h *HardwareInterface) Deactivate(ctx context.Context) error {
	if h.modes == nil {
		return errNotInitialized
	}
	if err := h.robot.StopRobot(ctx); err != nil {
		return withKind(ErrDevice, errors.Wrap(err, "failed to stop robot"))
	}
	h.modes.stopped()
	h.logger.Info("deactivated")
	return nil
}

// Read updates the joint state from the robot. The robot model is fetched on the first read.
func (h *HardwareInterface) Read(ctx context.Context, now time.Time, period time.Duration) error {
	if h.modes == nil {
		return errNotInitialized
	}
	if h.model == nil {
		model, err := h.robot.Model(ctx)
		if err != nil {
			return withKind(ErrDevice, errors.Wrap(err, "failed to load robot model"))
		}
		h.model = &model
	}
	state, err := h.robot.ReadOnce(ctx)
	if err != nil {
		return withKind(ErrDevice, errors.Wrap(err, "failed to read robot state"))
	}
	h.state = state
	h.positions = state.Q
	h.velocities = state.DQ
	h.efforts = state.TauJ
	return nil
}

// Write sends the commands to the robot while a mode is running.
func (h *HardwareInterface) Write(ctx context.Context, now time.Time, period time.Duration) error {
	if h.modes == nil {
		return errNotInitialized
	}
	for i, c := range h.commands {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return withKind(ErrInvalidCommand, errors.Errorf("command for %s is %v", h.jointNames[i], c))
		}
	}
	if _, ok := h.modes.running(); !ok {
		return nil
	}
	if err := h.robot.WriteOnce(ctx, h.commands); err != nil {
		return withKind(ErrDevice, errors.Wrap(err, "failed to write commands"))
	}
	return nil
}

// PrepareCommandModeSwitch records which modes are claimed after the switch. start and stop
// hold full interface identifiers such as "panda_joint1/effort". Each mode is claimed or
// released as a whole: all seven joints or none. Effort and velocity are never claimed at the
// same time, so starting velocity while effort is claimed fails with ErrValidation unless the
// same request stops effort.
func (h *HardwareInterface) PrepareCommandModeSwitch(start, stop []string) error {
	if h.modes == nil {
		return errNotInitialized
	}
	if err := h.modes.prepare(start, stop); err != nil {
		h.logger.Warnw("mode switch rejected", "start", start, "stop", stop, "error", err)
		return err
	}
	return nil
}

// PerformCommandModeSwitch starts and stops robot control to match the prepared claims.
func (h *HardwareInterface) PerformCommandModeSwitch(ctx context.Context, start, stop []string) error {
	if h.modes == nil {
		return errNotInitialized
	}
	return h.modes.perform(ctx, h.robot, h.resetCommands)
}

// RunningMode returns the mode the robot is streaming, if any.
func (h *HardwareInterface) RunningMode() (Mode, bool) {
	if h.modes == nil {
		return 0, false
	}
	return h.modes.running()
}

// Claimed reports whether the framework has claimed mode.
func (h *HardwareInterface) Claimed(mode Mode) bool {
	if h.modes == nil || mode < ModeEffort || mode > ModeVelocity {
		return false
	}
	return h.modes.claims[mode].claimed
}

// Close stops a running mode and closes the robot.
func (h *HardwareInterface) Close(ctx context.Context) error {
	if h.robot == nil {
		return nil
	}
	var err error
	if _, ok := h.RunningMode(); ok {
		err = h.robot.StopRobot(ctx)
		h.modes.stopped()
	}
	err = multierr.Combine(err, h.robot.Close(ctx))
	h.robot = nil
	h.modes = nil
	return err
}

func (h *HardwareInterface) resetCommands() {
	h.commands = libfranka.JointVector{}
}
