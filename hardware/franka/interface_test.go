package franka

import (
	"context"
	"fmt"
	"math"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	libfranka "github.com/frankahw/frankahw/franka"
	"github.com/frankahw/frankahw/franka/fake"
	"github.com/frankahw/frankahw/hardware"
	"github.com/frankahw/frankahw/logging"
)

func jointName(i int) string {
	return fmt.Sprintf("panda_joint%d", i+1)
}

func testInfo() *hardware.Info {
	info := &hardware.Info{
		Name:       "panda",
		Type:       "system",
		Plugin:     "franka_hardware/FrankaHardwareInterface",
		Parameters: map[string]interface{}{"robot_ip": "172.16.0.2"},
	}
	for i := 0; i < NumJoints; i++ {
		info.Joints = append(info.Joints, hardware.ComponentInfo{
			Name: jointName(i),
			CommandInterfaces: []hardware.InterfaceInfo{
				{Name: hardware.InterfaceEffort},
				{Name: hardware.InterfaceVelocity},
			},
			StateInterfaces: []hardware.InterfaceInfo{
				{Name: hardware.InterfacePosition},
				{Name: hardware.InterfaceVelocity},
				{Name: hardware.InterfaceEffort},
			},
		})
	}
	return info
}

func modeInterfaces(m Mode, joints ...int) []string {
	if len(joints) == 0 {
		for i := 0; i < NumJoints; i++ {
			joints = append(joints, i)
		}
	}
	ids := make([]string, 0, len(joints))
	for _, i := range joints {
		ids = append(ids, jointName(i)+"/"+m.Interface())
	}
	return ids
}

func newTestInterface(t *testing.T) (*HardwareInterface, *fake.Robot) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	robot := fake.NewRobot(logger)
	h := New(logger, robot)
	test.That(t, h.Init(context.Background(), testInfo()), test.ShouldBeNil)
	return h, robot
}

func switchModes(t *testing.T, h *HardwareInterface, start, stop []string) {
	t.Helper()
	test.That(t, h.PrepareCommandModeSwitch(start, stop), test.ShouldBeNil)
	test.That(t, h.PerformCommandModeSwitch(context.Background(), start, stop), test.ShouldBeNil)
}

func TestInitValidation(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(info *hardware.Info)
		errMsg string
	}{
		{
			name:   "too few joints",
			modify: func(info *hardware.Info) { info.Joints = info.Joints[:6] },
			errMsg: "got 6 joints, expected 7",
		},
		{
			name:   "too many joints",
			modify: func(info *hardware.Info) { info.Joints = append(info.Joints, info.Joints[0]) },
			errMsg: "got 8 joints, expected 7",
		},
		{
			name:   "duplicate joint",
			modify: func(info *hardware.Info) { info.Joints[6].Name = info.Joints[0].Name },
			errMsg: "joint names must be unique",
		},
		{
			name: "missing command interface",
			modify: func(info *hardware.Info) {
				info.Joints[2].CommandInterfaces = info.Joints[2].CommandInterfaces[:1]
			},
			errMsg: `joint "panda_joint3" has 1 command interfaces, expected 2`,
		},
		{
			name: "wrong command interface",
			modify: func(info *hardware.Info) {
				info.Joints[0].CommandInterfaces[1].Name = hardware.InterfacePosition
			},
			errMsg: `joint "panda_joint1" has command interfaces [effort position]`,
		},
		{
			name: "duplicate command interface",
			modify: func(info *hardware.Info) {
				info.Joints[0].CommandInterfaces[1].Name = hardware.InterfaceEffort
			},
			errMsg: `joint "panda_joint1" has command interfaces [effort effort]`,
		},
		{
			name: "missing state interface",
			modify: func(info *hardware.Info) {
				info.Joints[4].StateInterfaces = info.Joints[4].StateInterfaces[:2]
			},
			errMsg: `joint "panda_joint5" has 2 state interfaces, expected 3`,
		},
		{
			name: "state interfaces out of order",
			modify: func(info *hardware.Info) {
				s := info.Joints[1].StateInterfaces
				s[1], s[2] = s[2], s[1]
			},
			errMsg: `joint "panda_joint2" has state interface "effort" at position 1, expected "velocity"`,
		},
		{
			name:   "missing robot_ip",
			modify: func(info *hardware.Info) { delete(info.Parameters, "robot_ip") },
			errMsg: "robot_ip",
		},
		{
			name:   "bad timeout",
			modify: func(info *hardware.Info) { info.Parameters["connect_timeout"] = "soon" },
			errMsg: "invalid parameters",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info := testInfo()
			tc.modify(info)
			h := New(logging.NewTestLogger(t), fake.NewRobot(logging.NewTestLogger(t)))
			err := h.Init(context.Background(), info)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}

	err := New(logging.NewTestLogger(t), nil).Init(context.Background(), nil)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)
}

func TestInitCommandInterfaceOrder(t *testing.T) {
	info := testInfo()
	for i := range info.Joints {
		c := info.Joints[i].CommandInterfaces
		c[0], c[1] = c[1], c[0]
	}
	h := New(logging.NewTestLogger(t), fake.NewRobot(logging.NewTestLogger(t)))
	test.That(t, h.Init(context.Background(), info), test.ShouldBeNil)
}

func TestInitConnection(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	addr := listener.Addr().String()
	test.That(t, listener.Close(), test.ShouldBeNil)

	info := testInfo()
	info.Parameters["robot_ip"] = addr
	info.Parameters["connect_timeout"] = "1s"
	h := New(logging.NewTestLogger(t), nil)
	err = h.Init(context.Background(), info)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrConnection), test.ShouldBeTrue)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeFalse)

	test.That(t, h.Read(context.Background(), time.Now(), 0), test.ShouldBeError, errNotInitialized)
	test.That(t, h.PrepareCommandModeSwitch(nil, nil), test.ShouldBeError, errNotInitialized)
	test.That(t, h.Close(context.Background()), test.ShouldBeNil)
}

func TestFailedInitWithInjectedRobot(t *testing.T) {
	logger := logging.NewTestLogger(t)
	robot := fake.NewRobot(logger)
	h := New(logger, robot)
	ctx := context.Background()

	info := testInfo()
	info.Joints = info.Joints[:NumJoints-1]
	err := h.Init(ctx, info)
	test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)

	test.That(t, h.Activate(ctx), test.ShouldBeError, errNotInitialized)
	test.That(t, h.Deactivate(ctx), test.ShouldBeError, errNotInitialized)
	test.That(t, h.Read(ctx, time.Now(), 0), test.ShouldBeError, errNotInitialized)
	test.That(t, h.Write(ctx, time.Now(), 0), test.ShouldBeError, errNotInitialized)
	h.commands[0] = math.NaN()
	test.That(t, h.Write(ctx, time.Now(), 0), test.ShouldBeError, errNotInitialized)
	test.That(t, h.PerformCommandModeSwitch(ctx, nil, nil), test.ShouldBeError, errNotInitialized)
	test.That(t, robot.Calls(), test.ShouldBeEmpty)

	// The injected robot is still owned and closed.
	test.That(t, h.Close(ctx), test.ShouldBeNil)
	test.That(t, robot.Calls(), test.ShouldResemble, []string{fake.CallClose})
}

func TestExportInterfaces(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()

	states := h.ExportStateInterfaces()
	test.That(t, states, test.ShouldHaveLength, NumJoints*3+2)
	test.That(t, states[0].Name(), test.ShouldEqual, "panda_joint1/position")
	test.That(t, states[1].Name(), test.ShouldEqual, "panda_joint1/velocity")
	test.That(t, states[2].Name(), test.ShouldEqual, "panda_joint1/effort")
	test.That(t, states[20].Name(), test.ShouldEqual, "panda_joint7/effort")
	test.That(t, states[21].Name(), test.ShouldEqual, "panda/robot_state")
	test.That(t, states[22].Name(), test.ShouldEqual, "panda/robot_model")

	robot.SetState(libfranka.State{
		Q:    libfranka.JointVector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7},
		TauJ: libfranka.JointVector{6: -2},
	})
	test.That(t, h.Activate(ctx), test.ShouldBeNil)
	test.That(t, states[3].Value(), test.ShouldAlmostEqual, 0.2)
	test.That(t, states[20].Value(), test.ShouldEqual, 0.0)

	snapshot, ok := states[21].Opaque().(libfranka.State)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, snapshot.Q[6], test.ShouldAlmostEqual, 0.7)
	model, ok := states[22].Opaque().(*libfranka.Model)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, model.Library, test.ShouldResemble, []byte("fake"))

	commands := h.ExportCommandInterfaces()
	test.That(t, commands, test.ShouldHaveLength, NumJoints*2)
	test.That(t, commands[0].Name(), test.ShouldEqual, "panda_joint1/effort")
	test.That(t, commands[1].Name(), test.ShouldEqual, "panda_joint1/velocity")
	commands[0].SetValue(4)
	test.That(t, commands[1].Value(), test.ShouldEqual, 4.0)
	test.That(t, commands[3].Value(), test.ShouldEqual, 0.0)
}

func TestClaimCounts(t *testing.T) {
	for _, m := range modes {
		for n := 0; n <= NumJoints+1; n++ {
			t.Run(fmt.Sprintf("%s/%d", m, n), func(t *testing.T) {
				h, robot := newTestInterface(t)
				var start []string
				for i := 0; i < n; i++ {
					start = append(start, jointName(i%NumJoints)+"/"+m.Interface())
				}
				err := h.PrepareCommandModeSwitch(start, nil)
				switch n {
				case 0:
					test.That(t, err, test.ShouldBeNil)
					test.That(t, h.Claimed(m), test.ShouldBeFalse)
				case NumJoints:
					test.That(t, err, test.ShouldBeNil)
					test.That(t, h.Claimed(m), test.ShouldBeTrue)
				default:
					test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)
					test.That(t, h.Claimed(m), test.ShouldBeFalse)
				}
				test.That(t, robot.Calls(), test.ShouldBeEmpty)
			})
		}
	}
}

func TestClaimDuplicates(t *testing.T) {
	h, _ := newTestInterface(t)
	start := modeInterfaces(ModeEffort, 0, 1, 2, 3, 4, 5, 5)
	err := h.PrepareCommandModeSwitch(start, nil)
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)
	test.That(t, h.Claimed(ModeEffort), test.ShouldBeFalse)
}

func TestClaimIgnoresOtherInterfaces(t *testing.T) {
	h, _ := newTestInterface(t)
	start := append(modeInterfaces(ModeVelocity), "panda_joint1/position", "gripper/effort", "panda_joint1/effort_extra")
	test.That(t, h.PrepareCommandModeSwitch(start, nil), test.ShouldBeNil)
	test.That(t, h.Claimed(ModeVelocity), test.ShouldBeTrue)
	test.That(t, h.Claimed(ModeEffort), test.ShouldBeFalse)
}

func TestStartEffort(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()
	test.That(t, h.Activate(ctx), test.ShouldBeNil)
	robot.ResetCalls()

	switchModes(t, h, modeInterfaces(ModeEffort), nil)
	mode, ok := h.RunningMode()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mode, test.ShouldEqual, ModeEffort)
	test.That(t, robot.CallCount(fake.CallInitTorque), test.ShouldEqual, 1)
	test.That(t, robot.CallCount(fake.CallInitVelocity), test.ShouldEqual, 0)
	test.That(t, robot.Calls(), test.ShouldResemble, []string{fake.CallStopRobot, fake.CallInitTorque})

	// Committing again without new claims touches nothing.
	test.That(t, h.PerformCommandModeSwitch(ctx, nil, nil), test.ShouldBeNil)
	test.That(t, robot.CallCount(fake.CallInitTorque), test.ShouldEqual, 1)
}

func TestPartialStop(t *testing.T) {
	h, robot := newTestInterface(t)
	switchModes(t, h, modeInterfaces(ModeEffort), nil)
	robot.ResetCalls()

	err := h.PrepareCommandModeSwitch(nil, modeInterfaces(ModeEffort, 0, 1, 2))
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "partial stop of effort interfaces not allowed: got 3 of 7")
	test.That(t, h.Claimed(ModeEffort), test.ShouldBeTrue)

	test.That(t, h.PerformCommandModeSwitch(context.Background(), nil, nil), test.ShouldBeNil)
	mode, ok := h.RunningMode()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mode, test.ShouldEqual, ModeEffort)
	test.That(t, robot.Calls(), test.ShouldBeEmpty)
}

func TestPrepareAtomic(t *testing.T) {
	h, _ := newTestInterface(t)
	switchModes(t, h, modeInterfaces(ModeEffort), nil)

	// A valid effort stop combined with a partial velocity start changes nothing.
	err := h.PrepareCommandModeSwitch(modeInterfaces(ModeVelocity, 0, 1), modeInterfaces(ModeEffort))
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)
	test.That(t, h.Claimed(ModeEffort), test.ShouldBeTrue)
	test.That(t, h.Claimed(ModeVelocity), test.ShouldBeFalse)
}

func TestBothModesRejected(t *testing.T) {
	h, _ := newTestInterface(t)
	start := append(modeInterfaces(ModeEffort), modeInterfaces(ModeVelocity)...)
	err := h.PrepareCommandModeSwitch(start, nil)
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)

	switchModes(t, h, modeInterfaces(ModeEffort), nil)
	err = h.PrepareCommandModeSwitch(modeInterfaces(ModeVelocity), nil)
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot be claimed at the same time")
}

func TestSwitchEffortToVelocity(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()
	switchModes(t, h, modeInterfaces(ModeEffort), nil)
	robot.ResetCalls()

	switchModes(t, h, modeInterfaces(ModeVelocity), modeInterfaces(ModeEffort))
	mode, ok := h.RunningMode()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mode, test.ShouldEqual, ModeVelocity)
	test.That(t, robot.Calls(), test.ShouldResemble,
		[]string{fake.CallStopRobot, fake.CallStopRobot, fake.CallInitVelocity})
	test.That(t, robot.Mode(), test.ShouldEqual, libfranka.ModeJointVelocity)

	// Release everything.
	robot.ResetCalls()
	switchModes(t, h, nil, modeInterfaces(ModeVelocity))
	_, ok = h.RunningMode()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, robot.Calls(), test.ShouldResemble, []string{fake.CallStopRobot})

	test.That(t, h.Write(ctx, time.Now(), time.Millisecond), test.ShouldBeNil)
	test.That(t, robot.CallCount(fake.CallWriteOnce), test.ShouldEqual, 0)
}

func TestNeverBothRunning(t *testing.T) {
	h, _ := newTestInterface(t)
	ctx := context.Background()
	requests := [][2][]string{
		{modeInterfaces(ModeEffort), nil},
		{modeInterfaces(ModeVelocity), nil},
		{modeInterfaces(ModeVelocity), modeInterfaces(ModeEffort)},
		{modeInterfaces(ModeEffort), modeInterfaces(ModeVelocity)},
		{modeInterfaces(ModeEffort, 1, 2), nil},
		{nil, modeInterfaces(ModeEffort)},
		{append(modeInterfaces(ModeEffort), modeInterfaces(ModeVelocity)...), nil},
		{modeInterfaces(ModeVelocity), nil},
		{modeInterfaces(ModeEffort), modeInterfaces(ModeVelocity)},
	}
	for i := 0; i < 3; i++ {
		for _, req := range requests {
			_ = h.PrepareCommandModeSwitch(req[0], req[1])
			test.That(t, h.PerformCommandModeSwitch(ctx, req[0], req[1]), test.ShouldBeNil)
			test.That(t, h.modes.claims[ModeEffort].running && h.modes.claims[ModeVelocity].running,
				test.ShouldBeFalse)
		}
	}
}

func TestPerformDeviceErrors(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()

	robot.SetError(fake.CallInitTorque, errors.New("reflex"))
	test.That(t, h.PrepareCommandModeSwitch(modeInterfaces(ModeEffort), nil), test.ShouldBeNil)
	err := h.PerformCommandModeSwitch(ctx, nil, nil)
	test.That(t, errors.Is(err, ErrDevice), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "reflex")
	_, ok := h.RunningMode()
	test.That(t, ok, test.ShouldBeFalse)

	// The claim stays, so the next commit retries.
	robot.SetError(fake.CallInitTorque, nil)
	test.That(t, h.PerformCommandModeSwitch(ctx, nil, nil), test.ShouldBeNil)
	mode, ok := h.RunningMode()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mode, test.ShouldEqual, ModeEffort)

	robot.SetError(fake.CallStopRobot, errors.New("stop refused"))
	test.That(t, h.PrepareCommandModeSwitch(nil, modeInterfaces(ModeEffort)), test.ShouldBeNil)
	err = h.PerformCommandModeSwitch(ctx, nil, nil)
	test.That(t, errors.Is(err, ErrDevice), test.ShouldBeTrue)
	mode, ok = h.RunningMode()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mode, test.ShouldEqual, ModeEffort)
}

func TestWriteNonFinite(t *testing.T) {
	ctx := context.Background()
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		for joint := 0; joint < NumJoints; joint++ {
			h, robot := newTestInterface(t)
			switchModes(t, h, modeInterfaces(ModeVelocity), nil)
			commands := h.ExportCommandInterfaces()
			commands[joint*2+1].SetValue(bad)

			err := h.Write(ctx, time.Now(), time.Millisecond)
			test.That(t, errors.Is(err, ErrInvalidCommand), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, jointName(joint))
			test.That(t, robot.CallCount(fake.CallWriteOnce), test.ShouldEqual, 0)
		}
	}
}

func TestWriteNotRunning(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()
	h.ExportCommandInterfaces()[0].SetValue(1)
	test.That(t, h.Write(ctx, time.Now(), time.Millisecond), test.ShouldBeNil)
	test.That(t, robot.CallCount(fake.CallWriteOnce), test.ShouldEqual, 0)

	// Claimed but not yet committed is still not running.
	test.That(t, h.PrepareCommandModeSwitch(modeInterfaces(ModeEffort), nil), test.ShouldBeNil)
	test.That(t, h.Write(ctx, time.Now(), time.Millisecond), test.ShouldBeNil)
	test.That(t, robot.CallCount(fake.CallWriteOnce), test.ShouldEqual, 0)
}

func TestCommandsResetOnStart(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()
	commands := h.ExportCommandInterfaces()
	for _, c := range commands {
		c.SetValue(5)
	}

	switchModes(t, h, modeInterfaces(ModeEffort), nil)
	for _, c := range commands {
		test.That(t, c.Value(), test.ShouldEqual, 0.0)
	}
	test.That(t, h.Write(ctx, time.Now(), time.Millisecond), test.ShouldBeNil)
	test.That(t, robot.LastCommand(), test.ShouldResemble, libfranka.JointVector{})

	commands[2].SetValue(1.5)
	test.That(t, h.Write(ctx, time.Now(), time.Millisecond), test.ShouldBeNil)
	test.That(t, robot.LastCommand(), test.ShouldResemble, libfranka.JointVector{1: 1.5})

	// Switching to velocity zeroes the torques again.
	switchModes(t, h, modeInterfaces(ModeVelocity), modeInterfaces(ModeEffort))
	for _, c := range commands {
		test.That(t, c.Value(), test.ShouldEqual, 0.0)
	}
}

func TestReadFetchesModelOnce(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		test.That(t, h.Read(ctx, time.Now(), time.Millisecond), test.ShouldBeNil)
	}
	test.That(t, robot.CallCount(fake.CallModel), test.ShouldEqual, 1)
	test.That(t, robot.CallCount(fake.CallReadOnce), test.ShouldEqual, 5)
	test.That(t, robot.Calls()[0], test.ShouldEqual, fake.CallModel)
}

func TestReadErrors(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()

	robot.SetError(fake.CallModel, errors.New("no model"))
	err := h.Read(ctx, time.Now(), 0)
	test.That(t, errors.Is(err, ErrDevice), test.ShouldBeTrue)
	test.That(t, robot.CallCount(fake.CallReadOnce), test.ShouldEqual, 0)

	robot.SetError(fake.CallModel, nil)
	robot.SetError(fake.CallReadOnce, errors.New("communication constraints violation"))
	err = h.Read(ctx, time.Now(), 0)
	test.That(t, errors.Is(err, ErrDevice), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "communication constraints violation")

	robot.SetError(fake.CallReadOnce, nil)
	test.That(t, h.Read(ctx, time.Now(), 0), test.ShouldBeNil)
	test.That(t, robot.CallCount(fake.CallModel), test.ShouldEqual, 2)
}

func TestActivateDeactivate(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()
	h.ExportCommandInterfaces()[0].SetValue(3)

	test.That(t, h.Activate(ctx), test.ShouldBeNil)
	test.That(t, h.ExportCommandInterfaces()[0].Value(), test.ShouldEqual, 0.0)
	test.That(t, robot.CallCount(fake.CallReadOnce), test.ShouldEqual, 1)

	switchModes(t, h, modeInterfaces(ModeEffort), nil)
	robot.ResetCalls()
	test.That(t, h.Deactivate(ctx), test.ShouldBeNil)
	test.That(t, robot.Calls(), test.ShouldResemble, []string{fake.CallStopRobot})
	_, ok := h.RunningMode()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, h.Claimed(ModeEffort), test.ShouldBeTrue)

	// Deactivating an idle robot still stops it.
	test.That(t, h.Deactivate(ctx), test.ShouldBeNil)
	test.That(t, robot.CallCount(fake.CallStopRobot), test.ShouldEqual, 2)

	// A new commit restarts the claimed mode.
	test.That(t, h.Activate(ctx), test.ShouldBeNil)
	test.That(t, h.PerformCommandModeSwitch(ctx, nil, nil), test.ShouldBeNil)
	mode, ok := h.RunningMode()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mode, test.ShouldEqual, ModeEffort)

	robot.SetError(fake.CallStopRobot, errors.New("stop refused"))
	err := h.Deactivate(ctx)
	test.That(t, errors.Is(err, ErrDevice), test.ShouldBeTrue)
}

func TestClose(t *testing.T) {
	h, robot := newTestInterface(t)
	ctx := context.Background()
	switchModes(t, h, modeInterfaces(ModeVelocity), nil)
	robot.ResetCalls()

	robot.SetError(fake.CallClose, errors.New("close failed"))
	robot.SetError(fake.CallStopRobot, errors.New("stop failed"))
	err := h.Close(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "stop failed")
	test.That(t, err.Error(), test.ShouldContainSubstring, "close failed")
	test.That(t, robot.Calls(), test.ShouldResemble, []string{fake.CallStopRobot, fake.CallClose})

	test.That(t, h.Close(ctx), test.ShouldBeNil)
	test.That(t, h.Write(ctx, time.Now(), 0), test.ShouldBeError, errNotInitialized)
}
