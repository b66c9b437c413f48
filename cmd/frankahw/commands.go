package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/frankahw/frankahw/control"
	libfranka "github.com/frankahw/frankahw/franka"
	"github.com/frankahw/frankahw/franka/fake"
	"github.com/frankahw/frankahw/hardware"
	hwfranka "github.com/frankahw/frankahw/hardware/franka"
	"github.com/frankahw/frankahw/logging"
	"github.com/frankahw/frankahw/utils"
)

const releaseTimeout = 5 * time.Second

// newLogger builds the logger for one command from the global flags. The returned closer
// releases the log file, if any.
func newLogger(c *cli.Context) (logging.Logger, io.Closer) {
	logger := logging.NewLogger("frankahw")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("frankahw")
	}
	var closer io.Closer = io.NopCloser(nil)
	if path := c.String(flagLogFile); path != "" {
		appender, fileCloser := logging.NewFileAppender(path)
		logger.AddAppender(appender)
		closer = fileCloser
	}
	logging.ReplaceGlobal(logger)
	return logger, closer
}

func loadDescription(c *cli.Context) (*hardware.Info, error) {
	if c.NArg() != 1 {
		return nil, errors.Errorf("%s expects exactly one hardware description file", c.Command.Name)
	}
	return hardware.LoadInfo(c.Args().First())
}

// CheckCommand validates a hardware description.
func CheckCommand(c *cli.Context) error {
	info, err := loadDescription(c)
	if err != nil {
		return err
	}
	conf, err := hwfranka.ValidateInfo(info)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %d joints, robot at %s\n", info.Name, len(info.Joints), conf.RobotIP)
	names := lo.Keys(info.Parameters)
	sort.Strings(names)
	for _, name := range names {
		if v, ok := info.Parameter(name); ok {
			fmt.Fprintf(c.App.Writer, "  %s = %s\n", name, v)
		}
	}
	return nil
}

// InterfacesCommand prints the interfaces the arm exports for a hardware description.
func InterfacesCommand(c *cli.Context) error {
	info, err := loadDescription(c)
	if err != nil {
		return err
	}
	logger := logging.NewBlankLogger("interfaces")
	hw := hwfranka.New(logger, fake.NewRobot(logger))
	if err := hw.Init(c.Context, info); err != nil {
		return err
	}

	fmt.Fprint(c.App.Writer, interfaceTable(hw.ExportStateInterfaces(), hw.ExportCommandInterfaces()))
	fmt.Fprintln(c.App.Writer)
	return hw.Close(c.Context)
}

func interfaceTable(states []hardware.StateInterface, commands []hardware.CommandInterface) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Component", "Interface", "Kind", "Value"})
	row := 1
	for _, s := range states {
		value := "float64"
		if s.IsOpaque() {
			value = "opaque"
		}
		t.AppendRow(table.Row{row, s.Prefix(), s.Interface(), "state", value})
		row++
	}
	for _, cmd := range commands {
		t.AppendRow(table.Row{row, cmd.Prefix(), cmd.Interface(), "command", "float64"})
		row++
	}
	return t.Render()
}

func logFinalState(logger logging.Logger, ifaces *control.Interfaces) {
	s, ok := ifaces.State(hwfranka.DevicePrefix + "/" + hwfranka.RobotStateInterface)
	if !ok {
		return
	}
	state, err := utils.AssertType[libfranka.State](s.Opaque())
	if err != nil {
		logger.Warnw("no robot state", "error", err)
		return
	}
	logger.Infow("final robot state", "time", state.Time.String(), "q", state.Q, "dq", state.DQ)
}

func parseMode(s string) (hwfranka.Mode, error) {
	switch s {
	case hwfranka.ModeEffort.String():
		return hwfranka.ModeEffort, nil
	case hwfranka.ModeVelocity.String():
		return hwfranka.ModeVelocity, nil
	}
	return 0, errors.Errorf("unknown mode %q, expected effort or velocity", s)
}

// RunCommand holds the arm in the requested mode until interrupted or until the duration ends.
func RunCommand(c *cli.Context) (err error) {
	mode, err := parseMode(c.String(runFlagMode))
	if err != nil {
		return err
	}
	info, err := loadDescription(c)
	if err != nil {
		return err
	}
	logger, closer := newLogger(c)
	defer func() {
		err = multierr.Combine(err, logger.Sync(), closer.Close())
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Bool(flagDebug) {
		ctx = logging.EnableDebugMode(ctx, "run")
	}

	var robot libfranka.Robot
	if c.Bool(runFlagFake) {
		robot = fake.NewRobot(logger.Sublogger("fake"))
	}
	hw := hwfranka.New(logger.Sublogger("hardware"), robot)
	if err := hw.Init(ctx, info); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, hw.Close(context.Background()))
	}()

	loop, err := control.NewLoop(logger.Sublogger("loop"), control.Config{Frequency: c.Float64(runFlagHz)}, hw, nil)
	if err != nil {
		return err
	}
	joints := make([]string, 0, len(info.Joints))
	claim := make([]string, 0, len(info.Joints))
	for _, j := range info.Joints {
		joints = append(joints, j.Name)
		claim = append(claim, j.Name+"/"+mode.Interface())
	}
	damping, err := control.NewJointDamping(joints, c.Float64(runFlagDamping))
	if err != nil {
		return err
	}
	loop.SetController(damping)

	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, loop.Stop(context.Background()))
		stats := loop.Stats()
		logger.Infow("loop stopped", "ticks", stats.Ticks, "read_errors", stats.ReadErrors,
			"write_errors", stats.WriteErrors, "switch_errors", stats.SwitchErrors)
		logFinalState(logger, loop.Interfaces())
	}()

	if err := loop.RequestSwitch(ctx, claim, nil); err != nil {
		return errors.Wrapf(err, "failed to claim %s interfaces", mode)
	}
	logger.Infow("holding arm", "mode", mode.String(), "damping", damping.Gain, "frequency", loop.Frequency())

	if d := c.Duration(runFlagDuration); d > 0 {
		goutils.SelectContextOrWait(ctx, d)
	} else {
		<-ctx.Done()
	}

	releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := loop.RequestSwitch(releaseCtx, nil, claim); err != nil {
		return errors.Wrapf(err, "failed to release %s interfaces", mode)
	}
	return nil
}
