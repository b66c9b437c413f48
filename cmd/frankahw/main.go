// Package main is the frankahw command line tool. It checks hardware descriptions, lists the
// interfaces an arm exports and runs an arm under a damping controller.
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/frankahw/frankahw/logging"
)

const (
	// Flags.
	runFlagMode     = "mode"
	runFlagHz       = "hz"
	runFlagDamping  = "damping"
	runFlagDuration = "duration"
	runFlagFake     = "fake"
	flagLogFile     = "log-file"
	flagDebug       = "debug"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "frankahw",
		Usage: "drive a Franka arm through its hardware interface",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "validate a hardware description without connecting",
				ArgsUsage: "<description>",
				Action:    CheckCommand,
			},
			{
				Name:      "interfaces",
				Usage:     "list the state and command interfaces of a hardware description",
				ArgsUsage: "<description>",
				Action:    InterfacesCommand,
			},
			{
				Name:      "run",
				Usage:     "connect, claim a command mode and hold the arm with joint damping",
				ArgsUsage: "<description>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  runFlagMode,
						Value: "effort",
						Usage: "command mode to claim, effort or velocity",
					},
					&cli.Float64Flag{
						Name:  runFlagHz,
						Value: 1000,
						Usage: "control loop frequency",
					},
					&cli.Float64Flag{
						Name:  runFlagDamping,
						Value: 2.0,
						Usage: "joint damping in Nm per rad/s for effort mode",
					},
					&cli.DurationFlag{
						Name:  runFlagDuration,
						Usage: "stop after this long, run until interrupted when zero",
					},
					&cli.BoolFlag{
						Name:  runFlagFake,
						Usage: "use a simulated robot instead of connecting",
					},
				},
				Action: RunCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.Global().Error(err)
		os.Exit(1)
	}
}
