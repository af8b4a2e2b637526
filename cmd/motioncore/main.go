// Command motioncore is the operator entrypoint for the motion-control
// core: run the cyclic executor, dry-run a G-code program against the
// trajectory generator, or print field-bus/drive diagnostics.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/Benergy80/Kuka-Jetson-Conversion/collision"
	"github.com/Benergy80/Kuka-Jetson-Conversion/config"
	"github.com/Benergy80/Kuka-Jetson-Conversion/control"
	"github.com/Benergy80/Kuka-Jetson-Conversion/drive"
	"github.com/Benergy80/Kuka-Jetson-Conversion/estop"
	"github.com/Benergy80/Kuka-Jetson-Conversion/executor"
	"github.com/Benergy80/Kuka-Jetson-Conversion/fieldbus"
	"github.com/Benergy80/Kuka-Jetson-Conversion/gcode"
	"github.com/Benergy80/Kuka-Jetson-Conversion/gpio"
	"github.com/Benergy80/Kuka-Jetson-Conversion/limits"
	"github.com/Benergy80/Kuka-Jetson-Conversion/logging"
	"github.com/Benergy80/Kuka-Jetson-Conversion/mode"
	"github.com/Benergy80/Kuka-Jetson-Conversion/safety"
	"github.com/Benergy80/Kuka-Jetson-Conversion/trajectory"
	"github.com/Benergy80/Kuka-Jetson-Conversion/watchdog"
)

func main() {
	app := &cli.App{
		Name:  "motioncore",
		Usage: "six-axis motion-control core",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file"},
			&cli.BoolFlag{Name: "gpio-sim", Usage: "force GPIO simulation regardless of config"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug|info|warn|error"},
		},
		Commands: []*cli.Command{
			runCommand(),
			gcodeDryRunCommand(),
			statusCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.Bool("gpio-sim") {
		cfg.GPIOSimulation = true
	}
	return cfg, nil
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}

// runCommand assembles the GPIO chip, E-stop coordinator, watchdog, limit
// and collision envelopes, safety monitor, PID control law, drive axes,
// field-bus master, mode manager and cyclic executor over the loaded config,
// and runs the executor until interrupted. Kinematics, trajectory
// generation and the G-code interpreter are not wired into this command.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "bring up the field-bus and drives and run the cyclic executor",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := logging.NewLogger("motioncore", parseLevel(c.String("log-level")))

			chip, err := gpio.New(nil, cfg.GPIOSimulation)
			if err != nil {
				return err
			}
			defer chip.Close()

			es := estop.New(chip, logger.Sub("estop"))

			wd := watchdog.New(
				time.Duration(cfg.WatchdogTimeoutMs*float64(time.Millisecond)),
				func() { es.Trigger(estop.WatchdogTimeout, "cyclic loop watchdog timeout") },
				logger.Sub("watchdog"),
			)
			wd.Start()
			defer wd.Stop()

			limEnv := &limits.Envelope{Limits: limits.FromConfig(cfg.JointLimits)}
			colEnv := collision.NewEnvelope(cfg.Workspace)
			mon := safety.NewMonitor(limEnv, colEnv, 0, wd, es, logger.Sub("safety"))

			gains := make([]control.Gains, len(cfg.Joints))
			for i, g := range cfg.Joints {
				gains[i] = control.Gains{
					Kp: g.Kp, Ki: g.Ki, Kd: g.Kd, KffV: g.KffV, KffA: g.KffA,
					IntegralLimit: g.IntegralLimit, OutputLimit: g.OutputLimit,
					Inertia: g.Inertia, CoulombFric: g.CoulombFric, ViscousFric: g.ViscousFric,
				}
			}
			ctrl := control.NewMultiJoint(gains, nil)

			axes := make([]*drive.Axis, cfg.NumJoints())
			for i := range axes {
				axes[i] = drive.NewAxis(drive.Params{EncoderResolution: 4096, GearRatio: 1})
			}

			transport := fieldbus.NewSimTransport(cfg.NumJoints())
			bus := fieldbus.NewMaster(transport, logger.Sub("fieldbus"))
			if err := bus.Bringup(); err != nil {
				return err
			}

			modeManager := mode.NewManager(logger.Sub("mode"))
			modeManager.RequestModeChange(mode.GCode, "cli run", false)

			exec := executor.New(cfg, bus, axes, wd, mon, ctrl, logger.Sub("executor"))
			exec.Start()
			logger.Infow("motioncore running", "joints", cfg.NumJoints())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			logger.Infow("motioncore stopping")
			if !exec.Stop() {
				return cli.Exit("executor did not stop within its join budget", 1)
			}
			return nil
		},
	}
}

// gcodeDryRunCommand parses a G-code file and prints the resulting commands
// without driving any hardware.
func gcodeDryRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "gcode-dry-run",
		Usage:     "parse a G-code program and print the resulting commands",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("expected exactly one G-code file argument", 1)
			}
			data, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			prog, err := gcode.Parse(string(data))
			if err != nil {
				return err
			}
			for _, r := range prog.Reports {
				fmt.Printf("line %d: %s\n", r.Line, r.Message)
			}
			fmt.Print(prog.String())

			points, err := trajectory.FromProgram(prog, nil, nil)
			if err != nil {
				return err
			}
			fmt.Printf("expanded to %d trajectory points\n", len(points))
			return nil
		},
	}
}

// statusCommand prints a snapshot of field-bus cycle-time health and slave
// count as a table, via go-pretty. Drive states are not reported.
func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print field-bus diagnostics",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			transport := fieldbus.NewSimTransport(cfg.NumJoints())
			bus := fieldbus.NewMaster(transport, nil)
			if err := bus.Bringup(); err != nil {
				return err
			}
			for i := 0; i < 10; i++ {
				if _, err := bus.ExchangePDO(make([][6]byte, cfg.NumJoints())); err != nil {
					return err
				}
			}
			printDiagnostics(bus, cfg)
			return nil
		},
	}
}

func printDiagnostics(bus *fieldbus.Master, cfg *config.Config) {
	s := bus.CycleStats()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("field-bus diagnostics")
	t.AppendHeader(table.Row{"network state", "slaves", "mean", "max", "min", "stddev", "samples", "degraded"})
	t.AppendRow(table.Row{
		bus.State(), cfg.NumJoints(), s.Mean, s.Max, s.Min, s.StdDev, s.Count,
		bus.Degraded(400 * time.Microsecond),
	})
	t.Render()
}
