package automation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-hub/internal/journal"
	"github.com/nerrad567/gray-logic-hub/internal/process"
)

// Logger defines the logging interface used by the executor and runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Devices resolves device names to controllers. *device.Registry satisfies it.
type Devices interface {
	Get(name string) (*device.Controller, error)
}

// StartupStore persists the last value an action wrote to an element.
type StartupStore interface {
	SetStartupStatus(ctx context.Context, s device.StartupStatus) error
}

// Journal records execution outcomes. *journal.Journal satisfies it.
type Journal interface {
	Record(ctx context.Context, origin journal.Origin, name, message string)
}

// CommandRunner spawns system commands. *process.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, cmd process.Command, onLine process.LineFunc) (process.Result, error)
}

type noopJournal struct{}

func (noopJournal) Record(context.Context, journal.Origin, string, string) {}

// ExecutorConfig holds the executor's collaborators.
// Devices is required; the rest are optional.
type ExecutorConfig struct {
	Devices  Devices
	Startup  StartupStore
	Journal  Journal
	Commands CommandRunner

	// ScriptsDir confines run_system_command. Empty disables the action type.
	ScriptsDir string

	Metrics *metrics.Metrics
	Logger  Logger
}

// Executor runs single actions.
//
// Thread Safety: Execute is safe for concurrent use. Device I/O is
// serialised by each device's Controller, never by the executor.
type Executor struct {
	devices    Devices
	startup    StartupStore
	journal    Journal
	commands   CommandRunner
	scriptsDir string
	metrics    *metrics.Metrics
	logger     Logger

	// scripts is wired by NewRunner so run_script can recurse.
	scripts *Runner
}

// NewExecutor creates an executor from cfg.
func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		devices:    cfg.Devices,
		startup:    cfg.Startup,
		journal:    cfg.Journal,
		commands:   cfg.Commands,
		scriptsDir: cfg.ScriptsDir,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
	if e.journal == nil {
		e.journal = noopJournal{}
	}
	if e.commands == nil {
		e.commands = process.NewRunner()
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	return e
}

// Execute runs one action and journals its outcome.
//
// Returns nil on success. A disabled target device is a failure
// (device.ErrDisabled). Failures to persist startup status are logged only.
func (e *Executor) Execute(ctx context.Context, a Action) error {
	start := time.Now()
	err := e.execute(ctx, a)
	elapsed := time.Since(start)

	e.metrics.ActionExecuted(string(a.Type), metrics.Result(err))
	if err != nil {
		e.logger.Warn("action failed",
			"action_id", a.ID,
			"action", a.Name,
			"type", a.Type,
			"error", err,
		)
		e.journal.Record(ctx, journal.OriginAction, a.Name,
			fmt.Sprintf("action %d (%s) failed: %v", a.ID, a.Type, err))
		return err
	}

	e.logger.Debug("action executed",
		"action_id", a.ID,
		"action", a.Name,
		"type", a.Type,
		"duration", elapsed,
	)
	e.journal.Record(ctx, journal.OriginAction, a.Name,
		fmt.Sprintf("action %d (%s) succeeded in %s", a.ID, a.Type, elapsed.Round(time.Millisecond)))
	return nil
}

func (e *Executor) execute(ctx context.Context, a Action) error { //nolint:gocyclo // one case per action type
	switch a.Type {
	case ActionSetSwitch:
		v, err := parseSwitch(a.Params)
		if err != nil {
			return err
		}
		c, err := e.controller(a.Device)
		if err != nil {
			return err
		}
		got, err := c.WriteSwitch(ctx, a.Element, v)
		if err != nil {
			return err
		}
		e.saveStartup(ctx, device.StartupStatus{Device: a.Device, Kind: device.KindSwitch, Element: a.Element, Value: float64(got)})
		return nil

	case ActionToggleSwitch:
		c, err := e.controller(a.Device)
		if err != nil {
			return err
		}
		got, err := c.ToggleSwitch(ctx, a.Element)
		if err != nil {
			return err
		}
		e.saveStartup(ctx, device.StartupStatus{Device: a.Device, Kind: device.KindSwitch, Element: a.Element, Value: float64(got)})
		return nil

	case ActionSetDimmer:
		v, err := parseDimmer(a.Params)
		if err != nil {
			return err
		}
		c, err := e.controller(a.Device)
		if err != nil {
			return err
		}
		got, err := c.WriteDimmer(ctx, a.Element, v)
		if err != nil {
			return err
		}
		e.saveStartup(ctx, device.StartupStatus{Device: a.Device, Kind: device.KindDimmer, Element: a.Element, Value: float64(got)})
		return nil

	case ActionSetHeater:
		set, maxC, err := parseHeater(a.Params)
		if err != nil {
			return err
		}
		c, err := e.controller(a.Device)
		if err != nil {
			return err
		}
		h, err := c.WriteHeater(ctx, a.Element, set, maxC)
		if err != nil {
			return err
		}
		e.saveStartup(ctx, device.StartupStatus{Device: a.Device, Kind: device.KindHeater, Element: a.Element, Value: h.Max, Flag: h.Set})
		return nil

	case ActionRunScript:
		id, err := parseScriptID(a.Params)
		if err != nil {
			return err
		}
		if e.scripts == nil {
			return fmt.Errorf("%w: no script runner", ErrInvalidAction)
		}
		return e.scripts.Run(ctx, id)

	case ActionSleep:
		d, err := parseSleep(a.Params)
		if err != nil {
			return err
		}
		return sleep(ctx, d)

	case ActionRunSystemCommand:
		return e.runCommand(ctx, a)
	}
	return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
}

// controller resolves an enabled device.
func (e *Executor) controller(name string) (*device.Controller, error) {
	if e.devices == nil {
		return nil, fmt.Errorf("%s: %w", name, device.ErrDeviceNotFound)
	}
	c, err := e.devices.Get(name)
	if err != nil {
		return nil, err
	}
	if !c.Enabled() {
		return nil, fmt.Errorf("%s: %w", name, device.ErrDisabled)
	}
	return c, nil
}

func (e *Executor) saveStartup(ctx context.Context, s device.StartupStatus) {
	if e.startup == nil {
		return
	}
	if err := e.startup.SetStartupStatus(ctx, s); err != nil {
		e.logger.Warn("saving startup status failed",
			"device", s.Device,
			"kind", s.Kind,
			"element", s.Element,
			"error", err,
		)
	}
}

// runCommand spawns a script from the scripts directory, journalling each
// stdout line. A non-zero exit is logged, not failed.
func (e *Executor) runCommand(ctx context.Context, a Action) error {
	if e.scriptsDir == "" {
		return ErrCommandsDisabled
	}
	rel, args, err := parseCommand(a.Params)
	if err != nil {
		return err
	}
	path, err := confine(e.scriptsDir, rel)
	if err != nil {
		return err
	}

	res, err := e.commands.Run(ctx, process.Command{
		Name:    a.Name,
		Binary:  path,
		Args:    args,
		WorkDir: e.scriptsDir,
	}, func(stream process.Stream, line string) {
		if stream == process.StreamStdout {
			e.journal.Record(ctx, journal.OriginCommand, a.Name, line)
			return
		}
		e.logger.Debug("command stderr", "action", a.Name, "line", line)
	})
	if err != nil {
		return fmt.Errorf("running %s: %w", rel, err)
	}
	if res.ExitCode != 0 {
		e.logger.Warn("system command exited non-zero",
			"action", a.Name,
			"command", rel,
			"exit_code", res.ExitCode,
			"duration", res.Duration,
		)
	}
	return nil
}

// confine resolves rel under dir, following symlinks, and rejects results
// that land outside dir.
func confine(dir, rel string) (string, error) {
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("resolving scripts directory: %w", err)
	}
	path, err := filepath.EvalSymlinks(filepath.Join(root, rel))
	if err != nil {
		return "", fmt.Errorf("resolving command %s: %w", rel, err)
	}
	inside, err := filepath.Rel(root, path)
	if err != nil || !filepath.IsLocal(inside) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return path, nil
}

// sleep waits for d or until ctx ends. No device lock is held.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", context.Cause(ctx))
	}
}
