package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Stream identifies which output a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

const (
	// defaultGracefulTimeout is how long a cancelled child gets between
	// SIGTERM and SIGKILL.
	defaultGracefulTimeout = 10 * time.Second

	// maxLineLength bounds one output line. A longer line stops capture
	// and the rest of that stream is discarded.
	maxLineLength = 64 * 1024
)

// Command describes one child process.
type Command struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout defaults to 10s.
	GracefulTimeout time.Duration
}

// Result describes a finished child.
type Result struct {
	// ExitCode is -1 when the child was killed by a signal.
	ExitCode int
	Duration time.Duration
	PID      int
}

// LineFunc receives output lines without their trailing newline.
// Calls are serialised.
type LineFunc func(stream Stream, line string)

// Logger defines the logging interface for the runner.
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

// Runner starts child processes. It is safe for concurrent use.
type Runner struct {
	logger Logger
}

// NewRunner creates a runner that logs nothing until SetLogger is called.
func NewRunner() *Runner {
	return &Runner{logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run starts cmd, streams its output to onLine and waits for it to exit.
//
// The error is non-nil only when the child could not be started or ctx
// ended the run; a non-zero exit status is reported in Result.ExitCode.
func (r *Runner) Run(ctx context.Context, cmd Command, onLine LineFunc) (Result, error) {
	if onLine == nil {
		onLine = func(Stream, string) {}
	}
	graceful := cmd.GracefulTimeout
	if graceful <= 0 {
		graceful = defaultGracefulTimeout
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // Binary is confined to the scripts directory by the caller

	// Own process group so cancellation reaches grandchildren too
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = graceful

	if cmd.Env != nil {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.WorkDir != "" {
		c.Dir = cmd.WorkDir
	}

	stdout, err := c.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("creating stderr pipe: %w", err)
	}

	start := time.Now()
	if err := c.Start(); err != nil {
		return Result{}, fmt.Errorf("starting %s: %w", cmd.Name, err)
	}
	pid := c.Process.Pid
	r.logger.Debug("process started", "name", cmd.Name, "binary", cmd.Binary, "pid", pid)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	emit := func(stream Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		onLine(stream, line)
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.captureOutput(cmd.Name, StreamStdout, stdout, emit)
	}()
	go func() {
		defer wg.Done()
		r.captureOutput(cmd.Name, StreamStderr, stderr, emit)
	}()

	// Pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := c.Wait()

	res := Result{Duration: time.Since(start), PID: pid}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.Warn("process cancelled", "name", cmd.Name, "pid", pid)
		return res, fmt.Errorf("running %s: %w", cmd.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return res, fmt.Errorf("waiting for %s: %w", cmd.Name, waitErr)
	}

	r.logger.Debug("process exited",
		"name", cmd.Name,
		"pid", pid,
		"exit_code", res.ExitCode,
		"duration", res.Duration,
	)
	return res, nil
}

// captureOutput forwards each line of r.
func (r *Runner) captureOutput(name string, stream Stream, rd io.Reader, emit LineFunc) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	for scanner.Scan() {
		emit(stream, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		r.logger.Debug("output stream closed", "name", name, "stream", stream, "error", err)
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, rd)
	}
}
