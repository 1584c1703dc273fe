// Package shell runs the external programs the pipeline delegates to:
// block device tooling, mount, and the container image CLI.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

// Runner executes external programs.
// A non-zero exit status is always reported as a *CommandError.
type Runner interface {
	// Output runs cmd and returns its captured stdout.
	Output(ctx context.Context, cmd string, args ...string) (string, error)
	// Passthrough runs cmd with stdout and stderr forwarded to the runner's streams.
	Passthrough(ctx context.Context, cmd string, args ...string) error
}

// CommandError is returned when an external program could not be started
// or exited with a non-zero status.
type CommandError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed with exit code %d", e.CommandLine(), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}

	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandLine renders the command and its arguments for logging.
func (e *CommandError) CommandLine() string {
	return strings.Join(append([]string{e.Cmd}, e.Args...), " ")
}

// NewExecRunner returns a Runner starting programs with os/exec.
// Arguments are passed verbatim, no shell or variable expansion applies.
func NewExecRunner(opts ...ExecRunnerOption) *ExecRunner {
	var cfg ExecRunnerConfig

	cfg.Option(opts...)
	cfg.Default()

	return &ExecRunner{cfg: cfg}
}

type ExecRunner struct {
	cfg ExecRunnerConfig
}

type ExecRunnerConfig struct {
	Log    logr.Logger
	Stdout io.Writer
	Stderr io.Writer
}

func (c *ExecRunnerConfig) Option(opts ...ExecRunnerOption) {
	for _, opt := range opts {
		opt.ConfigureExecRunner(c)
	}
}

func (c *ExecRunnerConfig) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
}

type ExecRunnerOption interface {
	ConfigureExecRunner(*ExecRunnerConfig)
}

func (r *ExecRunner) Output(ctx context.Context, cmd string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	if err := r.run(ctx, &stdout, &stderr, &stderr, cmd, args); err != nil {
		return "", err
	}

	r.cfg.Log.V(1).Info("shell finished", "cmd", cmd, "stdout", stdout.String())

	return stdout.String(), nil
}

func (r *ExecRunner) Passthrough(ctx context.Context, cmd string, args ...string) error {
	var stderr bytes.Buffer

	return r.run(ctx, r.cfg.Stdout, io.MultiWriter(r.cfg.Stderr, &stderr), &stderr, cmd, args)
}

func (r *ExecRunner) run(
	ctx context.Context, stdout, stderr io.Writer, captured *bytes.Buffer, cmd string, args []string,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.cfg.Log.Info("shell", "cmd", cmd, "args", args)

	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdout = stdout
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}

		return &CommandError{
			Cmd:      cmd,
			Args:     append([]string(nil), args...),
			ExitCode: exitCode,
			Stderr:   captured.String(),
			Err:      err,
		}
	}

	return nil
}
