package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Runner launches backend commands. Run is attached to the terminal so that
// a backend's own prompts reach the user; Output captures stdout for queries.
type Runner interface {
	Run(ctx context.Context, argv []string, elevate bool) error
	Output(ctx context.Context, argv []string) ([]byte, error)
}

// Executor is the Runner used outside of tests.
type Executor struct {
	Elevate string // escalation command prefixed to elevated runs, usually sudo
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewExecutor returns an Executor wired to the process stdio.
func NewExecutor(elevate string) *Executor {
	if elevate == "" {
		elevate = defaultElevate
	}
	return &Executor{
		Elevate: elevate,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// runInteractiveCommand executes a command attached to the TTY, without process
// group isolation, so that password prompts work.
func (e *Executor) runInteractiveCommand(ctx context.Context, name string, arg ...string) error {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	return cmd.Run()
}

// ensureSudo checks if the sudo ticket is still valid and re-prompts if necessary.
// Only applies when the escalation command is sudo and we are not root.
func (e *Executor) ensureSudo(ctx context.Context) error {
	if os.Geteuid() == 0 || e.Elevate != "sudo" {
		return nil
	}
	checkCmd := exec.CommandContext(ctx, "sudo", "-nv")
	checkCmd.Stdout = io.Discard
	checkCmd.Stderr = io.Discard
	if err := checkCmd.Run(); err == nil {
		return nil
	}

	announce(colSuccess, "Elevated privileges required. Authenticating")
	if err := e.runInteractiveCommand(ctx, "sudo", "-v"); err != nil {
		return fmt.Errorf("sudo authentication failed: %w", err)
	}
	return nil
}

// Run executes argv in the foreground, elevated when requested. It only
// reports success when the command exits 0.
func (e *Executor) Run(ctx context.Context, argv []string, elevate bool) error {
	if len(argv) == 0 {
		return &CommandError{Argv: argv, Err: errors.New("empty command")}
	}
	final := argv
	if elevate && os.Geteuid() != 0 {
		if err := e.ensureSudo(ctx); err != nil {
			return &CommandError{Argv: argv, Err: err}
		}
		final = append([]string{e.Elevate}, argv...)
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Running: %s\n", quoteArgv(final))
	logger.Debug("run", zap.Strings("argv", final), zap.Bool("elevated", elevate))

	cmd := exec.CommandContext(ctx, final[0], final[1:]...)
	cmd.Env = os.Environ()
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("command aborted: %w", ctx.Err())
		}
		cerr := &CommandError{Argv: final, Err: err}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// never started: missing binary, permissions, bad escalation command
			colError.Printf("Failed to launch %s: %v\n", quoteArgv(final), err)
		}
		return cerr
	}
	return nil
}

// Output runs a query command in its own process group and returns its stdout.
// The whole group is killed if ctx is cancelled.
func (e *Executor) Output(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, &CommandError{Argv: argv, Err: errors.New("empty command")}
	}
	logger.Debug("query", zap.Strings("argv", argv))

	var stdout bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = io.Discard
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Argv: argv, Err: err}
	}

	pgid := cmd.Process.Pid
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = unix.Kill(-pgid, unix.SIGKILL)
		case <-done:
		}
	}()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return stdout.Bytes(), fmt.Errorf("query aborted: %w", ctx.Err())
		}
		return stdout.Bytes(), &CommandError{Argv: argv, Err: err}
	}
	return stdout.Bytes(), nil
}
