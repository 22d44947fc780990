package procctl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Result carries the outcome of one executed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor is the elevated-privilege execution boundary. The controller
// depends on this contract only; the concrete mechanism (sudo, container
// exec, namespace entry) stays out of the core logic.
type Executor interface {
	// Run executes a command and waits for it, returning captured output and
	// the exit code. A non-zero exit is not an error; failure to execute is.
	Run(ctx context.Context, name string, args ...string) (*Result, error)

	// StartDetached launches a command that survives the caller's own exit,
	// with stdout and stderr redirected to logPath.
	StartDetached(logPath string, name string, args ...string) error
}

// ShellExecutor runs commands on the local host, optionally through sudo.
type ShellExecutor struct {
	// Sudo prefixes every invocation with a non-interactive sudo.
	Sudo bool
}

var _ Executor = (*ShellExecutor)(nil)

// Run executes name with args and captures its output.
func (e *ShellExecutor) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	name, args = e.elevate(name, args)

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("executing %s: %w", name, err)
	}
	return res, nil
}

// StartDetached launches name with args in its own session so it survives
// this process, redirecting both output streams to logPath.
func (e *ShellExecutor) StartDetached(logPath string, name string, args ...string) error {
	name, args = e.elevate(name, args)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening run log %s: %w", logPath, err)
	}

	cmd := exec.Command(name, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return fmt.Errorf("launching %s: %w", name, err)
	}
	// The child holds its own descriptor; ours can go.
	_ = logFile.Close()
	return cmd.Process.Release()
}

func (e *ShellExecutor) elevate(name string, args []string) (string, []string) {
	if !e.Sudo {
		return name, args
	}
	return "sudo", append([]string{"-n", name}, args...)
}
