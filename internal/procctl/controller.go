package procctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Normalized process control errors.
var (
	// ErrDiscovery means the OS process table could not be queried.
	ErrDiscovery = errors.New("PROC_DISCOVERY")

	// ErrStopFailed means graceful and forced termination both failed.
	// Fatal for the current operation; operator intervention required.
	ErrStopFailed = errors.New("PROC_STOP_FAILED")

	// ErrStartFailed means a start precondition was unmet or the process
	// exited immediately after launch.
	ErrStartFailed = errors.New("PROC_START_FAILED")
)

// State classifies the radio process lifecycle.
type State string

const (
	StateUnknown    State = "unknown"
	StateNotRunning State = "not_running"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
	StateStarted    State = "started"
)

// Handle is a point-in-time view of matching process table entries. Zombie
// and otherwise defunct entries are reported separately from live ones.
type Handle struct {
	Live  []int `json:"live"`
	Stale []int `json:"stale,omitempty"`
}

// State reports Running iff the live subset is non-empty; stale entries do
// not count.
func (h *Handle) State() State {
	if len(h.Live) > 0 {
		return StateRunning
	}
	return StateNotRunning
}

// StopResult reports the outcome of a stop operation.
type StopResult struct {
	State     State `json:"state"`
	Signalled []int `json:"signalled,omitempty"`
	Forced    bool  `json:"forced,omitempty"`
}

// StartResult reports the outcome of a start operation.
type StartResult struct {
	PIDs    []int  `json:"pids"`
	LogPath string `json:"logPath"`
}

// Options configures a Controller. Polling cadence and timeouts are
// configuration, not hard-coded sleeps.
type Options struct {
	ExecutablePath  string
	Pattern         string
	ConfPath        string
	LogDir          string
	ExtraArgs       []string // gain/power and thread-configuration flags
	PollInterval    time.Duration
	GracefulTimeout time.Duration
	ForcedTimeout   time.Duration
	SettleDelay     time.Duration
}

// Controller implements the discover/stop/start state machine over an
// Executor.
type Controller struct {
	exec Executor
	opts Options
}

// New creates a process controller.
func New(exec Executor, opts Options) *Controller {
	return &Controller{exec: exec, opts: opts}
}

// Discover lists process table entries whose command line matches the
// configured pattern and classifies each as live or stale.
func (c *Controller) Discover(ctx context.Context) (*Handle, error) {
	res, err := c.exec.Run(ctx, "pgrep", "-f", c.opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	// pgrep exits 1 when nothing matches.
	if res.ExitCode == 1 {
		return &Handle{}, nil
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: pgrep exited %d: %s", ErrDiscovery, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var pids []int
	for _, line := range strings.Fields(res.Stdout) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	if len(pids) == 0 {
		return &Handle{}, nil
	}
	return c.classify(ctx, pids)
}

// classify splits pids into live and stale by querying each entry's process
// state. Zombie (Z) and dead (X) entries are stale.
func (c *Controller) classify(ctx context.Context, pids []int) (*Handle, error) {
	strs := make([]string, len(pids))
	for i, pid := range pids {
		strs[i] = strconv.Itoa(pid)
	}

	res, err := c.exec.Run(ctx, "ps", "-o", "pid=,stat=", "-p", strings.Join(strs, ","))
	if err != nil || res.ExitCode > 1 {
		// ps unavailable in the execution context; fall back to a local
		// liveness probe. Zombies cannot be told apart here, so entries that
		// still accept signal 0 count as live.
		return classifyByKill(pids), nil
	}

	// Entries pgrep saw but ps no longer does exited in between; they simply
	// drop out of both sets.
	h := &Handle{}
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch fields[1][0] {
		case 'Z', 'X':
			h.Stale = append(h.Stale, pid)
		default:
			h.Live = append(h.Live, pid)
		}
	}
	return h, nil
}

// classifyByKill probes each pid with signal 0.
func classifyByKill(pids []int) *Handle {
	h := &Handle{}
	for _, pid := range pids {
		err := unix.Kill(pid, 0)
		if err == nil || errors.Is(err, unix.EPERM) {
			h.Live = append(h.Live, pid)
		}
	}
	return h
}

// Stop terminates all live matching processes: SIGTERM, bounded polling,
// then SIGKILL with a shorter bound. Stop on an already-absent process is a
// no-op success. Survivors after the forced pass are fatal.
func (c *Controller) Stop(ctx context.Context) (*StopResult, error) {
	h, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(h.Live) == 0 {
		return &StopResult{State: StateNotRunning}, nil
	}

	signalled := h.Live
	if err := c.signal(ctx, h.Live, unix.SIGTERM); err != nil {
		return nil, err
	}
	if gone, err := c.waitGone(ctx, c.opts.GracefulTimeout); err != nil {
		return nil, err
	} else if gone {
		return &StopResult{State: StateStopped, Signalled: signalled}, nil
	}

	h, err = c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(h.Live) == 0 {
		return &StopResult{State: StateStopped, Signalled: signalled}, nil
	}
	if err := c.signal(ctx, h.Live, unix.SIGKILL); err != nil {
		return nil, err
	}
	if gone, err := c.waitGone(ctx, c.opts.ForcedTimeout); err != nil {
		return nil, err
	} else if gone {
		return &StopResult{State: StateStopped, Signalled: signalled, Forced: true}, nil
	}

	remaining, derr := c.Discover(ctx)
	if derr != nil {
		return nil, fmt.Errorf("%w: processes survived SIGKILL and re-verification failed: %v", ErrStopFailed, derr)
	}
	return nil, fmt.Errorf("%w: processes %v survived SIGKILL; operator intervention required", ErrStopFailed, remaining.Live)
}

// Start launches the radio process against the current configuration file.
// Preconditions: no live matching process, and both the executable and the
// configuration file exist. The launch is detached with output captured in a
// timestamped run log.
func (c *Controller) Start(ctx context.Context) (*StartResult, error) {
	h, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(h.Live) > 0 {
		return nil, fmt.Errorf("%w: already running (pids %v); stop it before starting", ErrStartFailed, h.Live)
	}

	if _, err := os.Stat(c.opts.ExecutablePath); err != nil {
		return nil, fmt.Errorf("%w: executable %s: %v", ErrStartFailed, c.opts.ExecutablePath, err)
	}
	if _, err := os.Stat(c.opts.ConfPath); err != nil {
		return nil, fmt.Errorf("%w: configuration file %s: %v", ErrStartFailed, c.opts.ConfPath, err)
	}
	if err := os.MkdirAll(c.opts.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: log directory %s: %v", ErrStartFailed, c.opts.LogDir, err)
	}

	logPath := filepath.Join(c.opts.LogDir, fmt.Sprintf("%s_%s.log",
		filepath.Base(c.opts.ExecutablePath), time.Now().Format("2006-01-02_150405")))

	args := append([]string{"-O", c.opts.ConfPath}, c.opts.ExtraArgs...)
	if err := c.exec.StartDetached(logPath, c.opts.ExecutablePath, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	if err := sleepCtx(ctx, c.opts.SettleDelay); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	h, err = c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(h.Live) == 0 {
		return nil, fmt.Errorf("%w: process exited during startup; inspect %s", ErrStartFailed, logPath)
	}
	return &StartResult{PIDs: h.Live, LogPath: logPath}, nil
}

// signal sends sig to every pid through the executor.
func (c *Controller) signal(ctx context.Context, pids []int, sig unix.Signal) error {
	args := []string{fmt.Sprintf("-%d", int(sig))}
	for _, pid := range pids {
		args = append(args, strconv.Itoa(pid))
	}
	res, err := c.exec.Run(ctx, "kill", args...)
	if err != nil {
		return fmt.Errorf("%w: signalling: %v", ErrDiscovery, err)
	}
	// kill exits non-zero when a pid is already gone; that is fine here, the
	// polling loop decides the outcome.
	_ = res
	return nil
}

// waitGone polls until no live matching process remains or the bound
// elapses. Returns true when the live set drained.
func (c *Controller) waitGone(ctx context.Context, bound time.Duration) (bool, error) {
	deadline := time.Now().Add(bound)
	for {
		if err := sleepCtx(ctx, c.opts.PollInterval); err != nil {
			return false, fmt.Errorf("%w: %v", ErrStopFailed, err)
		}
		h, err := c.Discover(ctx)
		if err != nil {
			return false, err
		}
		if len(h.Live) == 0 {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
