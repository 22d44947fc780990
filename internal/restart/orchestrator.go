package restart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/gnb-control/gnbctl/internal/conf"
	"github.com/gnb-control/gnbctl/internal/params"
)

// ErrBusy means another lifecycle operation is already in flight.
var ErrBusy = errors.New("BUSY")

// Stage outcome values. NotReached marks stages after the first failure;
// Skipped marks the validate and write stages of a bare restart.
const (
	StageOK         = "ok"
	StageFailed     = "failed"
	StageSkipped    = "skipped"
	StageNotReached = "not_reached"
)

// Stages records the outcome of each pipeline stage.
type Stages struct {
	Validate string `json:"validate"`
	Write    string `json:"write"`
	Stop     string `json:"stop"`
	Start    string `json:"start"`
}

// Operation is the full report of one restart, stop, or start request. It is
// returned even on failure so callers can see exactly how far the pipeline
// got.
type Operation struct {
	ID     string       `json:"operationId"`
	Stages Stages       `json:"stages"`
	Deltas []conf.Delta `json:"deltas,omitempty"`
	PIDs   []int        `json:"pids,omitempty"`
	Log    string       `json:"logPath,omitempty"`
	Forced bool         `json:"forced,omitempty"`
}

// Orchestrator serializes lifecycle operations over a config mutator and a
// process controller.
type Orchestrator struct {
	mu      sync.Mutex
	mutator ConfigMutator
	proc    ProcessController
	logger  *log.Logger
}

// New creates an orchestrator. logger may be nil to discard progress lines.
func New(mutator ConfigMutator, proc ProcessController, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(discard{}, "", 0)
	}
	return &Orchestrator{mutator: mutator, proc: proc, logger: logger}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Restart runs the full pipeline. With changes it validates and writes them
// first; a bare restart skips straight to the process stages. The returned
// Operation is non-nil whenever the pipeline started, including failures.
func (o *Orchestrator) Restart(ctx context.Context, changes []params.Change) (*Operation, error) {
	if !o.mu.TryLock() {
		return nil, ErrBusy
	}
	defer o.mu.Unlock()

	op := newOperation()
	o.logger.Printf("restart %s: begin (%d changes)", op.ID, len(changes))

	if len(changes) == 0 {
		op.Stages.Validate = StageSkipped
		op.Stages.Write = StageSkipped
	} else {
		if err := params.ValidateAll(changes); err != nil {
			op.Stages.Validate = StageFailed
			o.logger.Printf("restart %s: validation failed: %v", op.ID, err)
			return op, err
		}
		op.Stages.Validate = StageOK

		deltas, err := o.mutator.Apply(changes)
		if err != nil {
			op.Stages.Write = StageFailed
			o.logger.Printf("restart %s: write failed: %v", op.ID, err)
			return op, err
		}
		op.Stages.Write = StageOK
		op.Deltas = deltas
	}

	stop, err := o.proc.Stop(ctx)
	if err != nil {
		op.Stages.Stop = StageFailed
		o.logger.Printf("restart %s: stop failed: %v", op.ID, err)
		return op, err
	}
	op.Stages.Stop = StageOK
	op.Forced = stop.Forced

	start, err := o.proc.Start(ctx)
	if err != nil {
		op.Stages.Start = StageFailed
		o.logger.Printf("restart %s: start failed: %v", op.ID, err)
		return op, err
	}
	op.Stages.Start = StageOK
	op.PIDs = start.PIDs
	op.Log = start.LogPath

	o.logger.Printf("restart %s: complete, pids %v", op.ID, op.PIDs)
	return op, nil
}

// Apply validates and writes changes without restarting. The configuration
// file is a single-writer resource, so the write shares the single-flight
// lock with Restart; a concurrent apply or restart gets ErrBusy instead of
// racing the load-modify-rename cycle.
func (o *Orchestrator) Apply(changes []params.Change) ([]conf.Delta, error) {
	if !o.mu.TryLock() {
		return nil, ErrBusy
	}
	defer o.mu.Unlock()

	if err := params.ValidateAll(changes); err != nil {
		return nil, err
	}
	deltas, err := o.mutator.Apply(changes)
	if err != nil {
		o.logger.Printf("apply: write failed: %v", err)
		return nil, err
	}
	o.logger.Printf("apply: %d keys rewritten, effective on next restart", len(deltas))
	return deltas, nil
}

// Stop terminates the radio process without touching configuration. Shares
// the single-flight lock with Restart.
func (o *Orchestrator) Stop(ctx context.Context) (*Operation, error) {
	if !o.mu.TryLock() {
		return nil, ErrBusy
	}
	defer o.mu.Unlock()

	op := newOperation()
	op.Stages.Validate = StageSkipped
	op.Stages.Write = StageSkipped
	op.Stages.Start = StageSkipped

	stop, err := o.proc.Stop(ctx)
	if err != nil {
		op.Stages.Stop = StageFailed
		return op, err
	}
	op.Stages.Stop = StageOK
	op.Forced = stop.Forced
	return op, nil
}

// Start launches the radio process against the current configuration.
// Shares the single-flight lock with Restart.
func (o *Orchestrator) Start(ctx context.Context) (*Operation, error) {
	if !o.mu.TryLock() {
		return nil, ErrBusy
	}
	defer o.mu.Unlock()

	op := newOperation()
	op.Stages.Validate = StageSkipped
	op.Stages.Write = StageSkipped
	op.Stages.Stop = StageSkipped

	start, err := o.proc.Start(ctx)
	if err != nil {
		op.Stages.Start = StageFailed
		return op, err
	}
	op.Stages.Start = StageOK
	op.PIDs = start.PIDs
	op.Log = start.LogPath
	return op, nil
}

// Status reports the current process state without taking the operation
// lock; status queries must work while a restart is in flight.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	h, err := o.proc.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		State: string(h.State()),
		PIDs:  h.Live,
		Stale: h.Stale,
	}, nil
}

// StatusReport is a point-in-time process state view.
type StatusReport struct {
	State string `json:"state"`
	PIDs  []int  `json:"pids,omitempty"`
	Stale []int  `json:"stale,omitempty"`
}

func newOperation() *Operation {
	return &Operation{
		ID: uuid.NewString(),
		Stages: Stages{
			Validate: StageNotReached,
			Write:    StageNotReached,
			Stop:     StageNotReached,
			Start:    StageNotReached,
		},
	}
}

// Describe renders a one-line stage summary for logs and audit records.
func (op *Operation) Describe() string {
	return fmt.Sprintf("validate=%s write=%s stop=%s start=%s",
		op.Stages.Validate, op.Stages.Write, op.Stages.Stop, op.Stages.Start)
}
