package api

import (
	"context"
	"time"

	"github.com/gnb-control/gnbctl/internal/conf"
	"github.com/gnb-control/gnbctl/internal/docs"
	"github.com/gnb-control/gnbctl/internal/params"
	"github.com/gnb-control/gnbctl/internal/restart"
	"github.com/gnb-control/gnbctl/internal/runlog"
)

// OrchestratorPort drives lifecycle operations and configuration writes.
// Write-only applies go through the same port as restarts so every mutation
// of the configuration file holds the single-flight lock.
type OrchestratorPort interface {
	Restart(ctx context.Context, changes []params.Change) (*restart.Operation, error)
	Apply(changes []params.Change) ([]conf.Delta, error)
	Stop(ctx context.Context) (*restart.Operation, error)
	Start(ctx context.Context) (*restart.Operation, error)
	Status(ctx context.Context) (*restart.StatusReport, error)
}

// ReaderPort produces configuration snapshots.
type ReaderPort interface {
	Snapshot() (*conf.Snapshot, error)
}

// LogPort tails the radio process run logs.
type LogPort interface {
	Tail(n int) (*runlog.TailResult, error)
}

// DocsPort looks up the specification corpus.
type DocsPort interface {
	List() ([]string, error)
	Overview(document string) (*docs.Excerpt, error)
	Section(document, section string) (*docs.Excerpt, error)
	TOC(document, keyword string) (*docs.Excerpt, error)
}

// AuditPort records tool invocations.
type AuditPort interface {
	Success(tool, user string, args map[string]any, result string, elapsed time.Duration)
	Failure(tool, user string, args map[string]any, err error, elapsed time.Duration)
}
