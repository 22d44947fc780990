package restart

import (
	"context"

	"github.com/gnb-control/gnbctl/internal/conf"
	"github.com/gnb-control/gnbctl/internal/params"
	"github.com/gnb-control/gnbctl/internal/procctl"
)

// ConfigMutator applies validated parameter changes to the configuration
// file.
type ConfigMutator interface {
	Apply(changes []params.Change) ([]conf.Delta, error)
}

// ProcessController drives the radio process lifecycle.
type ProcessController interface {
	Stop(ctx context.Context) (*procctl.StopResult, error)
	Start(ctx context.Context) (*procctl.StartResult, error)
	Discover(ctx context.Context) (*procctl.Handle, error)
}
