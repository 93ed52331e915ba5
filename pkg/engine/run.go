package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

// Run is the metadata of one converge run.
type Run struct {
	// ID is the unique identifier of the run.
	ID string `json:"id"`

	// Node is the name of the node being converged.
	Node string `json:"node"`

	// Started is when the run began.
	Started time.Time `json:"started"`

	// Ended is when the run finished; zero while it is running.
	Ended time.Time `json:"ended,omitempty"`
}

// NewRun creates a run with a fresh ID.
func NewRun(node string) *Run {
	return &Run{
		ID:   uuid.NewString(),
		Node: node,
	}
}

func (r *Run) RunID() string        { return r.ID }
func (r *Run) NodeName() string     { return r.Node }
func (r *Run) StartTime() time.Time { return r.Started }
func (r *Run) EndTime() time.Time   { return r.Ended }

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.Ended.IsZero() {
		return 0
	}
	return r.Ended.Sub(r.Started)
}

var _ actions.RunInfo = (*Run)(nil)

// runContext tracks which top-level declarations have started.
type runContext struct {
	registry *Registry
	declared []*resources.Declared
	started  map[*resources.Declared]bool
}

func newRunContext(registry *Registry, declared []*resources.Declared) *runContext {
	return &runContext{
		registry: registry,
		declared: declared,
		started:  make(map[*resources.Declared]bool, len(declared)),
	}
}

func (rc *runContext) markStarted(res *resources.Declared) {
	rc.started[res] = true
}

// UnreachedActions lists the top-level declarations that never started, in
// declaration order.
func (rc *runContext) UnreachedActions() []actions.PlannedAction {
	var out []actions.PlannedAction
	for _, res := range rc.declared {
		if rc.started[res] {
			continue
		}
		out = append(out, actions.PlannedAction{
			Resource: res,
			Action:   rc.registry.ActionFor(res),
		})
	}
	return out
}
