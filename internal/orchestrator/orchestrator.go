// Package orchestrator runs a mixture-of-agents chain: layers of agents fan
// out over the same input, their responses are aggregated into one, and the
// aggregate feeds the next layer and, across iterations, the first layer
// again.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/dusk-indust/moa/internal/backend"
	"github.com/dusk-indust/moa/internal/core"
)

// Invoker runs a single agent against a rendered prompt. Failures are
// reported in the returned response, never as a panic or a separate error.
type Invoker interface {
	Invoke(ctx context.Context, agent core.Agent, r backend.Rendered) core.ModelResponse
}

var _ Invoker = (*backend.Invoker)(nil)

// State is the chain controller's position in its run lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateContinuing
	StateStopped
	StateFailed
	StateCompleted
)

func (s State) String() string {
	names := [...]string{"idle", "running", "continuing", "stopped", "failed", "completed"}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Terminal reports whether no further layers will run.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed || s == StateCompleted
}

// Result is the outcome of one chain run.
type Result struct {
	Response core.ModelResponse
	State    State

	// History holds one aggregate per completed layer, in execution order.
	History []core.ModelResponse
	RunID   string
}

// LayerError names the layer that failed a run.
type LayerError struct {
	Layer     string
	Index     int
	Iteration int
	Err       error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %q (index %d, iteration %d) failed: %v", e.Layer, e.Index, e.Iteration, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

// ProgressEvent is emitted while a chain runs. Agent is empty for
// layer-level events.
type ProgressEvent struct {
	Iteration int
	Layer     string
	Agent     string
	Status    ProgressStatus
	Message   string
}

// ProgressStatus is the state of an agent or layer within a run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// LayerRecord describes one executed layer for a Recorder. Aggregate is nil
// when the layer failed before aggregation.
type LayerRecord struct {
	RunID      string
	Iteration  int
	LayerIndex int
	Layer      string
	Agents     []core.Agent
	Responses  []core.ModelResponse
	Aggregate  *core.ModelResponse
}

// Recorder persists the provenance of a run. Recording failures are logged by
// the chain and never fail the run.
type Recorder interface {
	StartRun(ctx context.Context, runID, query string) error
	RecordLayer(ctx context.Context, rec LayerRecord) error
	FinishRun(ctx context.Context, runID string, state State, final core.ModelResponse) error
}
