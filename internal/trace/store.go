package trace

import (
	"context"
	"errors"
	"io"
	"sort"
)

// ErrNotFound is returned when a run ID is unknown to the store.
var ErrNotFound = errors.New("trace: not found")

// Store persists run traces.
// Implementations: KuzuStore (on disk, cgo), MemoryStore.
type Store interface {
	io.Closer

	// InitSchema is called once before any data is inserted.
	InitSchema(ctx context.Context) error

	AddRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID, state, final, errMsg string) error
	AddResponse(ctx context.Context, resp Response) error
	AddEdge(ctx context.Context, edge Edge) error

	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)

	// Responses returns a run's responses ordered by iteration, layer index,
	// and position.
	Responses(ctx context.Context, runID string) ([]Response, error)

	// Sources returns the agent responses an aggregate was built from, in
	// agent order.
	Sources(ctx context.Context, aggregateID string) ([]Response, error)
}

// sortResponses orders responses the way Store.Responses promises.
func sortResponses(rs []Response) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Iteration != b.Iteration {
			return a.Iteration < b.Iteration
		}
		if a.LayerIndex != b.LayerIndex {
			return a.LayerIndex < b.LayerIndex
		}
		return a.Position < b.Position
	})
}
