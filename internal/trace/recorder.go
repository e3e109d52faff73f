package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/orchestrator"
)

var _ orchestrator.Recorder = (*Recorder)(nil)

// Recorder writes chain provenance into a Store.
type Recorder struct {
	store Store
	now   func() time.Time

	mu sync.Mutex
	// last holds the most recent aggregate ID per run, used for FEEDS edges.
	last map[string]string
}

// NewRecorder returns a Recorder backed by store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store: store,
		now:   time.Now,
		last:  make(map[string]string),
	}
}

// StartRun inserts the run node in the running state.
func (r *Recorder) StartRun(ctx context.Context, runID, query string) error {
	return r.store.AddRun(ctx, Run{
		ID:        runID,
		Query:     query,
		CreatedAt: r.now().UTC(),
		State:     orchestrator.StateRunning.String(),
	})
}

// RecordLayer stores every agent response of the layer and, when present, its
// aggregate. The aggregate is linked to each agent response, and the previous
// aggregate of the run is linked to this layer's agent responses.
func (r *Recorder) RecordLayer(ctx context.Context, rec orchestrator.LayerRecord) error {
	r.mu.Lock()
	prev := r.last[rec.RunID]
	r.mu.Unlock()

	ids := make([]string, len(rec.Responses))
	for i, resp := range rec.Responses {
		agent := ""
		if i < len(rec.Agents) {
			agent = rec.Agents[i].Name
		}
		ids[i] = uuid.NewString()
		if err := r.store.AddResponse(ctx, toResponse(ids[i], rec, agent, i, ResponseAgent, resp)); err != nil {
			return err
		}
		if prev != "" {
			if err := r.store.AddEdge(ctx, Edge{SourceID: prev, TargetID: ids[i], Kind: EdgeFeeds}); err != nil {
				return err
			}
		}
	}

	if rec.Aggregate == nil {
		return nil
	}

	aggID := uuid.NewString()
	agg := toResponse(aggID, rec, "", len(rec.Responses), ResponseAggregate, *rec.Aggregate)
	if err := r.store.AddResponse(ctx, agg); err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.store.AddEdge(ctx, Edge{SourceID: aggID, TargetID: id, Kind: EdgeAggregates}); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.last[rec.RunID] = aggID
	r.mu.Unlock()
	return nil
}

// FinishRun stores the terminal state and releases per-run bookkeeping.
func (r *Recorder) FinishRun(ctx context.Context, runID string, state orchestrator.State, final core.ModelResponse) error {
	r.mu.Lock()
	delete(r.last, runID)
	r.mu.Unlock()

	errMsg := ""
	if final.Err != nil {
		errMsg = final.Err.Error()
	}
	return r.store.FinishRun(ctx, runID, state.String(), final.Content, errMsg)
}

func toResponse(id string, rec orchestrator.LayerRecord, agent string, pos int, kind ResponseKind, resp core.ModelResponse) Response {
	out := Response{
		ID:         id,
		RunID:      rec.RunID,
		Iteration:  rec.Iteration,
		LayerIndex: rec.LayerIndex,
		Layer:      rec.Layer,
		Agent:      agent,
		Position:   pos,
		Kind:       kind,
		Content:    resp.Content,
	}
	if resp.Err != nil {
		out.Error = resp.Err.Error()
	}
	return out
}
