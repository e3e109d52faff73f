package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dusk-indust/moa/internal/trace"
)

// RunExport is the JSON form of a recorded run.
type RunExport struct {
	Run        trace.Run     `json:"run"`
	ExportedAt string        `json:"exportedAt"`
	Layers     []LayerExport `json:"layers"`
}

// LayerExport is one executed layer of a run.
type LayerExport struct {
	Iteration  int              `json:"iteration"`
	LayerIndex int              `json:"layerIndex"`
	Name       string           `json:"name"`
	Responses  []trace.Response `json:"responses"`
	Aggregate  *trace.Response  `json:"aggregate,omitempty"`
}

// BuildRun collects a run and its responses from store.
func BuildRun(ctx context.Context, store trace.Store, runID string) (*RunExport, error) {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	resps, err := store.Responses(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get responses: %w", err)
	}

	out := &RunExport{
		Run:        *run,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Layers:     []LayerExport{},
	}
	for _, g := range groupResponses(resps) {
		out.Layers = append(out.Layers, LayerExport{
			Iteration:  g.iteration,
			LayerIndex: g.layerIndex,
			Name:       g.layer,
			Responses:  g.agents,
			Aggregate:  g.aggregate,
		})
	}
	return out, nil
}

// JSON renders a run as indented JSON.
func JSON(ctx context.Context, store trace.Store, runID string) ([]byte, error) {
	exp, err := BuildRun(ctx, store, runID)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}
