package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/orchestrator"
	"github.com/dusk-indust/moa/internal/trace"
)

// recordRun stores a two-layer run whose second layer failed.
func recordRun(t *testing.T) (trace.Store, string) {
	t.Helper()
	ctx := context.Background()
	store := trace.NewMemoryStore()
	rec := trace.NewRecorder(store)

	require.NoError(t, rec.StartRun(ctx, "run-1", `what is "moa"?`))
	agg := core.ModelResponse{Content: "alpha\n\nbeta"}
	require.NoError(t, rec.RecordLayer(ctx, orchestrator.LayerRecord{
		RunID: "run-1", Layer: "draft",
		Agents:    []core.Agent{{Name: "alpha"}, {Name: "beta"}},
		Responses: []core.ModelResponse{{Content: "alpha"}, {Content: "beta"}},
		Aggregate: &agg,
	}))
	require.NoError(t, rec.RecordLayer(ctx, orchestrator.LayerRecord{
		RunID: "run-1", LayerIndex: 1, Layer: "refine",
		Agents:    []core.Agent{{Name: "gamma"}},
		Responses: []core.ModelResponse{core.ErrorResponse(errors.New("timeout"))},
	}))
	require.NoError(t, rec.FinishRun(ctx, "run-1", orchestrator.StateFailed, core.ErrorResponse(errors.New("refine failed"))))
	return store, "run-1"
}

func TestMermaid(t *testing.T) {
	store, id := recordRun(t)
	out, err := Mermaid(context.Background(), store, id)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `N0(["what is 'moa'?"])`)
	assert.Contains(t, out, `subgraph `)
	assert.Contains(t, out, `["iteration 1: draft"]`)
	assert.Contains(t, out, `["iteration 1: refine"]`)
	assert.Contains(t, out, `["gamma (failed)"]`)
	assert.Contains(t, out, `{{"alpha beta"}}`)
	assert.Equal(t, 2, strings.Count(out, " --> "), "one arrow per aggregated response")
	assert.Equal(t, 3, strings.Count(out, " -.-> "), "query feeds two agents, aggregate feeds one")
}

func TestMermaid_UnknownRun(t *testing.T) {
	_, err := Mermaid(context.Background(), trace.NewMemoryStore(), "nope")
	assert.ErrorIs(t, err, trace.ErrNotFound)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "a b 'c'", label("a\n  b \"c\""))
	long := strings.Repeat("x", 100)
	got := label(long)
	assert.Len(t, got, maxLabel)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestJSON(t *testing.T) {
	store, id := recordRun(t)
	data, err := JSON(context.Background(), store, id)
	require.NoError(t, err)

	var exp RunExport
	require.NoError(t, json.Unmarshal(data, &exp))
	assert.Equal(t, "failed", exp.Run.State)
	assert.Equal(t, "refine failed", exp.Run.Error)
	assert.NotEmpty(t, exp.ExportedAt)

	require.Len(t, exp.Layers, 2)
	assert.Equal(t, "draft", exp.Layers[0].Name)
	require.Len(t, exp.Layers[0].Responses, 2)
	require.NotNil(t, exp.Layers[0].Aggregate)
	assert.Equal(t, "alpha\n\nbeta", exp.Layers[0].Aggregate.Content)
	assert.Nil(t, exp.Layers[1].Aggregate)
	assert.Equal(t, "timeout", exp.Layers[1].Responses[0].Error)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "exportedAt")
}
