package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/moa/internal/backend"
	"github.com/dusk-indust/moa/internal/core"
)

func newTestChain(t *testing.T, inv Invoker, p core.Pipeline, opts ...ChainOption) *Chain {
	t.Helper()
	resolver, _ := newResolver(t)
	return NewChain(p,
		NewLayerProcessor(resolver, inv, 0, nil),
		NewAggregator(resolver, inv, "ollama:synth"),
		opts...,
	)
}

func concatLayer(name string, agents ...core.Agent) core.Layer {
	return core.Layer{
		Name:        name,
		Agents:      agents,
		Aggregation: core.AggregationStrategy{Method: core.MethodConcatenate},
	}
}

func TestChain_SingleAgentReturnsTrimmedOutput(t *testing.T) {
	inv := scriptedInvoker(func(req backend.Request) (string, error) {
		return "\n  raw output for " + req.Prompt + "  \n", nil
	})
	chain := newTestChain(t, inv, core.Pipeline{
		Layers:        []core.Layer{concatLayer("only", agentNamed("a", "{input}"))},
		MaxIterations: 1,
	})

	res := chain.Execute(context.Background(), "X")
	require.NoError(t, res.Response.Err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "raw output for X", res.Response.Content)
	assert.Equal(t, 1, res.Response.Metadata[MetaIterations])
	assert.Equal(t, 1, res.Response.Metadata[MetaTotalResponses])
	assert.NotEmpty(t, res.RunID)
}

func TestChain_ThreadsInputAcrossLayersAndIterations(t *testing.T) {
	inv := &fakeInvoker{fn: func(agent core.Agent, r backend.Rendered) core.ModelResponse {
		return core.ModelResponse{Content: agent.Name + "(" + r.Prompt + ")"}
	}}
	chain := newTestChain(t, inv, core.Pipeline{
		Layers: []core.Layer{
			concatLayer("one", agentNamed("a", "{input}")),
			concatLayer("two", agentNamed("b", "{input}")),
		},
		MaxIterations: 2,
	})

	res := chain.Execute(context.Background(), "q")
	require.NoError(t, res.Response.Err)
	assert.Equal(t, "b(a(b(a(q))))", res.Response.Content)
	assert.Equal(t, 2, res.Response.Metadata[MetaIterations])
	assert.Equal(t, 4, res.Response.Metadata[MetaTotalResponses])
	require.Len(t, res.History, 4)
	assert.Equal(t, "a(q)", res.History[0].Content)
	assert.Equal(t, "b(a(q))", res.History[1].Content)
}

func TestChain_PreviousResponsesSeeHistory(t *testing.T) {
	inv := &fakeInvoker{fn: func(agent core.Agent, r backend.Rendered) core.ModelResponse {
		return core.ModelResponse{Content: strings.ReplaceAll(r.Prompt, "\n", "|")}
	}}
	chain := newTestChain(t, inv, core.Pipeline{
		Layers:        []core.Layer{concatLayer("l", agentNamed("a", "[{previous_responses}]"))},
		MaxIterations: 3,
	})

	res := chain.Execute(context.Background(), "q")
	require.NoError(t, res.Response.Err)
	// iteration 0 sees no history, 1 sees "[]", 2 sees "[]" and "[[]]".
	assert.Equal(t, "[[]|[[]]]", res.Response.Content)
}

func TestChain_StopPredicateAfterFirstLayer(t *testing.T) {
	inv := echoInvoker()
	chain := newTestChain(t, inv, core.Pipeline{
		Layers: []core.Layer{
			concatLayer("one", agentNamed("a", "{input}")),
			concatLayer("two", agentNamed("b", "{input}")),
		},
		MaxIterations: 5,
		Stop:          StopFunc(func([]core.ModelResponse) bool { return true }),
	})

	res := chain.Execute(context.Background(), "q")
	require.NoError(t, res.Response.Err)
	assert.Equal(t, StateStopped, res.State)
	assert.Len(t, res.History, 1)
	assert.Equal(t, "a: q", res.Response.Content)
	assert.Empty(t, inv.callsFor("b"), "remaining layers never run")
}

func TestChain_EmptyOutputFailsLayerWithoutAggregating(t *testing.T) {
	var synthCalls int
	var mu sync.Mutex
	inv := scriptedInvoker(func(req backend.Request) (string, error) {
		if req.Model == "synth" {
			mu.Lock()
			synthCalls++
			mu.Unlock()
			return "merged", nil
		}
		if req.Prompt == "silent" {
			return "   ", nil
		}
		return "fine", nil
	})
	layer := core.Layer{
		Name:        "draft",
		Agents:      []core.Agent{agentNamed("talker", "talk"), agentNamed("mute", "silent")},
		Aggregation: core.AggregationStrategy{Method: core.MethodSynthesis},
	}
	chain := newTestChain(t, inv, core.Pipeline{
		Layers:        []core.Layer{layer, concatLayer("never", agentNamed("z", "{input}"))},
		MaxIterations: 2,
	})

	res := chain.Execute(context.Background(), "q")
	assert.Equal(t, StateFailed, res.State)
	require.True(t, res.Response.Failed())
	assert.ErrorIs(t, res.Response.Err, core.ErrEmptyResponse)
	assert.Empty(t, res.Response.Content)
	assert.Empty(t, res.History)
	assert.Zero(t, synthCalls, "a failed layer is never aggregated")

	var layerErr *LayerError
	require.ErrorAs(t, res.Response.Err, &layerErr)
	assert.Equal(t, "draft", layerErr.Layer)
	assert.Equal(t, 0, layerErr.Index)
	assert.Contains(t, res.Response.Err.Error(), `layer "draft"`)
}

func TestChain_AggregationFailureFailsRun(t *testing.T) {
	inv := echoInvoker()
	layer := core.Layer{
		Name:        "numbers",
		Agents:      []core.Agent{agentNamed("a", "{input}")},
		Aggregation: core.AggregationStrategy{Method: core.MethodWeighted},
	}
	chain := newTestChain(t, inv, core.Pipeline{Layers: []core.Layer{layer}})

	res := chain.Execute(context.Background(), "not a number")
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Response.Err, core.ErrAggregation)
}

func TestChain_CanceledContext(t *testing.T) {
	inv := echoInvoker()
	chain := newTestChain(t, inv, core.Pipeline{
		Layers: []core.Layer{concatLayer("l", agentNamed("a", "{input}"))},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := chain.Execute(ctx, "q")
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Response.Err, context.Canceled)
	assert.Empty(t, inv.callsFor("a"))
}

func TestChain_RecoversPanic(t *testing.T) {
	inv := echoInvoker()
	resolver, _ := newResolver(t)
	agg := NewAggregator(resolver, inv, "")
	agg.Register("explode", StrategyFunc(func(context.Context, AggregateRequest) core.ModelResponse {
		panic("strategy bug")
	}))
	layer := core.Layer{
		Name:        "l",
		Agents:      []core.Agent{agentNamed("a", "{input}")},
		Aggregation: core.AggregationStrategy{Method: "explode"},
	}
	chain := NewChain(core.Pipeline{Layers: []core.Layer{layer}}, NewLayerProcessor(resolver, inv, 0, nil), agg)

	var res Result
	require.NotPanics(t, func() { res = chain.Execute(context.Background(), "q") })
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Response.Err.Error(), "strategy bug")
}

func TestChain_NoLayers(t *testing.T) {
	chain := newTestChain(t, echoInvoker(), core.Pipeline{})
	res := chain.Execute(context.Background(), "q")
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Response.Err, core.ErrConfiguration)
}

func TestChain_RunReturnsResponse(t *testing.T) {
	chain := newTestChain(t, echoInvoker(), core.Pipeline{
		Layers: []core.Layer{concatLayer("l", agentNamed("a", "{input}"))},
	})
	assert.Equal(t, "a: hi", chain.Run(context.Background(), "hi").Content)
}

// fakeRecorder captures recorder calls.
type fakeRecorder struct {
	mu       sync.Mutex
	started  []string
	layers   []LayerRecord
	finished []State
	err      error
}

func (r *fakeRecorder) StartRun(_ context.Context, runID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, runID)
	return r.err
}

func (r *fakeRecorder) RecordLayer(_ context.Context, rec LayerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers = append(r.layers, rec)
	return r.err
}

func (r *fakeRecorder) FinishRun(_ context.Context, _ string, state State, _ core.ModelResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, state)
	return r.err
}

func TestChain_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	chain := newTestChain(t, echoInvoker(), core.Pipeline{
		Layers: []core.Layer{
			concatLayer("one", agentNamed("a", "{input}"), agentNamed("b", "{input}")),
			concatLayer("two", agentNamed("c", "{input}")),
		},
	}, WithRecorder(rec))

	res := chain.Execute(context.Background(), "q")
	require.NoError(t, res.Response.Err)

	assert.Equal(t, []string{res.RunID}, rec.started)
	require.Len(t, rec.layers, 2)
	assert.Equal(t, "one", rec.layers[0].Layer)
	assert.Len(t, rec.layers[0].Responses, 2)
	require.NotNil(t, rec.layers[0].Aggregate)
	assert.Equal(t, 1, rec.layers[1].LayerIndex)
	assert.Equal(t, []State{StateCompleted}, rec.finished)
}

func TestChain_RecorderFailureDoesNotFailRun(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	chain := newTestChain(t, echoInvoker(), core.Pipeline{
		Layers: []core.Layer{concatLayer("l", agentNamed("a", "{input}"))},
	}, WithRecorder(rec))

	res := chain.Execute(context.Background(), "q")
	require.NoError(t, res.Response.Err)
	assert.Equal(t, StateCompleted, res.State)
}

func TestChain_RecordsFailedLayer(t *testing.T) {
	rec := &fakeRecorder{}
	inv := &fakeInvoker{fn: func(core.Agent, backend.Rendered) core.ModelResponse {
		return core.ErrorResponse(errors.New("down"))
	}}
	chain := newTestChain(t, inv, core.Pipeline{
		Layers: []core.Layer{concatLayer("l", agentNamed("a", "{input}"))},
	}, WithRecorder(rec))

	chain.Execute(context.Background(), "q")
	require.Len(t, rec.layers, 1)
	assert.Nil(t, rec.layers[0].Aggregate)
	assert.Equal(t, []State{StateFailed}, rec.finished)
}

func TestChain_LayerProgress(t *testing.T) {
	var events []ProgressEvent
	chain := newTestChain(t, echoInvoker(), core.Pipeline{
		Layers: []core.Layer{concatLayer("l", agentNamed("a", "{input}"))},
	}, WithProgress(func(ev ProgressEvent) { events = append(events, ev) }))

	chain.Execute(context.Background(), "q")
	require.Len(t, events, 2)
	assert.Equal(t, ProgressWorking, events[0].Status)
	assert.Equal(t, ProgressComplete, events[1].Status)
	assert.Empty(t, events[1].Agent)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateStopped.Terminal())
	assert.False(t, StateContinuing.Terminal())
}
