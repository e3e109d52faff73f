package trace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore exercises the Store contract against any implementation.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx))

	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.AddRun(ctx, Run{ID: "run-b", Query: "second", CreatedAt: t0.Add(time.Second), State: "running"}))
	require.NoError(t, s.AddRun(ctx, Run{ID: "run-a", Query: "first", CreatedAt: t0, State: "running"}))

	// Inserted out of order on purpose.
	for _, r := range []Response{
		{ID: "agg0", RunID: "run-a", Iteration: 0, LayerIndex: 0, Layer: "draft", Position: 2, Kind: ResponseAggregate, Content: "a+b"},
		{ID: "r1", RunID: "run-a", Iteration: 0, LayerIndex: 0, Layer: "draft", Agent: "b", Position: 1, Kind: ResponseAgent, Content: "b"},
		{ID: "r0", RunID: "run-a", Iteration: 0, LayerIndex: 0, Layer: "draft", Agent: "a", Position: 0, Kind: ResponseAgent, Content: "a"},
		{ID: "r2", RunID: "run-a", Iteration: 0, LayerIndex: 1, Layer: "refine", Agent: "c", Position: 0, Kind: ResponseAgent, Error: "boom"},
	} {
		require.NoError(t, s.AddResponse(ctx, r))
	}
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "agg0", TargetID: "r1", Kind: EdgeAggregates}))
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "agg0", TargetID: "r0", Kind: EdgeAggregates}))
	require.NoError(t, s.AddEdge(ctx, Edge{SourceID: "agg0", TargetID: "r2", Kind: EdgeFeeds}))

	require.NoError(t, s.FinishRun(ctx, "run-a", "failed", "", "layer failed"))

	run, err := s.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "first", run.Query)
	assert.Equal(t, "failed", run.State)
	assert.Equal(t, "layer failed", run.Error)
	assert.True(t, t0.Equal(run.CreatedAt))

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "missing", "failed", "", ""), ErrNotFound)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)

	resps, err := s.Responses(ctx, "run-a")
	require.NoError(t, err)
	var ids []string
	for _, r := range resps {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r0", "r1", "agg0", "r2"}, ids)
	assert.Equal(t, "boom", resps[3].Error)

	empty, err := s.Responses(ctx, "run-b")
	require.NoError(t, err)
	assert.Empty(t, empty)

	sources, err := s.Sources(ctx, "agg0")
	require.NoError(t, err)
	require.Len(t, sources, 2, "FEEDS edges are not sources")
	assert.Equal(t, "a", sources[0].Agent)
	assert.Equal(t, "b", sources[1].Agent)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_RejectsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.AddResponse(ctx, Response{ID: "r", RunID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.AddRun(ctx, Run{ID: "run"}))
	assert.Error(t, s.AddRun(ctx, Run{ID: "run"}), "duplicate run")

	require.NoError(t, s.AddResponse(ctx, Response{ID: "r", RunID: "run"}))
	err = s.AddEdge(ctx, Edge{SourceID: "r", TargetID: "ghost", Kind: EdgeFeeds})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.Edges())
}
