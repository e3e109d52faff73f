package trace

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]Run
	responses map[string]Response
	edges     []Edge
}

// NewMemoryStore returns an initialized MemoryStore ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]Run),
		responses: make(map[string]Response),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemoryStore) InitSchema(_ context.Context) error {
	return nil
}

// AddRun stores a run keyed by its ID.
func (m *MemoryStore) AddRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("trace: run %q already exists", run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

// FinishRun sets the terminal state and output of a run.
func (m *MemoryStore) FinishRun(_ context.Context, runID, state, final, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	run.State, run.Final, run.Error = state, final, errMsg
	m.runs[runID] = run
	return nil
}

// AddResponse stores a response keyed by its ID.
func (m *MemoryStore) AddResponse(_ context.Context, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[resp.RunID]; !ok {
		return fmt.Errorf("run %q: %w", resp.RunID, ErrNotFound)
	}
	m.responses[resp.ID] = resp
	return nil
}

// AddEdge appends an edge between two stored responses.
func (m *MemoryStore) AddEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range []string{edge.SourceID, edge.TargetID} {
		if _, ok := m.responses[id]; !ok {
			return fmt.Errorf("response %q: %w", id, ErrNotFound)
		}
	}
	m.edges = append(m.edges, edge)
	return nil
}

// GetRun returns the run with the given ID.
func (m *MemoryStore) GetRun(_ context.Context, runID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return &run, nil
}

// ListRuns returns every run, oldest first.
func (m *MemoryStore) ListRuns(_ context.Context) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Responses returns a run's responses in execution order.
func (m *MemoryStore) Responses(_ context.Context, runID string) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Response
	for _, r := range m.responses {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	sortResponses(out)
	return out, nil
}

// Sources returns the responses an aggregate reduced.
func (m *MemoryStore) Sources(_ context.Context, aggregateID string) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Response
	for _, e := range m.edges {
		if e.Kind == EdgeAggregates && e.SourceID == aggregateID {
			out = append(out, m.responses[e.TargetID])
		}
	}
	sortResponses(out)
	return out, nil
}

// Edges returns a copy of every stored edge.
func (m *MemoryStore) Edges() []Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Edge(nil), m.edges...)
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
