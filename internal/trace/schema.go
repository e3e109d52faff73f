// Package trace records the provenance of chain runs as a graph: every agent
// response and every aggregate is a node, and edges say which responses an
// aggregate was built from and which aggregate fed a layer.
package trace

import "time"

// ResponseKind distinguishes agent outputs from layer aggregates.
type ResponseKind string

const (
	ResponseAgent     ResponseKind = "agent"
	ResponseAggregate ResponseKind = "aggregate"
)

// EdgeKind classifies relationships between responses.
type EdgeKind string

const (
	// EdgeAggregates links an aggregate to each agent response it reduced.
	EdgeAggregates EdgeKind = "AGGREGATES"
	// EdgeFeeds links an aggregate to the agent responses of the next layer.
	EdgeFeeds EdgeKind = "FEEDS"
)

// Run is one chain execution.
type Run struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"createdAt"`
	State     string    `json:"state"`
	Final     string    `json:"final,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Response is an agent output or a layer aggregate within a run. Position is
// the agent's index in its layer; aggregates sit after every agent.
type Response struct {
	ID         string       `json:"id"`
	RunID      string       `json:"runId"`
	Iteration  int          `json:"iteration"`
	LayerIndex int          `json:"layerIndex"`
	Layer      string       `json:"layer"`
	Agent      string       `json:"agent,omitempty"`
	Position   int          `json:"position"`
	Kind       ResponseKind `json:"kind"`
	Content    string       `json:"content,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Edge is a directed relationship between two responses.
type Edge struct {
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Kind     EdgeKind `json:"kind"`
}
