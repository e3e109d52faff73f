// Package agent exposes a mixture-of-agents chain as an A2A agent.
package agent

import (
	"context"
	"net/http"

	"github.com/dusk-indust/moa/internal/a2a"
)

// Agent is a task processor reachable over A2A, either on its own listener
// (Start/Stop) or mounted into another server (Handler).
type Agent interface {
	// Card returns the agent's A2A Agent Card.
	Card() a2a.AgentCard

	// HandleTask processes an A2A task and returns the finished task.
	HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error)

	// Handler returns the agent's routes: the card and the JSON-RPC endpoint.
	Handler() http.Handler

	// Start launches the agent's HTTP server on the given address.
	Start(ctx context.Context, addr string) error

	// Stop gracefully shuts down the agent.
	Stop(ctx context.Context) error
}
