package backend

import (
	"context"
	"fmt"

	"github.com/dusk-indust/moa/internal/a2a"
)

var _ Backend = (*A2ABackend)(nil)

// A2ABackend delegates generation to a remote A2A agent with a blocking
// message/send. The model name travels in the message configuration metadata.
type A2ABackend struct {
	client a2a.Client
}

// NewA2ABackend returns a backend speaking A2A through client. A nil client
// gets the default HTTP client.
func NewA2ABackend(client a2a.Client) *A2ABackend {
	if client == nil {
		client = a2a.NewHTTPClient()
	}
	return &A2ABackend{client: client}
}

// Generate implements Backend.
func (b *A2ABackend) Generate(ctx context.Context, req Request) (string, error) {
	meta := map[string]string{"model": req.Model}
	if req.System != "" {
		meta["system"] = req.System
	}
	task, err := b.client.SendMessage(ctx, req.Endpoint.URI, a2a.SendMessageRequest{
		Message:       a2a.NewMessage(a2a.RoleUser, req.Prompt),
		Configuration: &a2a.SendMessageConfig{Blocking: true, Metadata: meta},
	})
	if err != nil {
		return "", err
	}

	switch task.Status.State {
	case a2a.TaskStateCompleted:
		return task.Text(), nil
	case a2a.TaskStateFailed, a2a.TaskStateCanceled:
		reason := string(task.Status.State)
		if task.Status.Message != nil && task.Status.Message.Text() != "" {
			reason = task.Status.Message.Text()
		}
		return "", fmt.Errorf("a2a: task %s %s: %s", task.ID, task.Status.State, reason)
	default:
		return "", fmt.Errorf("a2a: task %s not finished (state %s)", task.ID, task.Status.State)
	}
}
