package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dusk-indust/moa/internal/a2a"
)

// Compile-time interface checks.
var (
	_ Agent       = (*BaseAgent)(nil)
	_ a2a.Handler = (*BaseAgent)(nil)
)

// ProcessFunc handles an incoming message for a task in the working state and
// returns the artifacts to attach on completion.
type ProcessFunc func(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error)

// BaseAgent composes an A2A server and task store around a ProcessFunc and
// drives every task through submitted, working, then completed or failed.
type BaseAgent struct {
	server  *a2a.Server
	store   *a2a.TaskStore
	card    a2a.AgentCard
	process ProcessFunc
}

// NewBaseAgent creates a BaseAgent with the given card and process function.
func NewBaseAgent(card a2a.AgentCard, process ProcessFunc) *BaseAgent {
	b := &BaseAgent{
		store:   a2a.NewTaskStore(),
		card:    card,
		process: process,
	}
	b.server = a2a.NewServer(card, b)
	return b
}

// Card returns the agent's A2A Agent Card.
func (b *BaseAgent) Card() a2a.AgentCard {
	return b.card
}

// Handler returns the agent's HTTP routes without binding a listener.
func (b *BaseAgent) Handler() http.Handler {
	return b.server.Handler()
}

// HandleTask processes task with msg and returns the stored result. A failed
// process leaves the task in the failed state with the error as its status
// message; the failed task is returned alongside the error.
func (b *BaseAgent) HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	task.Status = status(a2a.TaskStateSubmitted, "")
	if err := b.store.Create(task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := b.transition(task.ID, status(a2a.TaskStateWorking, ""), nil); err != nil {
		return nil, err
	}

	artifacts, procErr := b.process(ctx, &task, msg)
	if procErr != nil {
		_ = b.transition(task.ID, status(a2a.TaskStateFailed, procErr.Error()), nil)
		result, _ := b.store.Get(task.ID)
		return result, procErr
	}

	if err := b.transition(task.ID, status(a2a.TaskStateCompleted, ""), artifacts); err != nil {
		return nil, err
	}
	return b.store.Get(task.ID)
}

// transition moves a stored task to st, replacing its artifacts when
// artifacts is non-nil. A task that already reached a terminal state, such as
// one canceled while processing, is left unchanged.
func (b *BaseAgent) transition(id string, st a2a.TaskStatus, artifacts []a2a.Artifact) error {
	err := b.store.Update(id, func(t *a2a.Task) {
		if t.Status.State.IsTerminal() {
			return
		}
		t.Status = st
		if artifacts != nil {
			t.Artifacts = artifacts
		}
	})
	if err != nil {
		return fmt.Errorf("update task to %s: %w", st.State, err)
	}
	return nil
}

// status stamps a state change; a non-empty text becomes the agent's status
// message.
func status(state a2a.TaskState, text string) a2a.TaskStatus {
	st := a2a.TaskStatus{State: state, Timestamp: time.Now()}
	if text != "" {
		msg := a2a.NewMessage(a2a.RoleAgent, text)
		st.Message = &msg
	}
	return st
}

// Start launches the agent's HTTP server on the given address.
func (b *BaseAgent) Start(ctx context.Context, addr string) error {
	return b.server.Start(ctx, addr)
}

// Stop gracefully shuts down the agent.
func (b *BaseAgent) Stop(ctx context.Context) error {
	return b.server.Stop(ctx)
}

// --- a2a.Handler implementation ---

// HandleSendMessage creates a task from the incoming message and processes it.
// A processing failure is reported through the task state, not as an RPC
// error, so remote callers always receive the task.
func (b *BaseAgent) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	task := a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: req.Message.ContextID,
	}
	if req.Configuration != nil && len(req.Configuration.Metadata) > 0 {
		task.Metadata = req.Configuration.Metadata
	}
	result, err := b.HandleTask(ctx, task, req.Message)
	if result != nil {
		return result, nil
	}
	return nil, err
}

// HandleGetTask retrieves a task by ID from the store.
func (b *BaseAgent) HandleGetTask(_ context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return b.store.Get(req.ID)
}

// HandleCancelTask cancels a task if it is not in a terminal state.
func (b *BaseAgent) HandleCancelTask(_ context.Context, req a2a.CancelTaskRequest) (*a2a.Task, error) {
	err := b.store.Update(req.ID, func(t *a2a.Task) {
		if !t.Status.State.IsTerminal() {
			t.Status = status(a2a.TaskStateCanceled, "canceled by client")
		}
	})
	if err != nil {
		return nil, err
	}
	return b.store.Get(req.ID)
}
