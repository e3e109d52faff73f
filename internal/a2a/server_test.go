package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHandler struct {
	sendMessage func(ctx context.Context, req SendMessageRequest) (*Task, error)
	getTask     func(ctx context.Context, req GetTaskRequest) (*Task, error)
	cancelTask  func(ctx context.Context, req CancelTaskRequest) (*Task, error)
}

func (m *mockHandler) HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error) {
	return m.sendMessage(ctx, req)
}

func (m *mockHandler) HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error) {
	return m.getTask(ctx, req)
}

func (m *mockHandler) HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error) {
	return m.cancelTask(ctx, req)
}

func newTestServer(t *testing.T, h Handler) *httptest.Server {
	t.Helper()
	card := AgentCard{Name: "moa", Description: "mixture of agents", Version: "test"}
	ts := httptest.NewServer(NewServer(card, h).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postRaw(t *testing.T, url, body string) JSONRPCResponse {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_AgentCard(t *testing.T) {
	ts := newTestServer(t, &mockHandler{})

	card, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "moa", card.Name)
	assert.Equal(t, "test", card.Version)
}

func TestServer_SendMessageRoundTrip(t *testing.T) {
	h := &mockHandler{
		sendMessage: func(_ context.Context, req SendMessageRequest) (*Task, error) {
			return &Task{
				ID:        "t-1",
				Status:    TaskStatus{State: TaskStateCompleted},
				Artifacts: []Artifact{{Parts: []Part{TextPart("echo: " + req.Message.Text())}}},
			}, nil
		},
	}
	ts := newTestServer(t, h)

	task, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message: NewMessage(RoleUser, "ping"),
	})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	assert.Equal(t, "echo: ping", task.Text())
}

func TestServer_ProtocolErrors(t *testing.T) {
	ts := newTestServer(t, &mockHandler{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{not json`, ErrCodeParse},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"message/send"}`, ErrCodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"tasks/list"}`, ErrCodeMethodNotFound},
		{"invalid params", `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":[1,2]}`, ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRaw(t, ts.URL, tt.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Result)
		})
	}
}

func TestServer_HandlerErrors(t *testing.T) {
	h := &mockHandler{
		getTask: func(_ context.Context, req GetTaskRequest) (*Task, error) {
			return nil, fmt.Errorf("task %q: %w", req.ID, ErrTaskNotFound)
		},
		cancelTask: func(context.Context, CancelTaskRequest) (*Task, error) {
			return nil, errors.New("boom")
		},
	}
	ts := newTestServer(t, h)
	client := NewHTTPClient()

	_, err := client.GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "nope"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeTaskNotFound, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "nope")

	_, err = client.CancelTask(context.Background(), ts.URL, CancelTaskRequest{ID: "x"})
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeInternal, rpcErr.Code)
	assert.Equal(t, "boom", rpcErr.Message)
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(AgentCard{Name: "moa"}, &mockHandler{})
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))
	require.NoError(t, srv.Stop(context.Background()))

	assert.NoError(t, NewServer(AgentCard{}, &mockHandler{}).Stop(context.Background()),
		"stopping a server that never started is a no-op")
}
