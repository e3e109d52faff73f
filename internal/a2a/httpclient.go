package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

var _ Client = (*HTTPClient)(nil)

const (
	// maxResponseBytes bounds how much of a reply body is read.
	maxResponseBytes = 10 << 20
	// maxErrorBody bounds the body quoted in HTTP status errors.
	maxErrorBody = 4096
)

// HTTPClient calls remote agents with JSON-RPC over HTTP POST.
type HTTPClient struct {
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = hc }
}

// NewHTTPClient creates a client. The five minute default timeout covers a
// blocking message/send that waits for a remote chain to finish.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{http: &http.Client{Timeout: 5 * time.Minute}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage sends a message via message/send.
func (c *HTTPClient) SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error) {
	return callTask(ctx, c, endpoint, MethodSendMessage, req)
}

// GetTask retrieves a task via tasks/get.
func (c *HTTPClient) GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error) {
	return callTask(ctx, c, endpoint, MethodGetTask, req)
}

// CancelTask cancels a task via tasks/cancel.
func (c *HTTPClient) CancelTask(ctx context.Context, endpoint string, req CancelTaskRequest) (*Task, error) {
	return callTask(ctx, c, endpoint, MethodCancelTask, req)
}

// DiscoverAgent fetches the card published under AgentCardPath.
func (c *HTTPClient) DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+AgentCardPath, nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: create request: %w", err)
	}

	body, err := c.do(httpReq, "discover agent")
	if err != nil {
		return nil, err
	}
	var card AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("a2a: decode agent card: %w", err)
	}
	return &card, nil
}

func callTask(ctx context.Context, c *HTTPClient, endpoint, method string, params any) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, method, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// call posts one request envelope and decodes the result into out.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params, out any) error {
	rpcReq, err := newRequest(c.requestID.Add(1), method, params)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("a2a: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("a2a: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq, method)
	if err != nil {
		return err
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("a2a: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{Method: method, Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if out == nil || rpcResp.Result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("a2a: decode result: %w", err)
	}
	return nil
}

// do sends req and returns the body of a 200 reply. Any other status is an
// error quoting the start of the body.
func (c *HTTPClient) do(req *http.Request, what string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("a2a: %s: HTTP %d: %s", what, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("a2a: read response: %w", err)
	}
	return body, nil
}
