package a2a

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only protocol version accepted on the wire.
const JSONRPCVersion = "2.0"

// AgentCardPath is where an agent publishes its card, relative to its base URL.
const AgentCardPath = "/.well-known/agent-card.json"

// Methods served by an agent.
const (
	MethodSendMessage = "message/send"
	MethodGetTask     = "tasks/get"
	MethodCancelTask  = "tasks/cancel"
)

// Error codes. The first five are reserved by JSON-RPC; the rest are A2A.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	ErrCodeTaskNotFound = -32001
)

// JSONRPCRequest is the request envelope. Params stays raw until the method
// is known.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is the response envelope; exactly one of Result and Error
// is set.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is the error member of a response.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newRequest encodes params into a request envelope.
func newRequest(id int64, method string, params any) (JSONRPCRequest, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return JSONRPCRequest{}, fmt.Errorf("a2a: marshal params: %w", err)
	}
	return JSONRPCRequest{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: raw}, nil
}

// RPCError is a JSON-RPC error returned by a remote agent.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("a2a: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// TaskNotFound reports whether the agent did not know the task.
func (e *RPCError) TaskNotFound() bool {
	return e.Code == ErrCodeTaskNotFound
}
