package core

import (
	"encoding/json"
	"strings"
	"time"
)

// DocumentExt is the file extension that marks a PromptSpec as a reference to
// an external prompt document rather than inline template text.
const DocumentExt = ".xml"

// PromptSpec is either an inline template or a path to a prompt document.
type PromptSpec string

// IsDocument reports whether p refers to an external prompt document.
func (p PromptSpec) IsDocument() bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(string(p))), DocumentExt)
}

// Endpoint is a compute target that can execute model invocations.
type Endpoint struct {
	URI      string `json:"uri" yaml:"uri"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Priority int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Label returns the display name when set, otherwise the URI.
func (e Endpoint) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.URI
}

// Agent is one model-invocation unit within a layer.
type Agent struct {
	Name string

	// Model is a namespaced identifier such as "ollama:llama3".
	Model string

	Temperature  *float64
	Prompt       PromptSpec
	SystemPrompt string

	// Endpoint overrides round-robin selection when non-nil.
	Endpoint *Endpoint
}

// Method names an aggregation strategy.
type Method string

const (
	MethodVoting      Method = "voting"
	MethodSynthesis   Method = "synthesis"
	MethodConcatenate Method = "concatenate"
	MethodWeighted    Method = "weighted"
)

// Valid reports whether m is one of the declared methods.
func (m Method) Valid() bool {
	switch m {
	case MethodVoting, MethodSynthesis, MethodConcatenate, MethodWeighted:
		return true
	}
	return false
}

// AggregationStrategy declares how a layer's responses are reduced to one.
type AggregationStrategy struct {
	Method Method

	// Prompt is used by synthesis.
	Prompt PromptSpec

	// Weights is used by weighted; index i applies to agent i.
	Weights []float64

	// Comparator enables plurality voting ("exact" or "normalized"). Empty
	// keeps the first-response behavior.
	Comparator string
}

// Layer is an ordered group of agents executed concurrently.
type Layer struct {
	Name        string
	Agents      []Agent
	Aggregation AggregationStrategy
}

// ModelResponse is the uniform result of an agent invocation or aggregation.
// A response with a non-nil Err is a failure marker regardless of Content.
type ModelResponse struct {
	Content  string
	Metadata map[string]any
	Err      error
}

// Failed reports whether the response carries an error.
func (r ModelResponse) Failed() bool {
	return r.Err != nil
}

// ErrorResponse builds an error-bearing response with empty content.
func ErrorResponse(err error) ModelResponse {
	return ModelResponse{Err: err}
}

type responseJSON struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// MarshalJSON renders Err as its string form.
func (r ModelResponse) MarshalJSON() ([]byte, error) {
	out := responseJSON{Content: r.Content, Metadata: r.Metadata}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// QueryContext carries per-run information threaded through the chain.
type QueryContext struct {
	Query     string
	CreatedAt time.Time
	Iteration int
}

// StopPredicate decides, after each layer, whether the chain should end early.
type StopPredicate interface {
	ShouldStop(history []ModelResponse) bool
}

// Pipeline is the immutable configuration of one chain run.
type Pipeline struct {
	Layers        []Layer
	MaxIterations int

	// Stop is optional.
	Stop StopPredicate
}
