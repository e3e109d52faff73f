// Package backend invokes language models. A model identifier carries a
// namespace prefix ("ollama:llama3", "llm:gpt-4o-mini", "a2a:planner") that
// selects one of a closed set of backend kinds.
package backend

import (
	"context"
	"strings"

	"github.com/dusk-indust/moa/internal/core"
)

// Kind is a supported backend invocation style.
type Kind int

const (
	KindOllama Kind = iota + 1
	KindLLM
	KindA2A
)

// Kinds lists every supported backend in prefix order.
var Kinds = []Kind{KindOllama, KindLLM, KindA2A}

// String returns the model identifier prefix for the kind.
func (k Kind) String() string {
	switch k {
	case KindOllama:
		return "ollama"
	case KindLLM:
		return "llm"
	case KindA2A:
		return "a2a"
	default:
		return "unknown"
	}
}

// ParseModel splits a namespaced model identifier into its backend kind and
// the backend-local model name.
func ParseModel(id string) (Kind, string, error) {
	const op = "backend.ParseModel"

	prefix, model, ok := strings.Cut(strings.TrimSpace(id), ":")
	if !ok {
		return 0, "", core.Errorf(core.KindUnsupportedBackend, op, "unsupported model backend %q", id)
	}

	var kind Kind
	for _, k := range Kinds {
		if strings.EqualFold(prefix, k.String()) {
			kind = k
			break
		}
	}
	if kind == 0 {
		return 0, "", core.Errorf(core.KindUnsupportedBackend, op, "unsupported model backend %q", prefix)
	}
	if strings.TrimSpace(model) == "" {
		return 0, "", core.Errorf(core.KindConfiguration, op, "model identifier %q has no model name", id)
	}
	return kind, strings.TrimSpace(model), nil
}

// Request is one generation call, already rendered.
type Request struct {
	Model       string
	Prompt      string
	System      string
	Temperature *float64
	Endpoint    core.Endpoint
}

// Backend produces text for a request. Implementations return the raw
// output; trimming and the empty-output guard belong to the Invoker.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
