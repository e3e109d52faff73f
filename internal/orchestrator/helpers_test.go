package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/moa/internal/backend"
	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/endpoint"
	"github.com/dusk-indust/moa/internal/prompt"
)

type invocation struct {
	Agent    core.Agent
	Rendered backend.Rendered
}

// fakeInvoker records every call and answers through fn.
type fakeInvoker struct {
	mu    sync.Mutex
	fn    func(agent core.Agent, r backend.Rendered) core.ModelResponse
	calls []invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, agent core.Agent, r backend.Rendered) core.ModelResponse {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{Agent: agent, Rendered: r})
	f.mu.Unlock()
	return f.fn(agent, r)
}

func (f *fakeInvoker) callsFor(name string) []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []invocation
	for _, c := range f.calls {
		if c.Agent.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// echoInvoker answers with "<agent>: <prompt>".
func echoInvoker() *fakeInvoker {
	return &fakeInvoker{fn: func(agent core.Agent, r backend.Rendered) core.ModelResponse {
		return core.ModelResponse{Content: agent.Name + ": " + r.Prompt}
	}}
}

// scriptedInvoker builds a real backend.Invoker whose ollama backend is fn.
func scriptedInvoker(fn func(req backend.Request) (string, error)) *backend.Invoker {
	b := backend.BackendFunc(func(_ context.Context, req backend.Request) (string, error) {
		return fn(req)
	})
	return backend.NewInvoker(endpoint.New(nil, 0), map[backend.Kind]backend.Backend{backend.KindOllama: b})
}

func agentNamed(name, tmpl string) core.Agent {
	return core.Agent{Name: name, Model: "ollama:test", Prompt: core.PromptSpec(tmpl)}
}

func responses(contents ...string) []core.ModelResponse {
	out := make([]core.ModelResponse, len(contents))
	for i, c := range contents {
		out[i] = core.ModelResponse{Content: c}
	}
	return out
}

func writePromptDoc(t *testing.T, dir, name, system, template string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("<prompt>")
	if system != "" {
		b.WriteString("<system>" + system + "</system>")
	}
	b.WriteString("<template>" + template + "</template></prompt>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func newResolver(t *testing.T) (*prompt.Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	return prompt.NewResolver(dir), dir
}
