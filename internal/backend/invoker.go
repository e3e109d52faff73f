package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/endpoint"
)

// Metadata keys set on every response produced by the Invoker.
const (
	MetaAgent      = "agent"
	MetaModel      = "model"
	MetaBackend    = "backend"
	MetaEndpoint   = "endpoint"
	MetaDurationMS = "duration_ms"
)

// Rendered is a fully substituted prompt ready for invocation.
type Rendered struct {
	System string
	Prompt string
}

// Invoker turns an agent plus a rendered prompt into a ModelResponse.
// Failures never escape as Go errors or panics: they come back in
// ModelResponse.Err.
type Invoker struct {
	selector *endpoint.Selector
	backends map[Kind]Backend
	breakers *Breakers
	logger   *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(inv *Invoker) {
		if l != nil {
			inv.logger = l
		}
	}
}

// WithBreakers replaces the circuit breaker registry.
func WithBreakers(b *Breakers) Option {
	return func(inv *Invoker) {
		if b != nil {
			inv.breakers = b
		}
	}
}

// DefaultBackends returns one production backend per Kind.
func DefaultBackends() map[Kind]Backend {
	return map[Kind]Backend{
		KindOllama: NewOllamaBackend(nil),
		KindLLM:    NewCommandBackend("", nil),
		KindA2A:    NewA2ABackend(nil),
	}
}

// NewInvoker builds an invoker that assigns endpoints from selector and
// dispatches to backends by kind. A nil selector behaves as an empty one.
func NewInvoker(selector *endpoint.Selector, backends map[Kind]Backend, opts ...Option) *Invoker {
	if selector == nil {
		selector = endpoint.New(nil, 0)
	}
	inv := &Invoker{
		selector: selector,
		backends: backends,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.breakers == nil {
		inv.breakers = NewBreakers(BreakerConfig{}, inv.logger)
	}
	return inv
}

// Invoke runs one agent. The endpoint is the agent's override when set,
// otherwise the selector's next endpoint. Output is trimmed, and blank output
// is an EmptyResponse failure even when the backend reported success.
func (inv *Invoker) Invoke(ctx context.Context, agent core.Agent, r Rendered) (resp core.ModelResponse) {
	op := "invoke " + agent.Name
	start := time.Now()
	meta := map[string]any{
		MetaAgent: agent.Name,
		MetaModel: agent.Model,
	}

	defer func() {
		if p := recover(); p != nil {
			resp = core.ModelResponse{
				Metadata: meta,
				Err:      core.Errorf(core.KindBackendInvocation, op, "backend panic: %v", p),
			}
		}
		resp.Metadata[MetaDurationMS] = time.Since(start).Milliseconds()
	}()

	kind, model, err := ParseModel(agent.Model)
	if err != nil {
		return core.ModelResponse{Metadata: meta, Err: err}
	}
	meta[MetaBackend] = kind.String()

	b, ok := inv.backends[kind]
	if !ok || b == nil {
		return core.ModelResponse{
			Metadata: meta,
			Err:      core.Errorf(core.KindUnsupportedBackend, op, "no %s backend registered", kind),
		}
	}

	var ep core.Endpoint
	if agent.Endpoint != nil {
		ep = *agent.Endpoint
	} else {
		ep = inv.selector.Next()
	}
	meta[MetaEndpoint] = ep.URI

	key := BreakerKey(kind, ep.URI)
	out, err := inv.breakers.Execute(key, func() (string, error) {
		return b.Generate(ctx, Request{
			Model:       model,
			Prompt:      r.Prompt,
			System:      r.System,
			Temperature: agent.Temperature,
			Endpoint:    ep,
		})
	})
	if err != nil {
		if IsOpen(err) {
			err = fmt.Errorf("circuit open for %s: %w", key, err)
		}
		inv.logger.Debug("backend call failed",
			"agent", agent.Name, "model", agent.Model, "endpoint", ep.URI, "error", err)
		return core.ModelResponse{Metadata: meta, Err: core.Wrap(core.KindBackendInvocation, op, err)}
	}

	content := strings.TrimSpace(out)
	if content == "" {
		return core.ModelResponse{
			Metadata: meta,
			Err:      core.Errorf(core.KindEmptyResponse, op, "empty response from %s", agent.Model),
		}
	}

	inv.logger.Debug("agent responded",
		"agent", agent.Name, "model", agent.Model, "endpoint", ep.URI, "duration_ms", time.Since(start).Milliseconds())
	return core.ModelResponse{Content: content, Metadata: meta}
}
