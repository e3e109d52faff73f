package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/moa/internal/backend"
	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/prompt"
)

// LayerProcessor fans a layer's agents out concurrently and collects their
// responses in declaration order.
type LayerProcessor struct {
	resolver    *prompt.Resolver
	invoker     Invoker
	maxParallel int
	onProgress  func(ProgressEvent)
}

// NewLayerProcessor creates a LayerProcessor. maxParallel bounds concurrent
// agent calls within a layer; zero or less means unbounded. onProgress is
// called from each agent goroutine and may be nil.
func NewLayerProcessor(resolver *prompt.Resolver, invoker Invoker, maxParallel int, onProgress func(ProgressEvent)) *LayerProcessor {
	if resolver == nil {
		resolver = prompt.NewResolver("")
	}
	return &LayerProcessor{
		resolver:    resolver,
		invoker:     invoker,
		maxParallel: maxParallel,
		onProgress:  onProgress,
	}
}

// Process runs every agent of layer against input and the prior aggregates.
// It waits for all agents; one agent's failure never cancels another. The
// result has one entry per agent, in the layer's agent order.
func (lp *LayerProcessor) Process(ctx context.Context, qc core.QueryContext, layer core.Layer, input string, prior []core.ModelResponse) []core.ModelResponse {
	results := make([]core.ModelResponse, len(layer.Agents))

	var g errgroup.Group
	if lp.maxParallel > 0 {
		g.SetLimit(lp.maxParallel)
	}

	for i, agent := range layer.Agents {
		lp.emit(ProgressEvent{
			Iteration: qc.Iteration,
			Layer:     layer.Name,
			Agent:     agent.Name,
			Status:    ProgressPending,
		})

		g.Go(func() error {
			resp := lp.runAgent(ctx, qc, layer.Name, agent, input, prior)
			results[i] = resp

			if resp.Failed() {
				lp.emit(ProgressEvent{
					Iteration: qc.Iteration,
					Layer:     layer.Name,
					Agent:     agent.Name,
					Status:    ProgressFailed,
					Message:   resp.Err.Error(),
				})
			} else {
				lp.emit(ProgressEvent{
					Iteration: qc.Iteration,
					Layer:     layer.Name,
					Agent:     agent.Name,
					Status:    ProgressComplete,
				})
			}
			return nil
		})
	}

	// Goroutines never return errors; failures travel in the responses.
	_ = g.Wait()
	return results
}

// runAgent resolves, renders, and invokes one agent. Resolution failures and
// panics become error responses for that agent only.
func (lp *LayerProcessor) runAgent(ctx context.Context, qc core.QueryContext, layer string, agent core.Agent, input string, prior []core.ModelResponse) (resp core.ModelResponse) {
	defer func() {
		if p := recover(); p != nil {
			resp = core.ErrorResponse(core.Errorf(core.KindBackendInvocation, "invoke "+agent.Name, "agent panic: %v", p))
		}
	}()

	lp.emit(ProgressEvent{
		Iteration: qc.Iteration,
		Layer:     layer,
		Agent:     agent.Name,
		Status:    ProgressWorking,
	})

	resolved, err := lp.resolver.Resolve(agent.Prompt)
	if err != nil {
		return core.ModelResponse{
			Metadata: map[string]any{backend.MetaAgent: agent.Name},
			Err:      fmt.Errorf("agent %s: %w", agent.Name, err),
		}
	}

	// With no system prompt configured, the rendered template doubles as one.
	text := prompt.RenderAgent(resolved.Template, input, prior)
	system := resolved.System
	if system == "" {
		system = agent.SystemPrompt
	}
	rendered := backend.Rendered{System: text, Prompt: text}
	if system != "" {
		rendered.System = prompt.RenderAgent(system, input, prior)
	}
	return lp.invoker.Invoke(ctx, agent, rendered)
}

// emit sends a progress event if a callback is registered.
func (lp *LayerProcessor) emit(ev ProgressEvent) {
	if lp.onProgress != nil {
		lp.onProgress(ev)
	}
}
