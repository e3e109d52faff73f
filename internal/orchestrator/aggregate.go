package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dusk-indust/moa/internal/backend"
	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/prompt"
)

// DefaultSynthesisModel is used when no synthesis model is configured.
const DefaultSynthesisModel = "ollama:llama3"

// DefaultSynthesisTemplate is the synthesis prompt when a layer names none.
const DefaultSynthesisTemplate = `You have been provided with a set of responses from various models to the latest user query. Synthesize these responses into a single, high-quality response. Critically evaluate the information, recognizing that some of it may be biased or incorrect. Do not simply replicate the given answers; offer a refined, accurate, and comprehensive reply.

` + prompt.PlaceholderResponses

// Voting comparators.
const (
	ComparatorExact      = "exact"
	ComparatorNormalized = "normalized"
)

// MetaMethod is the metadata key naming the aggregation method used.
const MetaMethod = "method"

// AggregateRequest is the input handed to a Strategy. Prompt holds the
// strategy's prompt, already resolved.
type AggregateRequest struct {
	Responses []core.ModelResponse
	Strategy  core.AggregationStrategy
	Prompt    prompt.Resolved
}

// Strategy reduces a layer's responses to one.
type Strategy interface {
	Aggregate(ctx context.Context, req AggregateRequest) core.ModelResponse
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx context.Context, req AggregateRequest) core.ModelResponse

// Aggregate calls f.
func (f StrategyFunc) Aggregate(ctx context.Context, req AggregateRequest) core.ModelResponse {
	return f(ctx, req)
}

// Aggregator dispatches to a Strategy by method. Unknown methods fall back to
// concatenation.
type Aggregator struct {
	resolver   *prompt.Resolver
	strategies map[core.Method]Strategy
}

// NewAggregator creates an Aggregator with the four built-in strategies.
// Synthesis invokes synthesisModel through invoker.
func NewAggregator(resolver *prompt.Resolver, invoker Invoker, synthesisModel string) *Aggregator {
	if resolver == nil {
		resolver = prompt.NewResolver("")
	}
	if synthesisModel == "" {
		synthesisModel = DefaultSynthesisModel
	}
	return &Aggregator{
		resolver: resolver,
		strategies: map[core.Method]Strategy{
			core.MethodSynthesis:   &SynthesisStrategy{Invoker: invoker, Model: synthesisModel},
			core.MethodWeighted:    StrategyFunc(weighted),
			core.MethodVoting:      StrategyFunc(voting),
			core.MethodConcatenate: StrategyFunc(concatenate),
		},
	}
}

// Register installs or replaces the strategy for method.
func (a *Aggregator) Register(method core.Method, s Strategy) {
	a.strategies[method] = s
}

// Aggregate reduces responses according to strategy. An empty response set,
// or one containing a failure, yields an AggregationError response.
func (a *Aggregator) Aggregate(ctx context.Context, responses []core.ModelResponse, strategy core.AggregationStrategy) core.ModelResponse {
	const op = "aggregate"

	if len(responses) == 0 {
		return core.ErrorResponse(core.Errorf(core.KindAggregation, op, "no responses to aggregate"))
	}
	for i, r := range responses {
		if r.Failed() {
			return core.ErrorResponse(&core.Error{
				Kind: core.KindAggregation,
				Op:   op,
				Msg:  fmt.Sprintf("response %d failed", i+1),
				Err:  r.Err,
			})
		}
	}

	var resolved prompt.Resolved
	if strategy.Prompt != "" {
		var err error
		resolved, err = a.resolver.Resolve(strategy.Prompt)
		if err != nil {
			return core.ErrorResponse(err)
		}
	}

	method := strategy.Method
	s, ok := a.strategies[method]
	if !ok {
		method = core.MethodConcatenate
		s = a.strategies[method]
	}

	resp := s.Aggregate(ctx, AggregateRequest{
		Responses: responses,
		Strategy:  strategy,
		Prompt:    resolved,
	})
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata[MetaMethod] = string(method)
	return resp
}

// ---------------------------------------------------------------------------
// Built-in strategies
// ---------------------------------------------------------------------------

// SynthesisStrategy asks a model to merge the responses into one answer.
type SynthesisStrategy struct {
	Invoker Invoker
	Model   string
}

// Aggregate implements Strategy.
func (s *SynthesisStrategy) Aggregate(ctx context.Context, req AggregateRequest) core.ModelResponse {
	tmpl := req.Prompt.Template
	if tmpl == "" {
		tmpl = DefaultSynthesisTemplate
	}
	agent := core.Agent{
		Name:   "synthesis",
		Model:  s.Model,
		Prompt: core.PromptSpec(tmpl),
	}
	return s.Invoker.Invoke(ctx, agent, backend.Rendered{
		System: req.Prompt.System,
		Prompt: prompt.RenderSynthesis(tmpl, req.Responses),
	})
}

// weighted sums numeric contents scaled by their weights. Without weights,
// each response gets 1/N.
func weighted(_ context.Context, req AggregateRequest) core.ModelResponse {
	const op = "aggregate weighted"
	n := len(req.Responses)

	weights := req.Strategy.Weights
	if len(weights) == 0 {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
	}
	if len(weights) < n {
		return core.ErrorResponse(core.Errorf(core.KindAggregation, op,
			"%d weights for %d responses", len(weights), n))
	}

	var sum float64
	for i, r := range req.Responses {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Content), 64)
		if err != nil {
			return core.ErrorResponse(core.Errorf(core.KindAggregation, op,
				"response %d is not numeric: %q", i+1, truncate(r.Content, 40)))
		}
		sum += v * weights[i]
	}
	return core.ModelResponse{Content: strconv.FormatFloat(sum, 'g', -1, 64)}
}

// voting returns the first response unless a comparator is configured, in
// which case the most frequent content wins and ties go to the earliest.
func voting(_ context.Context, req AggregateRequest) core.ModelResponse {
	var key func(string) string
	switch req.Strategy.Comparator {
	case "":
		return core.ModelResponse{Content: req.Responses[0].Content}
	case ComparatorExact:
		key = strings.TrimSpace
	case ComparatorNormalized:
		key = normalizeVote
	default:
		return core.ErrorResponse(core.Errorf(core.KindAggregation, "aggregate voting",
			"unknown comparator %q", req.Strategy.Comparator))
	}

	counts := make(map[string]int, len(req.Responses))
	first := make(map[string]int, len(req.Responses))
	for i, r := range req.Responses {
		k := key(r.Content)
		if _, seen := first[k]; !seen {
			first[k] = i
		}
		counts[k]++
	}

	winner := 0
	best := 0
	for i, r := range req.Responses {
		k := key(r.Content)
		if first[k] != i {
			continue
		}
		if counts[k] > best {
			best = counts[k]
			winner = i
		}
	}
	return core.ModelResponse{
		Content:  req.Responses[winner].Content,
		Metadata: map[string]any{"votes": best},
	}
}

// concatenate joins trimmed contents with a blank line.
func concatenate(_ context.Context, req AggregateRequest) core.ModelResponse {
	parts := make([]string, len(req.Responses))
	for i, r := range req.Responses {
		parts[i] = strings.TrimSpace(r.Content)
	}
	return core.ModelResponse{Content: strings.Join(parts, "\n\n")}
}

func normalizeVote(s string) string {
	return strings.ToLower(collapseSpace(s))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
