package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/moa/internal/core"
)

// Final response metadata keys.
const (
	MetaIterations     = "iterations"
	MetaTotalResponses = "total_responses"
)

// Chain drives a pipeline: iterations × layers, each layer's aggregate
// feeding the next. It is safe for concurrent Execute calls; all per-run
// state lives on the stack.
type Chain struct {
	pipeline   core.Pipeline
	layers     *LayerProcessor
	aggregator *Aggregator
	recorder   Recorder
	onProgress func(ProgressEvent)
	logger     *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithRecorder persists each run's layers through r.
func WithRecorder(r Recorder) ChainOption {
	return func(c *Chain) { c.recorder = r }
}

// WithProgress sets the layer-level progress callback.
func WithProgress(fn func(ProgressEvent)) ChainOption {
	return func(c *Chain) { c.onProgress = fn }
}

// WithChainLogger sets the logger. The default is slog.Default().
func WithChainLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChain creates a Chain over p. A MaxIterations below 1 runs once.
func NewChain(p core.Pipeline, layers *LayerProcessor, aggregator *Aggregator, opts ...ChainOption) *Chain {
	if p.MaxIterations < 1 {
		p.MaxIterations = 1
	}
	c := &Chain{
		pipeline:   p,
		layers:     layers,
		aggregator: aggregator,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pipeline returns the configuration the chain runs.
func (c *Chain) Pipeline() core.Pipeline {
	return c.pipeline
}

// Run executes the chain and returns only the final response.
func (c *Chain) Run(ctx context.Context, query string) core.ModelResponse {
	return c.Execute(ctx, query).Response
}

// Execute runs the chain for query. It always returns a Result; failures,
// including panics, surface as an error-bearing Response with StateFailed.
func (c *Chain) Execute(ctx context.Context, query string) (res Result) {
	res = Result{RunID: uuid.NewString(), State: StateIdle}
	logger := c.logger.With("run_id", res.RunID)
	started := false

	defer func() {
		if p := recover(); p != nil {
			res.State = StateFailed
			res.Response = core.ErrorResponse(fmt.Errorf("chain: unexpected failure: %v", p))
			logger.Error("chain panicked", "error", res.Response.Err)
		}
		if started {
			c.finish(ctx, logger, res)
		}
	}()

	if len(c.pipeline.Layers) == 0 {
		res.State = StateFailed
		res.Response = core.ErrorResponse(core.Errorf(core.KindConfiguration, "chain", "pipeline has no layers"))
		return res
	}

	started = true
	c.record(logger, "start run", func() error {
		return c.recorder.StartRun(ctx, res.RunID, query)
	})

	qc := core.QueryContext{Query: query, CreatedAt: time.Now()}
	input := query
	res.State = StateRunning

	for iter := 0; iter < c.pipeline.MaxIterations; iter++ {
		qc.Iteration = iter

		for li, layer := range c.pipeline.Layers {
			if err := ctx.Err(); err != nil {
				return c.fail(logger, res, &LayerError{Layer: layer.Name, Index: li, Iteration: iter, Err: err})
			}
			res.State = StateRunning
			c.emit(ProgressEvent{Iteration: iter, Layer: layer.Name, Status: ProgressWorking})

			responses := c.layers.Process(ctx, qc, layer, input, res.History)
			rec := LayerRecord{
				RunID:      res.RunID,
				Iteration:  iter,
				LayerIndex: li,
				Layer:      layer.Name,
				Agents:     layer.Agents,
				Responses:  responses,
			}

			if err := firstError(responses); err != nil {
				c.record(logger, "record layer", func() error { return c.recorder.RecordLayer(ctx, rec) })
				return c.fail(logger, res, &LayerError{Layer: layer.Name, Index: li, Iteration: iter, Err: err})
			}

			agg := c.aggregator.Aggregate(ctx, responses, layer.Aggregation)
			if agg.Failed() {
				c.record(logger, "record layer", func() error { return c.recorder.RecordLayer(ctx, rec) })
				return c.fail(logger, res, &LayerError{Layer: layer.Name, Index: li, Iteration: iter, Err: agg.Err})
			}

			rec.Aggregate = &agg
			c.record(logger, "record layer", func() error { return c.recorder.RecordLayer(ctx, rec) })

			res.History = append(res.History, agg)
			input = agg.Content
			c.emit(ProgressEvent{Iteration: iter, Layer: layer.Name, Status: ProgressComplete})
			logger.Info("layer aggregated",
				"iteration", iter,
				"layer", layer.Name,
				"agents", len(responses),
				"method", string(layer.Aggregation.Method),
			)

			if c.pipeline.Stop != nil && c.pipeline.Stop.ShouldStop(res.History) {
				res.State = StateStopped
				res.Response = agg
				logger.Info("stop predicate fired", "iteration", iter, "layer", layer.Name)
				return res
			}
			res.State = StateContinuing
		}
	}

	last := res.History[len(res.History)-1]
	res.State = StateCompleted
	res.Response = core.ModelResponse{
		Content: last.Content,
		Metadata: map[string]any{
			MetaIterations:     c.pipeline.MaxIterations,
			MetaTotalResponses: len(res.History),
		},
	}
	return res
}

func (c *Chain) fail(logger *slog.Logger, res Result, err *LayerError) Result {
	res.State = StateFailed
	res.Response = core.ErrorResponse(err)
	c.emit(ProgressEvent{
		Iteration: err.Iteration,
		Layer:     err.Layer,
		Status:    ProgressFailed,
		Message:   err.Err.Error(),
	})
	logger.Error("layer failed",
		"iteration", err.Iteration,
		"layer", err.Layer,
		"error", err.Err,
	)
	return res
}

func (c *Chain) finish(ctx context.Context, logger *slog.Logger, res Result) {
	c.record(logger, "finish run", func() error {
		return c.recorder.FinishRun(context.WithoutCancel(ctx), res.RunID, res.State, res.Response)
	})
}

// record runs fn when a recorder is configured, logging instead of failing.
func (c *Chain) record(logger *slog.Logger, what string, fn func() error) {
	if c.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("trace "+what+" failed", "error", err)
	}
}

func (c *Chain) emit(ev ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(ev)
	}
}

// firstError returns the error of the first failed response in order.
func firstError(responses []core.ModelResponse) error {
	for _, r := range responses {
		if r.Failed() {
			return r.Err
		}
	}
	return nil
}
