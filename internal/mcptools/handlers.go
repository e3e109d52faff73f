package mcptools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/export"
	"github.com/dusk-indust/moa/internal/orchestrator"
	"github.com/dusk-indust/moa/internal/trace"
)

// Chain is the subset of orchestrator.Chain the tools need.
type Chain interface {
	Execute(ctx context.Context, query string) orchestrator.Result
	Pipeline() core.Pipeline
}

var _ Chain = (*orchestrator.Chain)(nil)

// ChainService handles MCP tool calls against one configured chain.
type ChainService struct {
	chain Chain
	store trace.Store
}

// NewChainService creates a ChainService. store may be nil, in which case
// get_run reports that tracing is disabled.
func NewChainService(chain Chain, store trace.Store) *ChainService {
	return &ChainService{chain: chain, store: store}
}

// RunChain runs the chain for one query. Chain failures are reported in the
// output, not as tool errors.
func (s *ChainService) RunChain(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunChainInput,
) (*mcp.CallToolResult, RunChainOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, RunChainOutput{}, errors.New("query is required")
	}

	res := s.chain.Execute(ctx, query)
	out := RunChainOutput{
		RunID:    res.RunID,
		State:    res.State.String(),
		Content:  res.Response.Content,
		Metadata: res.Response.Metadata,
	}
	if res.Response.Err != nil {
		out.Error = res.Response.Err.Error()
	}
	return nil, out, nil
}

// DescribePipeline reports the layers and agents of the configured chain.
func (s *ChainService) DescribePipeline(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ DescribePipelineInput,
) (*mcp.CallToolResult, DescribePipelineOutput, error) {
	p := s.chain.Pipeline()
	out := DescribePipelineOutput{
		MaxIterations: p.MaxIterations,
		Layers:        make([]LayerSummary, 0, len(p.Layers)),
	}
	for _, l := range p.Layers {
		ls := LayerSummary{
			Name:   l.Name,
			Method: string(l.Aggregation.Method),
			Agents: make([]AgentSummary, 0, len(l.Agents)),
		}
		for _, a := range l.Agents {
			ls.Agents = append(ls.Agents, AgentSummary{Name: a.Name, Model: a.Model})
		}
		out.Layers = append(out.Layers, ls)
	}
	return nil, out, nil
}

// GetRun returns the recorded trace of a previous run.
func (s *ChainService) GetRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRunInput,
) (*mcp.CallToolResult, GetRunOutput, error) {
	if s.store == nil {
		return nil, GetRunOutput{}, errors.New("tracing is disabled; start the server with --trace-db")
	}
	exp, err := export.BuildRun(ctx, s.store, input.RunID)
	if err != nil {
		return nil, GetRunOutput{}, err
	}
	return nil, GetRunOutput{
		RunID:      exp.Run.ID,
		Query:      exp.Run.Query,
		State:      exp.Run.State,
		CreatedAt:  exp.Run.CreatedAt.Format(time.RFC3339),
		Final:      exp.Run.Final,
		Error:      exp.Run.Error,
		ExportedAt: exp.ExportedAt,
		Layers:     exp.Layers,
	}, nil
}
