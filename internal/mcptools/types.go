package mcptools

import "github.com/dusk-indust/moa/internal/export"

// --- MCP tool types for serve-mcp ---

// RunChainInput is the input for the run_chain MCP tool.
type RunChainInput struct {
	Query string `json:"query" jsonschema:"the question or task to run through every layer of the chain"`
}

// RunChainOutput is the result of the run_chain MCP tool. Error is set when
// the chain ended with an error-bearing response.
type RunChainOutput struct {
	RunID    string         `json:"runId"`
	State    string         `json:"state"`
	Content  string         `json:"content"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DescribePipelineInput is the input for the describe_pipeline MCP tool.
type DescribePipelineInput struct{}

// DescribePipelineOutput summarizes the configured chain.
type DescribePipelineOutput struct {
	MaxIterations int            `json:"maxIterations"`
	Layers        []LayerSummary `json:"layers"`
}

// LayerSummary is one layer of the configured chain.
type LayerSummary struct {
	Name   string         `json:"name"`
	Method string         `json:"method"`
	Agents []AgentSummary `json:"agents"`
}

// AgentSummary is one agent of a layer.
type AgentSummary struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// GetRunInput is the input for the get_run MCP tool.
type GetRunInput struct {
	RunID string `json:"runId" jsonschema:"run ID returned by run_chain"`
}

// GetRunOutput is the recorded trace of one run.
type GetRunOutput struct {
	RunID      string               `json:"runId"`
	Query      string               `json:"query"`
	State      string               `json:"state"`
	CreatedAt  string               `json:"createdAt"`
	Final      string               `json:"final,omitempty"`
	Error      string               `json:"error,omitempty"`
	ExportedAt string               `json:"exportedAt"`
	Layers     []export.LayerExport `json:"layers"`
}
