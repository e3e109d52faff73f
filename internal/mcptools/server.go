// Package mcptools exposes a configured chain as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the chain tools registered. get_run
// is registered only when the service has a trace store.
func NewMCPServer(svc *ChainService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "moa",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_chain",
		Description: "Answer a query with the configured mixture-of-agents chain. Every layer's agents run concurrently and their responses are aggregated before the next layer. Returns the final content, or an error naming the failed layer.",
	}, svc.RunChain)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_pipeline",
		Description: "Describe the configured chain: iteration count, and for each layer its aggregation method and agents with their models.",
	}, svc.DescribePipeline)

	if svc.store != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "get_run",
			Description: "Return the recorded trace of a previous run: every agent response and aggregate, grouped by iteration and layer.",
		}, svc.GetRun)
	}

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
