package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/moa/internal/agent"
	"github.com/dusk-indust/moa/internal/mcptools"
)

func newServeA2ACmd(g *globalOptions) *cobra.Command {
	var addr, name, url, traceDB string
	cmd := &cobra.Command{
		Use:   "serve-a2a",
		Short: "Serve the chain as an A2A agent over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g, appOptions{traceDB: traceDB, logOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			if url == "" {
				url = "http://" + addr
			}
			ag := agent.NewChainAgent(a.chain, agent.DefaultCard(name, version, url))
			if err := ag.Start(ctx, addr); err != nil {
				return err
			}
			a.logger.Info("a2a agent listening", "addr", addr, "name", ag.Card().Name)

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return ag.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8090", "listen address")
	cmd.Flags().StringVar(&name, "name", "moa", "agent name advertised in the agent card")
	cmd.Flags().StringVar(&url, "url", "", "public URL advertised in the agent card (default: http://<addr>)")
	cmd.Flags().StringVar(&traceDB, "trace-db", "", "record runs in a trace database at this path")
	return cmd
}

func newServeMCPCmd(g *globalOptions) *cobra.Command {
	var addr, traceDB string
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the chain as MCP tools (stdio, or HTTP with --addr)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g, appOptions{traceDB: traceDB, logOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcptools.NewMCPServer(mcptools.NewChainService(a.chain, a.store))
			if addr == "" {
				return mcptools.RunStdio(ctx, server)
			}
			a.logger.Info("mcp server listening", "addr", addr)
			if err := mcptools.RunHTTP(ctx, server, addr); err != nil {
				return fmt.Errorf("mcp http: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "serve streamable HTTP on this address instead of stdio")
	cmd.Flags().StringVar(&traceDB, "trace-db", "", "record runs in a trace database at this path")
	return cmd
}
