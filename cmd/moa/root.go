package main

import (
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "moa",
		Short: "Mixture-of-agents orchestrator",
		Long: `moa answers a query by running it through layers of language-model agents.
Every agent in a layer runs concurrently, the layer's responses are reduced to
one by an aggregation strategy, and the aggregate becomes the next layer's input.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default: moa.yml in the current directory)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"log level (debug, info, warn, error); overrides the config file")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "",
		"log format (auto, text, json); overrides the config file")

	root.AddCommand(
		newRunCmd(opts),
		newInitCmd(),
		newServeA2ACmd(opts),
		newServeMCPCmd(opts),
		newTraceCmd(),
		newVersionCmd(),
	)
	return root
}
