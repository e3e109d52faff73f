package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/moa/internal/orchestrator"
)

type runOptions struct {
	input   string
	output  string
	traceDB string
	verbose bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Run the chain for one query",
		Long: `Run the configured chain once. The query is the joined arguments, or the
contents of --input ("-" reads stdin). The final answer is written to stdout or
to --output. An error-bearing result exits non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, g, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "read the query from a file (\"-\" for stdin)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the answer to a file instead of stdout")
	cmd.Flags().StringVar(&opts.traceDB, "trace-db", "", "record the run in a trace database at this path")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print layer and agent progress to stderr")
	return cmd
}

func runQuery(cmd *cobra.Command, g *globalOptions, opts *runOptions, args []string) error {
	query, err := readQuery(cmd.InOrStdin(), opts.input, args)
	if err != nil {
		return err
	}

	ao := appOptions{traceDB: opts.traceDB, logOutput: cmd.ErrOrStderr()}
	var wg sync.WaitGroup
	var reporter *orchestrator.ProgressReporter
	if opts.verbose {
		reporter = orchestrator.NewProgressReporter()
		ao.onProgress = reporter.Emit
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range reporter.Subscribe() {
				fmt.Fprintln(cmd.ErrOrStderr(), orchestrator.FormatProgress(ev))
			}
		}()
	}

	drain := func() {
		if reporter != nil {
			reporter.Close()
			wg.Wait()
		}
	}

	a, err := newApp(cmd.Context(), g, ao)
	if err != nil {
		drain()
		return err
	}
	defer a.Close()

	res := a.chain.Execute(cmd.Context(), query)
	drain()
	if a.store != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s recorded in %s\n", res.RunID, opts.traceDB)
	}
	if res.Response.Err != nil {
		return res.Response.Err
	}
	return writeAnswer(cmd.OutOrStdout(), opts.output, res.Response.Content)
}

// readQuery returns the query from --input or the positional arguments.
func readQuery(stdin io.Reader, input string, args []string) (string, error) {
	if input != "" && len(args) > 0 {
		return "", errors.New("pass the query as arguments or with --input, not both")
	}

	var query string
	switch {
	case input == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		query = string(data)
	case input != "":
		data, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		query = string(data)
	default:
		query = strings.Join(args, " ")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("no query given")
	}
	return query, nil
}

func writeAnswer(stdout io.Writer, output, content string) error {
	if output == "" {
		_, err := fmt.Fprintln(stdout, content)
		return err
	}
	if err := os.WriteFile(output, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
