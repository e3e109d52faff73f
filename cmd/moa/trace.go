package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/moa/internal/export"
	"github.com/dusk-indust/moa/internal/trace"
)

func newTraceCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", ".moa/trace", "trace database path")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := trace.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			return renderRunList(cmd.OutOrStdout(), runs)
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Export one run as a Mermaid diagram or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := trace.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			switch format {
			case "mermaid":
				out, err := export.Mermaid(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			case "json":
				out, err := export.JSON(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(out, '\n'))
				return err
			default:
				return fmt.Errorf("unknown format %q (want mermaid or json)", format)
			}
		},
	}
	show.Flags().StringVar(&format, "format", "mermaid", "output format (mermaid, json)")

	cmd.AddCommand(list, show)
	return cmd
}

func renderRunList(w io.Writer, runs []trace.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tSTATE\tQUERY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), r.State, truncate(r.Query, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
