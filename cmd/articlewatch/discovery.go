package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ArticleWatch/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one discovery run and wait for it to finish",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := application.Discovery.Trigger(cmd.Context(), true)
		if err != nil {
			return err
		}
		printRun(cmd.OutOrStdout(), run)
		if run.Status == domain.RunFailed {
			return fmt.Errorf("run %s failed", run.ID)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the state of a discovery run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := application.Discovery.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRun(cmd.OutOrStdout(), run)
		return nil
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent discovery runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := application.Discovery.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tITEMS\tCREATED\tERROR")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Status, r.ItemsCount, r.CreatedAt.Format(time.RFC3339), r.ErrorMessage)
		}
		return w.Flush()
	},
}

var itemsFilter domain.ItemFilter

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List discovered articles by similarity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := application.Discovery.ListItems(cmd.Context(), itemsFilter)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tSOURCE\tDOI\tTITLE\tURL")
		for _, it := range items {
			fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n", it.FinalScore, it.SourceName, it.DOI, it.Title, it.URL)
		}
		return w.Flush()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run discovery and conversation retention on the configured interval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.Serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.Migrate(cmd.Context())
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs (1-100)")

	itemsCmd.Flags().StringVar(&itemsFilter.RunID, "run", "", "only items from this run")
	itemsCmd.Flags().StringVar(&itemsFilter.SourceID, "source", "", "only items from this source")
	itemsCmd.Flags().IntVar(&itemsFilter.Limit, "limit", 100, "page size (1-200)")
	itemsCmd.Flags().IntVar(&itemsFilter.Offset, "offset", 0, "rows to skip")
}

func printRun(out io.Writer, run domain.Run) {
	fmt.Fprintf(out, "run %s: %s\n", run.ID, run.Status)
	if run.StartedAt != nil {
		fmt.Fprintf(out, "  started:   %s\n", run.StartedAt.Format(time.RFC3339))
	}
	if run.CompletedAt != nil {
		fmt.Fprintf(out, "  completed: %s\n", run.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "  items:     %d\n", run.ItemsCount)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "  error:     %s\n", run.ErrorMessage)
	}
}
