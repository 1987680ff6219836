package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ArticleWatch/internal/domain"
)

var (
	sourceName     string
	sourceStrategy string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage the sources scanned by discovery runs",
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Register a source page or feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := application.Sources.Add(cmd.Context(), args[0], sourceName, domain.FetchStrategy(sourceStrategy))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s, %s)\n", src.ID, src.URL, src.FetchStrategy)
		return nil
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := application.Sources.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTRATEGY\tNAME\tURL\tLAST CHECKED")
		for _, s := range sources {
			checked := "never"
			if s.LastCheckedAt != nil {
				checked = s.LastCheckedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.FetchStrategy, s.Name, s.URL, checked)
		}
		return w.Flush()
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a source; its items are kept",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return application.Sources.Remove(cmd.Context(), args[0])
	},
}

func init() {
	sourcesAddCmd.Flags().StringVar(&sourceName, "name", "", "display name")
	sourcesAddCmd.Flags().StringVar(&sourceStrategy, "strategy", string(domain.FetchAuto), "fetch strategy: auto, fetch or rss")
	sourcesCmd.AddCommand(sourcesAddCmd, sourcesListCmd, sourcesRemoveCmd)
}
