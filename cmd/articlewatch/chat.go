package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/ragsettings"
)

var conversationID string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the ingested corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		answer, err := application.Chat.AskStream(cmd.Context(), strings.Join(args, " "), conversationID, func(delta string) error {
			_, err := io.WriteString(out, delta)
			return err
		})
		fmt.Fprintln(out)
		if err != nil {
			return err
		}
		printCitations(out, answer.Sources)
		fmt.Fprintf(out, "\nconversation: %s (%s)\n", answer.ConversationID, answer.Mode)
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings [key=value ...]",
	Short: "Show or update retrieval settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		settings := application.Settings.Load(ctx)
		if len(args) > 0 {
			patch := make(map[string]string, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				patch[strings.TrimSpace(key)] = value
			}
			var err error
			if settings, err = application.Settings.Update(ctx, patch); err != nil {
				return err
			}
		}

		values := ragsettings.Values(settings)
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, values[k])
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
}

func printCitations(out io.Writer, sources []domain.Citation) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for _, s := range sources {
		ref := s.Title
		if s.DOI != "" {
			ref += " (doi:" + s.DOI + ")"
		}
		if s.Page > 0 {
			ref += fmt.Sprintf(", p. %d", s.Page)
		}
		fmt.Fprintf(out, "  [%d] %s\n", s.Index, ref)
	}
}
