package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ArticleWatch/internal/app"
	"ArticleWatch/internal/config"
	"ArticleWatch/internal/logging"
)

var (
	configPath  string
	application *app.Application
)

var rootCmd = &cobra.Command{
	Use:           "articlewatch",
	Short:         "Discover new scientific articles and answer questions over the corpus",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv("ARTICLE_WATCH_CONFIG", configPath); err != nil {
				return err
			}
		}
		cfg := config.Load()
		logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("init application: %w", err)
		}
		application = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(runCmd, statusCmd, runsCmd, itemsCmd, askCmd, settingsCmd, sourcesCmd, serveCmd, migrateCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
