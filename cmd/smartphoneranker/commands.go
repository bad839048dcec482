package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SmartphoneRanker/internal/app"
	"SmartphoneRanker/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the refresh scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		application, err := build(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		return application.Serve(ctx)
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Run the ranking pipeline once and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		application, err := build(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		products, err := application.RankOnce(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, products)
	},
}

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recently recorded ranking runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := build(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		runs, err := application.History(cmd.Context(), flagHistoryLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd, runs)
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 10, "number of runs to show")
}

func build(ctx context.Context) (*app.Application, error) {
	cfg := loadConfig()
	// Logs go to stderr so JSON output on stdout stays clean.
	return app.New(ctx, cfg, logging.NewWithWriter(os.Stderr, cfg.Logging.Level))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
