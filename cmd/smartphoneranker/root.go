package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"SmartphoneRanker/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "smartphoneranker",
	Short:         "Sentiment-ranked smartphone bestsellers",
	Long:          "smartphoneranker scrapes bestselling smartphones, scores their reviews with a sentiment model and serves the top five.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (overrides $"+config.ConfigPathEnv+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "smartphoneranker %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func loadConfig() config.Config {
	if flagConfig != "" {
		return config.LoadFrom(flagConfig)
	}
	return config.Load()
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
