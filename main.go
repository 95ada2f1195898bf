package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"greyhound-pipeline/config"
	"greyhound-pipeline/utils"
)

func main() {
	var (
		mode      string
		startDate string
		endDate   string
	)

	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Greyhound racing data pipeline",
		Long:          "Scrapes race cards and dog statistics, engineers modeling-ready features, and writes raw and processed CSV datasets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "today" && mode != "historical" {
				return fmt.Errorf("invalid --mode %q (must be today or historical)", mode)
			}

			cfg := config.Load()
			if err := cfg.EnsureDirs(); err != nil {
				return fmt.Errorf("create directories: %w", err)
			}

			logger, err := utils.NewFileLogger(cfg.LogPath(time.Now().Format("2006-01-02")))
			if err != nil {
				logger = utils.NewLogger()
				logger.Warn("Could not open log file, logging to console only: %v", err)
			}
			defer logger.Close()

			return NewPipeline(cfg, logger).Run(mode, startDate, endDate)
		},
	}

	rootCmd.Flags().StringVar(&mode, "mode", "today", "extraction mode: today or historical")
	rootCmd.Flags().StringVar(&startDate, "start-date", "", "start date YYYY-MM-DD (historical mode)")
	rootCmd.Flags().StringVar(&endDate, "end-date", "", "end date YYYY-MM-DD (historical mode)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		os.Exit(1)
	}
}
