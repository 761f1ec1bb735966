package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/probelab/STRATA/internal/logging"
)

var (
	logLevel string
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Deterministic black-box parameter optimization",
	Long: `STRATA orchestrates seeded black-box optimization runs: it samples
parameter configurations with ask/tell strategies, evaluates them against an
objective, and records reproducible trace and summary artifacts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.NewLogger(&logging.Config{
			Level:  logLevel,
			Format: "json",
			Output: "stderr",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.SetOut(os.Stdout)
}
