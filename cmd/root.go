package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cred1",
	Short: "Domain credibility dataset builder",
	Long:  "Merges the OpenSources and Iffy index lists, enriches domains with popularity, age, fact-check, and Safe Browsing signals, and publishes composite credibility scores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
