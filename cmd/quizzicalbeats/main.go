package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quizzicalbeats/quizzicalbeats/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "quizzicalbeats",
		Short:         "Music quiz metadata aggregator and round builder",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file path (default $QB_CONFIG_PATH, then /data/config.yaml)")

	root.AddCommand(
		newAggregateCmd(&configPath),
		newImportCmd(&configPath),
		newSongCmd(&configPath),
		newRoundCmd(&configPath),
		newExportCmd(&configPath),
		newBackupCmd(&configPath),
		newMaintainCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return root
}
