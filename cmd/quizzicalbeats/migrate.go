package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quizzicalbeats/quizzicalbeats/internal/config"
	"github.com/quizzicalbeats/quizzicalbeats/internal/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPathOrDefault(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			db, err := database.Open(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			fmt.Printf("database %s is up to date\n", cfg.Database.Path)
			return nil
		},
	}
}
