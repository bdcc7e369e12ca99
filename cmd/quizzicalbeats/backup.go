package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quizzicalbeats/quizzicalbeats/internal/backup"
	"github.com/quizzicalbeats/quizzicalbeats/internal/maintenance"
)

func newBackupCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage database snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Write a snapshot of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			svc := a.backupService()
			info, err := svc.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Prune(); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", filepath.Join(svc.Dir(), info.Filename), info.Size)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			snapshots, err := a.backupService().List()
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Println("no snapshots yet")
				return nil
			}
			for _, sn := range snapshots {
				fmt.Printf("%s  %10d  %s\n",
					sn.CreatedAt.Format("2006-01-02 15:04:05"), sn.Size, sn.Filename)
			}
			return nil
		},
	})

	return cmd
}

func newMaintainCmd(configPath *string) *cobra.Command {
	var vacuum bool
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Optimize the database and report its health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			svc := maintenance.NewService(a.db, a.cfg.Database.Path, a.logger)
			if err := svc.Optimize(cmd.Context()); err != nil {
				return err
			}
			if vacuum {
				if err := svc.Vacuum(cmd.Context()); err != nil {
					return err
				}
			}

			st, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "also rebuild the database file with VACUUM")
	return cmd
}

// backupService builds the snapshot service with the configured directory,
// defaulting to a backups directory next to the database file.
func (a *app) backupService() *backup.Service {
	dir := a.cfg.Backup.Dir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(a.cfg.Database.Path), "backups")
	}
	return backup.NewService(a.db, dir, a.cfg.Backup.Retention, a.cfg.Backup.MaxAgeDays, a.logger)
}
