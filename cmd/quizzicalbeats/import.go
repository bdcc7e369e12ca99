package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quizzicalbeats/quizzicalbeats/internal/importer"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

func newImportCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import songs from a catalog service into the corpus",
	}
	cmd.AddCommand(
		newImportTrackCmd(configPath),
		newImportAlbumCmd(configPath),
		newImportPlaylistCmd(configPath),
		newImportBackupCmd(configPath),
	)
	return cmd
}

func newImportTrackCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "track <service> <track-id>",
		Short: "Import a single track by its service ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.importer.ImportTrack(cmd.Context(), source.Name(args[0]), args[1])
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Println("track already in corpus, nothing to do")
				return nil
			}
			fmt.Printf("imported %s - %s (%s) as %s\n", rec.ArtistName, rec.Title, rec.ISRC, rec.ID)
			return nil
		},
	}
}

func newImportAlbumCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "album <service> <album-id>",
		Short: "Import every track of an album",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.importer.ImportAlbum(cmd.Context(), source.Name(args[0]), args[1])
			if err != nil {
				return err
			}
			return printReport(report)
		},
	}
}

func newImportPlaylistCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "playlist <service> <playlist-id>",
		Short: "Import every track of a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.importer.ImportPlaylist(cmd.Context(), source.Name(args[0]), args[1])
			if err != nil {
				return err
			}
			return printReport(report)
		},
	}
}

func newImportBackupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Restore a round and its songs from an exported backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening backup: %w", err)
			}
			defer f.Close() //nolint:errcheck

			r, err := a.exporter.ImportBackup(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Printf("restored round %s with %d songs\n", r.ID, len(r.SongIDs))
			return nil
		},
	}
}

func printReport(report *importer.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
