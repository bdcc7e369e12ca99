package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quizzicalbeats/quizzicalbeats/internal/reconcile"
)

func newSongCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Inspect and manage corpus songs",
	}
	cmd.AddCommand(
		newSongShowCmd(configPath),
		newSongRefreshCmd(configPath),
		newSongDeleteCmd(configPath),
		newSongTagCmd(configPath),
		newSongUntagCmd(configPath),
	)
	return cmd
}

func newSongShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <song-id>",
		Short: "Print a song record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tags, err := a.store.SongTags(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return err
			}
			if len(tags) > 0 {
				fmt.Printf("tags: %s\n", strings.Join(tags, ", "))
			}
			return nil
		},
	}
}

func newSongRefreshCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <song-id>",
		Short: "Re-aggregate a song's metadata from the sources via its ISRC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.importer.RefreshMetadata(cmd.Context(), args[0])
			if errors.Is(err, reconcile.ErrInsufficientData) {
				fmt.Printf("no metadata found for %s, record unchanged\n", rec.ISRC)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("refreshed %s - %s (%s)\n", rec.ArtistName, rec.Title, rec.ISRC)
			return nil
		},
	}
}

func newSongDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <song-id>",
		Short: "Remove a song from the corpus (fails if any round references it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted song %s\n", args[0])
			return nil
		},
	}
}

func newSongTagCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <song-id> <tag>...",
		Short: "Attach one or more tags to a song, creating them as needed",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.AttachTags(cmd.Context(), args[0], args[1:]); err != nil {
				return err
			}
			fmt.Printf("tagged %s with %s\n", args[0], strings.Join(args[1:], ", "))
			return nil
		},
	}
}

func newSongUntagCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "untag <song-id> <tag>",
		Short: "Detach a tag from a song",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.DetachTag(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("removed tag %s from %s\n", args[1], args[0])
			return nil
		},
	}
}
