package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/quizzicalbeats/quizzicalbeats/internal/event"
	"github.com/quizzicalbeats/quizzicalbeats/internal/round"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

func newRoundCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Assemble and manage quiz rounds",
	}
	cmd.AddCommand(
		newRoundCreateCmd(configPath),
		newRoundListCmd(configPath),
		newRoundDeleteCmd(configPath),
	)
	return cmd
}

func newRoundCreateCmd(configPath *string) *cobra.Command {
	var (
		name     string
		mode     string
		value    string
		service  string
		playlist string
		size     int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Select songs from the corpus and persist a new round",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if round.Mode(mode) == round.ModeExternalPlaylist {
				return a.createPlaylistRound(ctx, name, service, playlist, size)
			}

			songs, err := a.store.AllWithTags(ctx)
			if err != nil {
				return err
			}
			genreUsage, err := a.rounds.GenreUsage(ctx)
			if err != nil {
				return err
			}
			decadeUsage, err := a.rounds.DecadeUsage(ctx)
			if err != nil {
				return err
			}

			selector := round.NewSelector(rand.New(rand.NewSource(time.Now().UnixNano())))
			selection, err := selector.Select(
				round.Criterion{Mode: round.Mode(mode), Value: value},
				round.Snapshot{Songs: songs, GenreRounds: genreUsage, DecadeRounds: decadeUsage},
				size,
			)
			if err != nil {
				return err
			}
			if len(selection.SongIDs) == 0 {
				return fmt.Errorf("no eligible songs for %s", selection.Criterion)
			}
			if len(selection.SongIDs) < size {
				a.logger.Warn("corpus too thin for requested round size",
					"requested", size, "selected", len(selection.SongIDs))
			}

			r, err := a.rounds.Create(ctx, name, selection.Criterion, selection.SongIDs)
			if err != nil {
				return err
			}
			a.bus.Publish(event.Event{Type: event.RoundCreated, Data: map[string]any{
				"round_id":  r.ID,
				"criterion": r.Criterion.String(),
				"songs":     len(r.SongIDs),
			}})

			fmt.Printf("created round %s (%s) with %d songs\n", r.ID, r.Criterion, len(r.SongIDs))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "round name")
	cmd.Flags().StringVar(&mode, "mode", string(round.ModeRandom),
		"selection mode: random, genre, decade, tag, least_used_genre, least_used_decade")
	cmd.Flags().StringVar(&value, "value", "", "genre, decade, or tag for the filter modes")
	cmd.Flags().StringVar(&service, "service", "", "catalog service for external_playlist mode")
	cmd.Flags().StringVar(&playlist, "playlist", "", "playlist ID for external_playlist mode")
	cmd.Flags().IntVar(&size, "size", 8, "number of songs")
	return cmd
}

// createPlaylistRound assembles a round from an external playlist: every
// track is imported into the corpus when absent, and the first size
// resolved songs make the round in playlist order.
func (a *app) createPlaylistRound(ctx context.Context, name, service, playlist string, size int) error {
	c := round.Criterion{Mode: round.ModeExternalPlaylist, Service: service, PlaylistID: playlist}
	if err := c.Validate(); err != nil {
		return err
	}

	ids, err := a.importer.PlaylistSongIDs(ctx, source.Name(service), playlist, size)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no resolvable tracks in playlist %s on %s", playlist, service)
	}

	r, err := a.rounds.Create(ctx, name, c, ids)
	if err != nil {
		return err
	}
	a.bus.Publish(event.Event{Type: event.RoundCreated, Data: map[string]any{
		"round_id":  r.ID,
		"criterion": r.Criterion.String(),
		"songs":     len(r.SongIDs),
	}})
	fmt.Printf("created round %s (%s) with %d songs\n", r.ID, r.Criterion, len(r.SongIDs))
	return nil
}

func newRoundListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rounds, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			rounds, err := a.rounds.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(rounds) == 0 {
				fmt.Println("no rounds yet")
				return nil
			}
			for _, r := range rounds {
				name := r.Name
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Printf("%s  %s  %s  %s\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Criterion, name)
			}
			return nil
		},
	}
}

func newRoundDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <round-id>",
		Short: "Delete a round (song usage counters are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.rounds.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.bus.Publish(event.Event{Type: event.RoundDeleted, Data: map[string]any{
				"round_id": args[0],
			}})
			fmt.Printf("deleted round %s\n", args[0])
			return nil
		},
	}
}
