// Package export writes per-round JSON backups and restores them. A backup
// is self-contained: it carries the round and the full canonical record of
// every song in it, so it can be replayed into an empty corpus.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/quizzicalbeats/quizzicalbeats/internal/corpus"
	"github.com/quizzicalbeats/quizzicalbeats/internal/round"
	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
)

// formatVersion guards against replaying backups across incompatible
// schema generations.
const formatVersion = 1

// Backup is the on-disk shape of one exported round.
type Backup struct {
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Round      *round.Round  `json:"round"`
	Songs      []song.Record `json:"songs"`
}

// Service exports and restores round backups.
type Service struct {
	store  *corpus.Store
	rounds *round.Service
	logger *slog.Logger
}

// NewService creates an export service.
func NewService(store *corpus.Store, rounds *round.Service, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		rounds: rounds,
		logger: logger.With(slog.String("component", "export")),
	}
}

// ExportRound writes a round and the full records of its songs as indented
// JSON.
func (s *Service) ExportRound(ctx context.Context, w io.Writer, roundID string) error {
	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return err
	}

	songs := make([]song.Record, 0, len(r.SongIDs))
	for _, id := range r.SongIDs {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("loading song %s: %w", id, err)
		}
		songs = append(songs, *rec)
	}

	backup := Backup{
		Version:    formatVersion,
		ExportedAt: time.Now().UTC(),
		Round:      r,
		Songs:      songs,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(backup); err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}

	s.logger.Info("round exported",
		slog.String("round_id", roundID),
		slog.Int("songs", len(songs)))
	return nil
}

// ImportBackup replays a backup: every song is upserted (merging into any
// record already present for the same ISRC), then the round is restored
// over the resulting IDs. Usage counters are not touched.
func (s *Service) ImportBackup(ctx context.Context, r io.Reader) (*round.Round, error) {
	var backup Backup
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("decoding backup: %w", err)
	}
	if backup.Version != formatVersion {
		return nil, fmt.Errorf("unsupported backup version %d", backup.Version)
	}
	if backup.Round == nil {
		return nil, fmt.Errorf("backup carries no round")
	}

	// The target corpus may already hold some of these ISRCs under
	// different IDs, so the round's song list is remapped after upserting.
	idMap := make(map[string]string, len(backup.Songs))
	for i := range backup.Songs {
		rec := backup.Songs[i]
		oldID := rec.ID
		rec.ID = ""
		up, err := s.store.Upsert(ctx, &rec)
		if err != nil {
			return nil, fmt.Errorf("restoring song %s: %w", rec.ISRC, err)
		}
		idMap[oldID] = up.ID
	}

	restored := *backup.Round
	restored.SongIDs = make([]string, 0, len(backup.Round.SongIDs))
	for _, oldID := range backup.Round.SongIDs {
		newID, ok := idMap[oldID]
		if !ok {
			return nil, fmt.Errorf("round references song %s missing from backup", oldID)
		}
		restored.SongIDs = append(restored.SongIDs, newID)
	}

	if err := s.rounds.Restore(ctx, &restored); err != nil {
		return nil, err
	}

	s.logger.Info("backup imported",
		slog.String("round_id", restored.ID),
		slog.Int("songs", len(restored.SongIDs)))
	return &restored, nil
}
