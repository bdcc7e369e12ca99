// Package importer feeds the corpus from streaming catalogs: single tracks
// by service ID, and whole albums or playlists through the bulk paths. Bulk
// imports report per-track outcomes instead of failing as a unit.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quizzicalbeats/quizzicalbeats/internal/aggregate"
	"github.com/quizzicalbeats/quizzicalbeats/internal/corpus"
	"github.com/quizzicalbeats/quizzicalbeats/internal/event"
	"github.com/quizzicalbeats/quizzicalbeats/internal/reconcile"
	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

// ErrUnknownService indicates the named source is not registered or cannot
// serve the requested import path.
var ErrUnknownService = errors.New("unknown or unsupported service")

// Report summarizes a bulk import. Skipped counts tracks already in the
// corpus with nothing new to contribute.
type Report struct {
	Imported int      `json:"imported_count"`
	Skipped  int      `json:"skipped_count"`
	Errors   int      `json:"error_count"`
	Messages []string `json:"errors,omitempty"`
}

// Importer resolves catalog references, aggregates metadata, and persists
// the results.
type Importer struct {
	registry   *source.Registry
	aggregator *aggregate.Aggregator
	store      *corpus.Store
	bus        *event.Bus
	logger     *slog.Logger
}

// New creates an Importer. The bus may be nil when no one listens.
func New(registry *source.Registry, aggregator *aggregate.Aggregator, store *corpus.Store, bus *event.Bus, logger *slog.Logger) *Importer {
	return &Importer{
		registry:   registry,
		aggregator: aggregator,
		store:      store,
		bus:        bus,
		logger:     logger.With(slog.String("component", "importer")),
	}
}

// ImportTrack imports a single track identified by a streaming service's
// track ID. The service resolves the ID to an ISRC, the aggregator builds
// the canonical record, and the corpus absorbs it.
func (im *Importer) ImportTrack(ctx context.Context, service source.Name, trackID string) (*song.Record, error) {
	resolver, ok := im.registry.Get(service).(source.TrackResolver)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot resolve tracks", ErrUnknownService, service)
	}

	ref, err := resolver.ResolveTrack(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("resolving track %s on %s: %w", trackID, service, err)
	}
	if ref.ISRC == "" {
		return nil, fmt.Errorf("track %s on %s carries no ISRC", trackID, service)
	}

	return im.importByISRC(ctx, ref.ISRC)
}

// ImportAlbum imports every track of an album.
func (im *Importer) ImportAlbum(ctx context.Context, service source.Name, albumID string) (*Report, error) {
	lister, ok := im.registry.Get(service).(source.PlaylistSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot list albums", ErrUnknownService, service)
	}
	refs, err := lister.AlbumTracks(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("listing album %s on %s: %w", albumID, service, err)
	}
	return im.importRefs(ctx, service, "album", albumID, refs), nil
}

// ImportPlaylist imports every track of a playlist.
func (im *Importer) ImportPlaylist(ctx context.Context, service source.Name, playlistID string) (*Report, error) {
	lister, ok := im.registry.Get(service).(source.PlaylistSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot list playlists", ErrUnknownService, service)
	}
	refs, err := lister.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("listing playlist %s on %s: %w", playlistID, service, err)
	}
	return im.importRefs(ctx, service, "playlist", playlistID, refs), nil
}

// PlaylistSongIDs resolves a playlist into corpus song IDs for round
// assembly: each track is looked up in the corpus and imported when
// absent. It returns the first n successfully resolved IDs in playlist
// order; unresolvable tracks are skipped. n <= 0 resolves the whole
// playlist.
func (im *Importer) PlaylistSongIDs(ctx context.Context, service source.Name, playlistID string, n int) ([]string, error) {
	lister, ok := im.registry.Get(service).(source.PlaylistSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot list playlists", ErrUnknownService, service)
	}
	refs, err := lister.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("listing playlist %s on %s: %w", playlistID, service, err)
	}

	resolver, canResolve := im.registry.Get(service).(source.TrackResolver)

	var ids []string
	for i, ref := range refs {
		if n > 0 && len(ids) >= n {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		isrc := ref.ISRC
		if isrc == "" && ref.ServiceID != "" && canResolve {
			if full, err := resolver.ResolveTrack(ctx, ref.ServiceID); err == nil {
				isrc = full.ISRC
			}
		}
		if isrc == "" {
			im.logger.Debug("playlist track without ISRC skipped",
				slog.String("playlist", playlistID), slog.Int("position", i+1))
			continue
		}

		rec, err := im.store.GetByISRC(ctx, isrc)
		if errors.Is(err, corpus.ErrNotFound) {
			if rec, err = im.importByISRC(ctx, isrc); err == nil && rec == nil {
				rec, err = im.store.GetByISRC(ctx, isrc)
			}
		}
		if err != nil {
			im.logger.Warn("playlist track not resolvable",
				slog.String("isrc", song.NormalizeISRC(isrc)), slog.Any("error", err))
			continue
		}
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// importRefs drives one bulk import. Individual track failures land in the
// report; only context cancellation stops the walk early.
func (im *Importer) importRefs(ctx context.Context, service source.Name, kind, key string, refs []source.TrackRef) *Report {
	report := &Report{}
	resolver, canResolve := im.registry.Get(service).(source.TrackResolver)

	for i, ref := range refs {
		if ctx.Err() != nil {
			report.Errors++
			report.Messages = append(report.Messages, fmt.Sprintf("track %d: import canceled", i+1))
			continue
		}

		isrc := ref.ISRC
		if isrc == "" && ref.ServiceID != "" && canResolve {
			if full, err := resolver.ResolveTrack(ctx, ref.ServiceID); err == nil {
				isrc = full.ISRC
			}
		}
		if isrc == "" {
			report.Errors++
			report.Messages = append(report.Messages, fmt.Sprintf("track %d: missing ISRC", i+1))
			continue
		}

		rec, err := im.importByISRC(ctx, isrc)
		if err != nil {
			report.Errors++
			report.Messages = append(report.Messages, fmt.Sprintf("ISRC %s: %v", song.NormalizeISRC(isrc), err))
			continue
		}
		if rec == nil {
			report.Skipped++
			continue
		}
		report.Imported++
	}

	im.logger.Info("bulk import finished",
		slog.String("kind", kind),
		slog.String("key", key),
		slog.String("service", string(service)),
		slog.Int("imported", report.Imported),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", report.Errors))

	im.publish(event.ImportCompleted, map[string]any{
		"kind":     kind,
		"key":      key,
		"service":  string(service),
		"imported": report.Imported,
		"skipped":  report.Skipped,
		"errors":   report.Errors,
	})

	return report
}

// importByISRC aggregates one ISRC and upserts the result. A nil record
// with nil error means the corpus already held everything (skip).
func (im *Importer) importByISRC(ctx context.Context, isrc string) (*song.Record, error) {
	result, err := im.aggregator.Aggregate(ctx, isrc)
	if err != nil {
		return nil, err
	}

	up, err := im.store.Upsert(ctx, result.Record)
	if err != nil {
		return nil, fmt.Errorf("persisting: %w", err)
	}
	if up.Status == corpus.StatusUnchanged {
		return nil, nil
	}

	result.Record.ID = up.ID
	im.publish(event.SongImported, map[string]any{
		"id":     up.ID,
		"isrc":   result.Record.ISRC,
		"title":  result.Record.Title,
		"artist": result.Record.ArtistName,
		"status": string(up.Status),
	})
	return result.Record, nil
}

// RefreshMetadata re-aggregates a stored song via its ISRC. When the
// sources come up empty the stored record stays untouched.
func (im *Importer) RefreshMetadata(ctx context.Context, id string) (*song.Record, error) {
	existing, err := im.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := im.aggregator.Aggregate(ctx, existing.ISRC)
	if err != nil {
		if errors.Is(err, reconcile.ErrInsufficientData) {
			return existing, err
		}
		return nil, err
	}

	if _, err := im.store.Upsert(ctx, result.Record); err != nil {
		return nil, fmt.Errorf("persisting: %w", err)
	}
	return im.store.Get(ctx, id)
}

func (im *Importer) publish(t event.Type, data map[string]any) {
	if im.bus == nil {
		return
	}
	im.bus.Publish(event.Event{Type: t, Data: data})
}
