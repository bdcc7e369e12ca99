// Package corpus persists canonical song records keyed by ISRC, with
// secondary indices on streaming service IDs, usage counters, and tags.
package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
)

// ErrInUse indicates a song cannot be deleted because a round references it.
var ErrInUse = errors.New("song is referenced by a round")

// ErrNotFound indicates no song matches the given key.
var ErrNotFound = errors.New("song not found")

// UpsertStatus describes the effect of an upsert.
type UpsertStatus string

// Upsert statuses.
const (
	StatusCreated   UpsertStatus = "created"
	StatusUpdated   UpsertStatus = "updated"
	StatusUnchanged UpsertStatus = "unchanged"
)

// UpsertResult reports the effect of an upsert and the record's ID.
type UpsertResult struct {
	Status UpsertStatus
	ID     string
}

const songColumns = `id, isrc, title, artist_name, album_name, year, genre, genres,
	popularity, preview_url, cover_url,
	spotify_id, deezer_id, apple_id, youtube_id,
	spotify_preview_url, apple_preview_url, deezer_preview_url, youtube_preview_url,
	spotify_cover_url, apple_cover_url, deezer_cover_url,
	sources, used_count, last_used, imported_at, updated_at`

// Store provides song corpus data operations.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a corpus store.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger.With(slog.String("component", "corpus"))}
}

// Upsert inserts or merges a reconciled record, keyed on ISRC. On conflict
// the corpus keeps its existing values: incoming non-empty fields only fill
// gaps, and the genre and source lists are unioned. The corpus is a cache
// of reconciled truth, not a second reconciliation pass. A serialization
// conflict is retried once.
func (s *Store) Upsert(ctx context.Context, rec *song.Record) (*UpsertResult, error) {
	if rec.ISRC == "" || rec.Title == "" || rec.ArtistName == "" {
		return nil, fmt.Errorf("record missing required fields (isrc, title, artist_name)")
	}

	var result *UpsertResult
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(50*time.Millisecond)), func(ctx context.Context) error {
		var upsertErr error
		result, upsertErr = s.upsertOnce(ctx, rec)
		if upsertErr != nil {
			return retry.RetryableError(upsertErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upserting %s: %w", rec.ISRC, err)
	}
	return result, nil
}

func (s *Store) upsertOnce(ctx context.Context, rec *song.Record) (*UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := scanSongRow(tx.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE isrc = ?`, rec.ISRC))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading existing record: %w", err)
	}

	now := time.Now().UTC()

	if existing == nil {
		id := uuid.New().String()
		importedAt := rec.ImportedAt
		if importedAt.IsZero() {
			importedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO songs (`+songColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, rec.ISRC, rec.Title, rec.ArtistName, rec.AlbumName, rec.Year, rec.Genre, marshalList(rec.Genres),
			nullableInt(rec.Popularity), rec.PreviewURL, rec.CoverURL,
			nullableString(rec.SpotifyID), nullableString(rec.DeezerID), nullableString(rec.AppleID), nullableString(rec.YouTubeID),
			rec.SpotifyPreviewURL, rec.ApplePreviewURL, rec.DeezerPreviewURL, rec.YouTubePreviewURL,
			rec.SpotifyCoverURL, rec.AppleCoverURL, rec.DeezerCoverURL,
			marshalList(rec.Sources), 0, nil, importedAt.Format(time.RFC3339), now.Format(time.RFC3339),
		); err != nil {
			return nil, fmt.Errorf("inserting record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing insert: %w", err)
		}
		rec.ID = id
		return &UpsertResult{Status: StatusCreated, ID: id}, nil
	}

	merged, changed := mergeRecords(existing, rec)
	if !changed {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing no-op: %w", err)
		}
		rec.ID = existing.ID
		return &UpsertResult{Status: StatusUnchanged, ID: existing.ID}, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE songs SET
			title = ?, artist_name = ?, album_name = ?, year = ?, genre = ?, genres = ?,
			popularity = ?, preview_url = ?, cover_url = ?,
			spotify_id = ?, deezer_id = ?, apple_id = ?, youtube_id = ?,
			spotify_preview_url = ?, apple_preview_url = ?, deezer_preview_url = ?, youtube_preview_url = ?,
			spotify_cover_url = ?, apple_cover_url = ?, deezer_cover_url = ?,
			sources = ?, updated_at = ?
		WHERE id = ?
	`,
		merged.Title, merged.ArtistName, merged.AlbumName, merged.Year, merged.Genre, marshalList(merged.Genres),
		nullableInt(merged.Popularity), merged.PreviewURL, merged.CoverURL,
		nullableString(merged.SpotifyID), nullableString(merged.DeezerID), nullableString(merged.AppleID), nullableString(merged.YouTubeID),
		merged.SpotifyPreviewURL, merged.ApplePreviewURL, merged.DeezerPreviewURL, merged.YouTubePreviewURL,
		merged.SpotifyCoverURL, merged.AppleCoverURL, merged.DeezerCoverURL,
		marshalList(merged.Sources), now.Format(time.RFC3339),
		existing.ID,
	); err != nil {
		return nil, fmt.Errorf("updating record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	rec.ID = existing.ID
	return &UpsertResult{Status: StatusUpdated, ID: existing.ID}, nil
}

// mergeRecords fills the existing record's empty fields from the incoming
// one. Disagreements keep the existing value. Genre and source lists are
// unioned case-insensitively, existing entries first.
func mergeRecords(existing, incoming *song.Record) (*song.Record, bool) {
	merged := *existing
	changed := false

	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&merged.AlbumName, incoming.AlbumName)
	fill(&merged.Year, incoming.Year)
	fill(&merged.Genre, incoming.Genre)
	fill(&merged.PreviewURL, incoming.PreviewURL)
	fill(&merged.CoverURL, incoming.CoverURL)
	fill(&merged.SpotifyID, incoming.SpotifyID)
	fill(&merged.DeezerID, incoming.DeezerID)
	fill(&merged.AppleID, incoming.AppleID)
	fill(&merged.YouTubeID, incoming.YouTubeID)
	fill(&merged.SpotifyPreviewURL, incoming.SpotifyPreviewURL)
	fill(&merged.ApplePreviewURL, incoming.ApplePreviewURL)
	fill(&merged.DeezerPreviewURL, incoming.DeezerPreviewURL)
	fill(&merged.YouTubePreviewURL, incoming.YouTubePreviewURL)
	fill(&merged.SpotifyCoverURL, incoming.SpotifyCoverURL)
	fill(&merged.AppleCoverURL, incoming.AppleCoverURL)
	fill(&merged.DeezerCoverURL, incoming.DeezerCoverURL)

	if merged.Popularity == nil && incoming.Popularity != nil {
		v := *incoming.Popularity
		merged.Popularity = &v
		changed = true
	}

	if union, grew := unionFold(merged.Genres, incoming.Genres); grew {
		merged.Genres = union
		changed = true
	}
	if union, grew := unionFold(merged.Sources, incoming.Sources); grew {
		merged.Sources = union
		changed = true
	}

	return &merged, changed
}

// Get retrieves a song by its record ID.
func (s *Store) Get(ctx context.Context, id string) (*song.Record, error) {
	return s.getWhere(ctx, `id = ?`, id)
}

// GetByISRC retrieves a song by ISRC.
func (s *Store) GetByISRC(ctx context.Context, isrc string) (*song.Record, error) {
	return s.getWhere(ctx, `isrc = ?`, song.NormalizeISRC(isrc))
}

// GetByServiceID retrieves a song by a streaming service's track ID.
func (s *Store) GetByServiceID(ctx context.Context, service, id string) (*song.Record, error) {
	var column string
	switch service {
	case "spotify":
		column = "spotify_id"
	case "deezer":
		column = "deezer_id"
	case "apple":
		column = "apple_id"
	case "youtube":
		column = "youtube_id"
	default:
		return nil, fmt.Errorf("unknown service: %q", service)
	}
	return s.getWhere(ctx, column+` = ?`, id)
}

func (s *Store) getWhere(ctx context.Context, where string, args ...any) (*song.Record, error) {
	rec, err := scanSongRow(s.db.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting song: %w", err)
	}
	return rec, nil
}

// MarkUsed increments used_count and stamps last_used for each song.
func (s *Store) MarkUsed(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := MarkUsedTx(ctx, tx, ids); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing usage update: %w", err)
	}
	return nil
}

// MarkUsedTx increments used_count inside an existing transaction so the
// round ledger can persist a round and bump counters atomically.
func MarkUsedTx(ctx context.Context, tx *sql.Tx, ids []string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE songs SET used_count = used_count + 1, last_used = ? WHERE id = ?`, now, id)
		if err != nil {
			return fmt.Errorf("incrementing used_count for %s: %w", id, err)
		}
		rows, _ := res.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return nil
}

// Delete removes a song. It fails with ErrInUse while any round still
// references the song; tag associations are removed by cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	var refs int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM round_songs WHERE song_id = ?`, id).Scan(&refs); err != nil {
		return fmt.Errorf("checking round references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: %s", ErrInUse, id)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting song: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// scanSongRow scans a database row into a song.Record.
func scanSongRow(row interface{ Scan(...any) error }) (*song.Record, error) {
	var rec song.Record
	var genres, sources string
	var popularity sql.NullInt64
	var spotifyID, deezerID, appleID, youtubeID sql.NullString
	var lastUsed sql.NullString
	var importedAt, updatedAt string

	err := row.Scan(
		&rec.ID, &rec.ISRC, &rec.Title, &rec.ArtistName, &rec.AlbumName, &rec.Year, &rec.Genre, &genres,
		&popularity, &rec.PreviewURL, &rec.CoverURL,
		&spotifyID, &deezerID, &appleID, &youtubeID,
		&rec.SpotifyPreviewURL, &rec.ApplePreviewURL, &rec.DeezerPreviewURL, &rec.YouTubePreviewURL,
		&rec.SpotifyCoverURL, &rec.AppleCoverURL, &rec.DeezerCoverURL,
		&sources, &rec.UsedCount, &lastUsed, &importedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Genres = unmarshalList(genres)
	rec.Sources = unmarshalList(sources)
	if popularity.Valid {
		v := int(popularity.Int64)
		rec.Popularity = &v
	}
	rec.SpotifyID = spotifyID.String
	rec.DeezerID = deezerID.String
	rec.AppleID = appleID.String
	rec.YouTubeID = youtubeID.String
	if lastUsed.Valid {
		if t, err := time.Parse(time.RFC3339, lastUsed.String); err == nil {
			rec.LastUsed = &t
		}
	}
	rec.ImportedAt = parseTime(importedAt)

	return &rec, nil
}

func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalList(data string) []string {
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	return list
}

// unionFold appends entries from add that are not already in base,
// comparing case-insensitively. It reports whether the list grew.
func unionFold(base, add []string) ([]string, bool) {
	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[foldKey(v)] = true
	}
	out := base
	grew := false
	for _, v := range add {
		if !seen[foldKey(v)] {
			seen[foldKey(v)] = true
			out = append(out, v)
			grew = true
		}
	}
	return out, grew
}

func foldKey(s string) string {
	return strings.ToLower(s)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
