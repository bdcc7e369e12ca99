package corpus

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
)

// Filter narrows a corpus query. Exactly one of the match fields is
// normally set; set fields combine with AND.
type Filter struct {
	// Genre matches the single canonical genre, case-insensitively.
	Genre string

	// Decade matches songs whose year falls in the decade ("1980").
	Decade string

	// Tag matches songs carrying the named tag, case-insensitively.
	Tag string

	// MaxUsedCount keeps songs with used_count at or below the value.
	MaxUsedCount *int
}

// Query returns the songs matching the filter, ordered by artist and title.
func (s *Store) Query(ctx context.Context, f Filter) ([]song.Record, error) {
	var where []string
	var args []any

	if f.Genre != "" {
		where = append(where, `genre = ? COLLATE NOCASE`)
		args = append(args, f.Genre)
	}
	if f.Decade != "" {
		if len(f.Decade) != 4 {
			return nil, fmt.Errorf("invalid decade: %q", f.Decade)
		}
		where = append(where, `substr(year, 1, 3) = ?`)
		args = append(args, f.Decade[:3])
	}
	if f.Tag != "" {
		where = append(where, `id IN (
			SELECT st.song_id FROM song_tags st
			JOIN tags t ON t.id = st.tag_id
			WHERE t.name = ? COLLATE NOCASE)`)
		args = append(args, f.Tag)
	}
	if f.MaxUsedCount != nil {
		where = append(where, `used_count <= ?`)
		args = append(args, *f.MaxUsedCount)
	}

	query := `SELECT ` + songColumns + ` FROM songs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY artist_name, title`

	return s.queryRecords(ctx, query, args...)
}

// All returns the entire corpus ordered by artist and title.
func (s *Store) All(ctx context.Context) ([]song.Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+songColumns+` FROM songs ORDER BY artist_name, title`)
}

// Count returns the number of songs in the corpus.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return n, nil
}

// MeanUsedCount returns the average used_count across the corpus. An empty
// corpus has a mean of zero.
func (s *Store) MeanUsedCount(ctx context.Context) (float64, error) {
	var mean float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(used_count), 0) FROM songs`).Scan(&mean)
	if err != nil {
		return 0, fmt.Errorf("computing mean used_count: %w", err)
	}
	return mean, nil
}

// AllWithTags returns the entire corpus with each record's tag names
// populated, for selection snapshots.
func (s *Store) AllWithTags(ctx context.Context) ([]song.Record, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT st.song_id, t.name FROM song_tags st
		JOIN tags t ON t.id = st.tag_id
	`)
	if err != nil {
		return nil, fmt.Errorf("loading song tags: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tagsBySong := make(map[string][]string)
	for rows.Next() {
		var songID, name string
		if err := rows.Scan(&songID, &name); err != nil {
			return nil, fmt.Errorf("scanning song tag: %w", err)
		}
		tagsBySong[songID] = append(tagsBySong[songID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Tags = tagsBySong[records[i].ID]
	}
	return records, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]song.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying songs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var records []song.Record
	for rows.Next() {
		rec, err := scanSongRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
