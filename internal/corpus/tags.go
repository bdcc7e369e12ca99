package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tag is a free-form label attached to songs. Names are unique
// case-insensitively; tags are created on first use and never auto-deleted.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachTags associates the named tags with a song, creating any tag that
// does not exist yet. Matching is case-insensitive; the first-used casing
// is kept.
func (s *Store) AttachTags(ctx context.Context, songID string, names []string) error {
	if _, err := s.Get(ctx, songID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339)
	for _, name := range names {
		if name == "" {
			continue
		}

		var tagID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM tags WHERE name = ? COLLATE NOCASE`, name).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			tagID = uuid.New().String()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)`,
				tagID, name, now); err != nil {
				return fmt.Errorf("creating tag %q: %w", name, err)
			}
		} else if err != nil {
			return fmt.Errorf("looking up tag %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO song_tags (song_id, tag_id) VALUES (?, ?)`,
			songID, tagID); err != nil {
			return fmt.Errorf("attaching tag %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tag attach: %w", err)
	}
	return nil
}

// DetachTag removes a tag association from a song. The tag itself is kept.
func (s *Store) DetachTag(ctx context.Context, songID, name string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM song_tags
		WHERE song_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ? COLLATE NOCASE)
	`, songID, name)
	if err != nil {
		return fmt.Errorf("detaching tag %q: %w", name, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("tag %q not attached to song %s", name, songID)
	}
	return nil
}

// SongTags returns the tag names attached to a song, ordered by name.
func (s *Store) SongTags(ctx context.Context, songID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN song_tags st ON st.tag_id = t.id
		WHERE st.song_id = ?
		ORDER BY t.name COLLATE NOCASE
	`, songID)
	if err != nil {
		return nil, fmt.Errorf("listing song tags: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM tags ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tags []Tag
	for rows.Next() {
		var t Tag
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		t.CreatedAt = parseTime(createdAt)
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
