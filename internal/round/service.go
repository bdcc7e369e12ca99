package round

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

	"github.com/quizzicalbeats/quizzicalbeats/internal/corpus"
)

// ErrNotFound indicates no round matches the given ID.
var ErrNotFound = errors.New("round not found")

// Service is the round ledger: it persists assembled rounds and keeps the
// per-song usage counters in step with them.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewService creates a round ledger.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger.With(slog.String("component", "rounds"))}
}

// Create persists a round and increments used_count for every selected song
// in a single transaction. An unknown song ID aborts the whole operation;
// neither the round nor any counter change survives.
func (s *Service) Create(ctx context.Context, name string, c Criterion, songIDs []string) (*Round, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(songIDs) == 0 {
		return nil, fmt.Errorf("a round needs at least one song")
	}

	criterionJSON, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding criterion: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	r := &Round{
		ID:        uuid.New().String(),
		Name:      name,
		Criterion: c,
		SongIDs:   songIDs,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rounds (id, name, criterion, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Name, string(criterionJSON), r.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("inserting round: %w", err)
	}

	if err := insertSongs(ctx, tx, r.ID, songIDs); err != nil {
		return nil, err
	}

	// Usage is bumped in the same transaction; this also rejects unknown
	// song IDs before anything is committed.
	if err := corpus.MarkUsedTx(ctx, tx, songIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing round: %w", err)
	}

	s.logger.Info("round created",
		slog.String("round_id", r.ID),
		slog.String("criterion", c.String()),
		slog.Int("songs", len(songIDs)))

	return r, nil
}

// Restore persists a round recovered from a backup, preserving its ID and
// creation time. Usage counters stay untouched: restoring history is not
// playing the round again.
func (s *Service) Restore(ctx context.Context, r *Round) error {
	if err := r.Criterion.Validate(); err != nil {
		return err
	}
	if r.ID == "" || len(r.SongIDs) == 0 {
		return fmt.Errorf("restored round needs an id and at least one song")
	}

	criterionJSON, err := json.Marshal(r.Criterion)
	if err != nil {
		return fmt.Errorf("encoding criterion: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rounds (id, name, criterion, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Name, string(criterionJSON), createdAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("inserting round: %w", err)
	}
	if err := insertSongs(ctx, tx, r.ID, r.SongIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing round: %w", err)
	}

	s.logger.Info("round restored",
		slog.String("round_id", r.ID),
		slog.Int("songs", len(r.SongIDs)))
	return nil
}

// Get retrieves a round with its ordered song list.
func (s *Service) Get(ctx context.Context, id string) (*Round, error) {
	r, err := scanRound(s.db.QueryRowContext(ctx,
		`SELECT id, name, criterion, created_at, last_used FROM rounds WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting round: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT song_id FROM round_songs WHERE round_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("loading round songs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var songID string
		if err := rows.Scan(&songID); err != nil {
			return nil, fmt.Errorf("scanning round song: %w", err)
		}
		r.SongIDs = append(r.SongIDs, songID)
	}
	return r, rows.Err()
}

// List returns all rounds, newest first, without song lists.
func (s *Service) List(ctx context.Context) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, criterion, created_at, last_used FROM rounds ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var rounds []Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		rounds = append(rounds, *r)
	}
	return rounds, rows.Err()
}

// UpdateSongs replaces a round's ordered song list. Usage counters are not
// adjusted; the round was used regardless of later edits.
func (s *Service) UpdateSongs(ctx context.Context, id string, songIDs []string) error {
	if len(songIDs) == 0 {
		return fmt.Errorf("a round needs at least one song")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rounds WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking round: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM round_songs WHERE round_id = ?`, id); err != nil {
		return fmt.Errorf("clearing round songs: %w", err)
	}
	if err := insertSongs(ctx, tx, id, songIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing song update: %w", err)
	}
	return nil
}

// Delete removes a round. Usage counters are historical and stay as they
// are.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rounds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting round: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Touch stamps a round's last_used time.
func (s *Service) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET last_used = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touching round: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// GenreUsage counts prior rounds per genre, keyed by the lowercased genre.
// Both explicit Genre rounds and least-used rounds that landed on the genre
// count as usage.
func (s *Service) GenreUsage(ctx context.Context) (map[string]int, error) {
	return s.criterionUsage(ctx, ModeGenre, ModeLeastUsedGenre)
}

// DecadeUsage counts prior rounds per decade, keyed by the decade string.
func (s *Service) DecadeUsage(ctx context.Context) (map[string]int, error) {
	return s.criterionUsage(ctx, ModeDecade, ModeLeastUsedDecade)
}

func (s *Service) criterionUsage(ctx context.Context, modes ...Mode) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT criterion FROM rounds`)
	if err != nil {
		return nil, fmt.Errorf("loading round criteria: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	usage := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning criterion: %w", err)
		}
		var c Criterion
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		if c.Value == "" {
			continue
		}
		for _, m := range modes {
			if c.Mode == m {
				usage[strings.ToLower(c.Value)]++
				break
			}
		}
	}
	return usage, rows.Err()
}

func insertSongs(ctx context.Context, tx *sql.Tx, roundID string, songIDs []string) error {
	for pos, songID := range songIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO round_songs (round_id, song_id, position) VALUES (?, ?, ?)`,
			roundID, songID, pos); err != nil {
			return fmt.Errorf("inserting round song %s: %w", songID, err)
		}
	}
	return nil
}

// scanRound scans a database row into a Round without its song list.
func scanRound(row interface{ Scan(...any) error }) (*Round, error) {
	var r Round
	var criterion string
	var createdAt string
	var lastUsed sql.NullString

	if err := row.Scan(&r.ID, &r.Name, &criterion, &createdAt, &lastUsed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(criterion), &r.Criterion); err != nil {
		return nil, fmt.Errorf("decoding criterion: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		r.CreatedAt = t
	}
	if lastUsed.Valid {
		if t, err := time.Parse(time.RFC3339, lastUsed.String); err == nil {
			r.LastUsed = &t
		}
	}
	return &r, nil
}
