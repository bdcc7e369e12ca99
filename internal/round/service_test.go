package round

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quizzicalbeats/quizzicalbeats/internal/corpus"
	"github.com/quizzicalbeats/quizzicalbeats/internal/database"
	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T) (*Service, *corpus.Store, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return NewService(db, testLogger()), corpus.NewStore(db, testLogger()), db
}

func seedSongs(t *testing.T, store *corpus.Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		res, err := store.Upsert(context.Background(), &song.Record{
			ISRC:       fmt.Sprintf("USAAA00000%03d", i),
			Title:      fmt.Sprintf("Song %02d", i),
			ArtistName: fmt.Sprintf("Artist %02d", i),
			Year:       "1985",
			Genre:      "Rock",
			Sources:    []string{"spotify"},
		})
		if err != nil {
			t.Fatalf("seeding song %d: %v", i, err)
		}
		ids = append(ids, res.ID)
	}
	return ids
}

func TestCreateRoundBumpsUsage(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 8)

	r, err := svc.Create(ctx, "Pub Night", Criterion{Mode: ModeGenre, Value: "Rock"}, ids)
	if err != nil {
		t.Fatalf("creating round: %v", err)
	}
	if r.ID == "" {
		t.Error("expected a round ID")
	}

	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("getting round: %v", err)
	}
	if len(got.SongIDs) != 8 {
		t.Fatalf("expected 8 songs, got %d", len(got.SongIDs))
	}
	for i, id := range ids {
		if got.SongIDs[i] != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got.SongIDs[i])
		}
	}

	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("getting song: %v", err)
		}
		if rec.UsedCount != 1 {
			t.Errorf("song %s: expected used_count 1, got %d", id, rec.UsedCount)
		}
		if rec.LastUsed == nil {
			t.Errorf("song %s: expected last_used set", id)
		}
	}
}

func TestCreateRoundUnknownSongAtomic(t *testing.T) {
	svc, store, db := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 3)

	_, err := svc.Create(ctx, "", Criterion{Mode: ModeRandom},
		append(ids, "no-such-song"))
	if !errors.Is(err, corpus.ErrNotFound) {
		t.Fatalf("expected corpus.ErrNotFound, got %v", err)
	}

	var rounds int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&rounds); err != nil {
		t.Fatalf("counting rounds: %v", err)
	}
	if rounds != 0 {
		t.Errorf("expected no persisted round, got %d", rounds)
	}

	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("getting song: %v", err)
		}
		if rec.UsedCount != 0 {
			t.Errorf("song %s: counter bumped by failed round: %d", id, rec.UsedCount)
		}
	}
}

func TestCreateRoundValidation(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 1)

	if _, err := svc.Create(ctx, "", Criterion{Mode: "roulette"}, ids); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := svc.Create(ctx, "", Criterion{Mode: ModeRandom}, nil); err == nil {
		t.Error("expected error for empty song list")
	}
}

func TestDeleteRoundKeepsCounters(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 4)

	r, err := svc.Create(ctx, "", Criterion{Mode: ModeRandom}, ids)
	if err != nil {
		t.Fatalf("creating round: %v", err)
	}
	if err := svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("deleting round: %v", err)
	}
	if _, err := svc.Get(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("getting song: %v", err)
		}
		if rec.UsedCount != 1 {
			t.Errorf("song %s: counter changed on delete: %d", id, rec.UsedCount)
		}
	}

	if err := svc.Delete(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRestoreKeepsCounters(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 2)

	created := time.Date(2025, 11, 3, 20, 0, 0, 0, time.UTC)
	err := svc.Restore(ctx, &Round{
		ID:        "restored-1",
		Name:      "From Backup",
		Criterion: Criterion{Mode: ModeDecade, Value: "1980"},
		SongIDs:   ids,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("restoring round: %v", err)
	}

	got, err := svc.Get(ctx, "restored-1")
	if err != nil {
		t.Fatalf("getting restored round: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("creation time not preserved: %v", got.CreatedAt)
	}

	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("getting song: %v", err)
		}
		if rec.UsedCount != 0 {
			t.Errorf("restore bumped used_count for %s", id)
		}
	}
}

func TestUpdateSongs(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 5)

	r, err := svc.Create(ctx, "", Criterion{Mode: ModeRandom}, ids[:3])
	if err != nil {
		t.Fatalf("creating round: %v", err)
	}

	reordered := []string{ids[4], ids[0]}
	if err := svc.UpdateSongs(ctx, r.ID, reordered); err != nil {
		t.Fatalf("updating songs: %v", err)
	}

	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("getting round: %v", err)
	}
	if len(got.SongIDs) != 2 || got.SongIDs[0] != ids[4] || got.SongIDs[1] != ids[0] {
		t.Errorf("unexpected song list: %v", got.SongIDs)
	}

	// Edits do not touch usage counters.
	rec, err := store.Get(ctx, ids[4])
	if err != nil {
		t.Fatalf("getting song: %v", err)
	}
	if rec.UsedCount != 1 {
		t.Errorf("expected used_count 1 after edit, got %d", rec.UsedCount)
	}

	if err := svc.UpdateSongs(ctx, "missing", reordered); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndTouch(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 2)

	r, err := svc.Create(ctx, "First", Criterion{Mode: ModeRandom}, ids)
	if err != nil {
		t.Fatalf("creating round: %v", err)
	}

	if err := svc.Touch(ctx, r.ID); err != nil {
		t.Fatalf("touching: %v", err)
	}

	rounds, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(rounds))
	}
	if rounds[0].LastUsed == nil {
		t.Error("expected last_used after touch")
	}
	if len(rounds[0].SongIDs) != 0 {
		t.Error("list should not load song lists")
	}

	if err := svc.Touch(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGenreAndDecadeUsage(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	ids := seedSongs(t, store, 2)

	rounds := []Criterion{
		{Mode: ModeGenre, Value: "Rock"},
		{Mode: ModeLeastUsedGenre, Value: "rock"},
		{Mode: ModeGenre, Value: "Pop"},
		{Mode: ModeDecade, Value: "1980"},
		{Mode: ModeLeastUsedDecade, Value: "1980"},
		{Mode: ModeRandom},
	}
	for _, c := range rounds {
		if _, err := svc.Create(ctx, "", c, ids[:1]); err != nil {
			t.Fatalf("creating %s round: %v", c, err)
		}
	}

	genres, err := svc.GenreUsage(ctx)
	if err != nil {
		t.Fatalf("genre usage: %v", err)
	}
	if genres["rock"] != 2 {
		t.Errorf("expected rock usage 2 across modes and casings, got %d", genres["rock"])
	}
	if genres["pop"] != 1 {
		t.Errorf("expected pop usage 1, got %d", genres["pop"])
	}
	if _, ok := genres["1980"]; ok {
		t.Error("decade round counted as genre usage")
	}

	decades, err := svc.DecadeUsage(ctx)
	if err != nil {
		t.Fatalf("decade usage: %v", err)
	}
	if decades["1980"] != 2 {
		t.Errorf("expected 1980 usage 2, got %d", decades["1980"])
	}
}
