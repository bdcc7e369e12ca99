package corpus

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/quizzicalbeats/quizzicalbeats/internal/database"
	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return NewStore(db, testLogger()), db
}

func testRecord() *song.Record {
	pop := 71
	return &song.Record{
		ISRC:              "GBAYE0601477",
		Title:             "Starlight",
		ArtistName:        "Muse",
		AlbumName:         "Black Holes and Revelations",
		Year:              "2006",
		Genre:             "Rock",
		Genres:            []string{"Rock", "Alternative Rock"},
		Popularity:        &pop,
		PreviewURL:        "https://p.scdn.co/preview/starlight",
		SpotifyID:         "3skn2lauGk7Dx6bVIt5DVj",
		SpotifyPreviewURL: "https://p.scdn.co/preview/starlight",
		Sources:           []string{"spotify", "musicbrainz"},
	}
}

func TestUpsertCreateAndGet(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord()
	res, err := store.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}
	if res.Status != StatusCreated {
		t.Errorf("expected status created, got %s", res.Status)
	}
	if res.ID == "" {
		t.Error("expected a generated ID")
	}

	got, err := store.Get(ctx, res.ID)
	if err != nil {
		t.Fatalf("getting by ID: %v", err)
	}
	if got.Title != "Starlight" || got.ArtistName != "Muse" {
		t.Errorf("unexpected record: %s by %s", got.Title, got.ArtistName)
	}
	if got.UsedCount != 0 {
		t.Errorf("expected used_count 0, got %d", got.UsedCount)
	}
	if got.Popularity == nil || *got.Popularity != 71 {
		t.Errorf("expected popularity 71, got %v", got.Popularity)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Rock" {
		t.Errorf("unexpected genres: %v", got.Genres)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, testRecord())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := store.Upsert(ctx, testRecord())
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Status != StatusUnchanged {
		t.Errorf("expected status unchanged, got %s", second.Status)
	}
	if second.ID != first.ID {
		t.Errorf("expected same ID %s, got %s", first.ID, second.ID)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}

func TestUpsertMergeFillsGapsOnly(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord()
	rec.AlbumName = ""
	rec.DeezerID = ""
	if _, err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	incoming := testRecord()
	incoming.Title = "Starlight (Remaster)" // disagreement, must not win
	incoming.Year = "2010"                  // disagreement, must not win
	incoming.AlbumName = "Black Holes and Revelations"
	incoming.DeezerID = "3129407"
	incoming.DeezerPreviewURL = "https://cdn.deezer.com/starlight.mp3"
	incoming.Genres = []string{"rock", "Prog Rock"}
	incoming.Sources = []string{"deezer"}

	res, err := store.Upsert(ctx, incoming)
	if err != nil {
		t.Fatalf("merging upsert: %v", err)
	}
	if res.Status != StatusUpdated {
		t.Fatalf("expected status updated, got %s", res.Status)
	}

	got, err := store.Get(ctx, res.ID)
	if err != nil {
		t.Fatalf("getting merged record: %v", err)
	}
	if got.Title != "Starlight" {
		t.Errorf("existing title overwritten: %s", got.Title)
	}
	if got.Year != "2006" {
		t.Errorf("existing year overwritten: %s", got.Year)
	}
	if got.AlbumName != "Black Holes and Revelations" {
		t.Errorf("album gap not filled: %q", got.AlbumName)
	}
	if got.DeezerID != "3129407" {
		t.Errorf("deezer ID gap not filled: %q", got.DeezerID)
	}

	// "rock" already present case-insensitively; "Prog Rock" is new.
	wantGenres := []string{"Rock", "Alternative Rock", "Prog Rock"}
	if len(got.Genres) != len(wantGenres) {
		t.Fatalf("expected genres %v, got %v", wantGenres, got.Genres)
	}
	for i, g := range wantGenres {
		if got.Genres[i] != g {
			t.Errorf("genre %d: expected %q, got %q", i, g, got.Genres[i])
		}
	}
	wantSources := []string{"spotify", "musicbrainz", "deezer"}
	if len(got.Sources) != len(wantSources) || got.Sources[2] != "deezer" {
		t.Errorf("expected sources %v, got %v", wantSources, got.Sources)
	}
}

func TestUpsertRequiredFields(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, rec := range []*song.Record{
		{Title: "Starlight", ArtistName: "Muse"},
		{ISRC: "GBAYE0601477", ArtistName: "Muse"},
		{ISRC: "GBAYE0601477", Title: "Starlight"},
	} {
		if _, err := store.Upsert(ctx, rec); err == nil {
			t.Errorf("expected error for incomplete record %+v", rec)
		}
	}
}

func TestGetByISRCNormalizes(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, testRecord()); err != nil {
		t.Fatalf("upserting: %v", err)
	}

	got, err := store.GetByISRC(ctx, "gb-aye-06-01477")
	if err != nil {
		t.Fatalf("getting by dashed ISRC: %v", err)
	}
	if got.ISRC != "GBAYE0601477" {
		t.Errorf("unexpected ISRC: %s", got.ISRC)
	}

	if _, err := store.GetByISRC(ctx, "USUM71703861"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByServiceID(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord()
	rec.DeezerID = "3129407"
	if _, err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upserting: %v", err)
	}

	got, err := store.GetByServiceID(ctx, "spotify", "3skn2lauGk7Dx6bVIt5DVj")
	if err != nil {
		t.Fatalf("getting by spotify ID: %v", err)
	}
	if got.ISRC != "GBAYE0601477" {
		t.Errorf("unexpected record: %s", got.ISRC)
	}

	if _, err := store.GetByServiceID(ctx, "deezer", "999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByServiceID(ctx, "tidal", "1"); err == nil {
		t.Error("expected error for unknown service")
	}
}

func TestMarkUsed(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	res, err := store.Upsert(ctx, testRecord())
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}

	if err := store.MarkUsed(ctx, []string{res.ID}); err != nil {
		t.Fatalf("marking used: %v", err)
	}
	if err := store.MarkUsed(ctx, []string{res.ID}); err != nil {
		t.Fatalf("marking used again: %v", err)
	}

	got, err := store.Get(ctx, res.ID)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if got.UsedCount != 2 {
		t.Errorf("expected used_count 2, got %d", got.UsedCount)
	}
	if got.LastUsed == nil {
		t.Error("expected last_used to be set")
	}

	if err := store.MarkUsed(ctx, []string{"missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	res, err := store.Upsert(ctx, testRecord())
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}

	if err := store.Delete(ctx, res.ID); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if _, err := store.Get(ctx, res.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, res.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteReferencedSong(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	res, err := store.Upsert(ctx, testRecord())
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO rounds (id, name, criterion, created_at) VALUES ('r1', 'Eighties', 'decade', '2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("inserting round: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO round_songs (round_id, song_id, position) VALUES ('r1', ?, 0)`, res.ID); err != nil {
		t.Fatalf("inserting round song: %v", err)
	}

	if err := store.Delete(ctx, res.ID); !errors.Is(err, ErrInUse) {
		t.Errorf("expected ErrInUse, got %v", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM round_songs WHERE round_id = 'r1'`); err != nil {
		t.Fatalf("clearing round songs: %v", err)
	}
	if err := store.Delete(ctx, res.ID); err != nil {
		t.Errorf("deleting after round removal: %v", err)
	}
}
