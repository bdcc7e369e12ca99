package maintenance

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/quizzicalbeats/quizzicalbeats/internal/corpus"
	"github.com/quizzicalbeats/quizzicalbeats/internal/database"
	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db, dbPath
}

func TestStatus(t *testing.T) {
	db, dbPath := setupTestDB(t)
	svc := NewService(db, dbPath, testLogger())

	store := corpus.NewStore(db, testLogger())
	if _, err := store.Upsert(context.Background(), &song.Record{
		ISRC:       "GBAYE0601477",
		Title:      "Starlight",
		ArtistName: "Muse",
		Sources:    []string{"spotify"},
	}); err != nil {
		t.Fatalf("seeding song: %v", err)
	}

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.DBFileSize <= 0 {
		t.Error("expected positive DB file size")
	}
	if st.PageSize <= 0 || st.PageCount <= 0 {
		t.Errorf("expected positive page stats, got size %d count %d", st.PageSize, st.PageCount)
	}
	if st.SongCount != 1 {
		t.Errorf("expected 1 song, got %d", st.SongCount)
	}
	if st.RoundCount != 0 {
		t.Errorf("expected 0 rounds, got %d", st.RoundCount)
	}
}

func TestOptimizeAndVacuum(t *testing.T) {
	db, dbPath := setupTestDB(t)
	svc := NewService(db, dbPath, testLogger())
	ctx := context.Background()

	if err := svc.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if err := svc.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}

	// The database must stay usable afterwards.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs").Scan(&n); err != nil {
		t.Fatalf("querying after maintenance: %v", err)
	}
}
