package musicbrainz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL(source.NewRateLimiterMap(), testLogger(), srv.URL)
}

func TestLookupByISRC(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "isrc:GBUM71029604" {
			t.Errorf("query = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"count": 2,
			"recordings": [
				{
					"id": "low",
					"title": "Harder Better Faster Stronger (live)",
					"score": 80,
					"artist-credit": [{"name": "Daft Punk"}]
				},
				{
					"id": "best",
					"title": "Harder, Better, Faster, Stronger",
					"score": 100,
					"first-release-date": "2001-03-07",
					"artist-credit": [{"name": "Daft Punk"}],
					"releases": [{"id": "r1", "title": "Discovery", "date": "2001-03-07"}],
					"tags": [{"name": "electronic", "count": 5}, {"name": "downvoted", "count": 0}]
				}
			]
		}`))
	})

	rec, err := adapter.LookupByISRC(context.Background(), "GBUM71029604")
	if err != nil {
		t.Fatalf("LookupByISRC failed: %v", err)
	}
	if rec.Title != "Harder, Better, Faster, Stronger" {
		t.Errorf("picked wrong recording: %q", rec.Title)
	}
	if rec.ArtistName != "Daft Punk" {
		t.Errorf("ArtistName = %q", rec.ArtistName)
	}
	if rec.AlbumName != "Discovery" {
		t.Errorf("AlbumName = %q", rec.AlbumName)
	}
	if rec.Year != "2001" {
		t.Errorf("Year = %q", rec.Year)
	}
	if len(rec.Genres) != 1 || rec.Genres[0] != "electronic" {
		t.Errorf("Genres = %v, want only positively tagged names", rec.Genres)
	}
}

func TestLookupByISRCJoinedCredit(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"count": 1,
			"recordings": [{
				"id": "x",
				"title": "Get Lucky",
				"score": 100,
				"artist-credit": [
					{"name": "Daft Punk", "joinphrase": " feat. "},
					{"name": "Pharrell Williams"}
				]
			}]
		}`))
	})

	rec, err := adapter.LookupByISRC(context.Background(), "USQX91300108")
	if err != nil {
		t.Fatalf("LookupByISRC failed: %v", err)
	}
	if rec.ArtistName != "Daft Punk feat. Pharrell Williams" {
		t.Errorf("ArtistName = %q", rec.ArtistName)
	}
}

func TestLookupByISRCNoHits(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 0, "recordings": []}`))
	})

	_, err := adapter.LookupByISRC(context.Background(), "XX0000000000")
	var notFound *source.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByISRCThrottled(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := adapter.LookupByISRC(context.Background(), "GBUM71029604")
	var unavailable *source.ErrUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if unavailable.RetryAfter == 0 {
		t.Error("expected a RetryAfter hint")
	}
}
