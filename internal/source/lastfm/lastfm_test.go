package lastfm

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
	return NewWithBaseURL("test-key", source.NewRateLimiterMap(), testLogger(), srv.URL)
}

func TestLookupByName(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != "track.getInfo" {
			t.Errorf("method = %q", q.Get("method"))
		}
		if q.Get("artist") != "Daft Punk" || q.Get("track") != "One More Time" {
			t.Errorf("artist/track = %q/%q", q.Get("artist"), q.Get("track"))
		}
		if q.Get("api_key") != "test-key" {
			t.Errorf("api_key = %q", q.Get("api_key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"track": {
			"name": "One More Time",
			"artist": {"name": "Daft Punk"},
			"album": {"title": "Discovery"},
			"toptags": {"tag": [
				{"name": "electronic"}, {"name": "house"}, {"name": "dance"},
				{"name": "french"}, {"name": "electronica"}, {"name": "seen live"}
			]}
		}}`))
	})

	rec, err := adapter.LookupByName(context.Background(), "Daft Punk", "One More Time")
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if rec.Title != "One More Time" || rec.ArtistName != "Daft Punk" {
		t.Errorf("got %q / %q", rec.Title, rec.ArtistName)
	}
	if rec.AlbumName != "Discovery" {
		t.Errorf("AlbumName = %q", rec.AlbumName)
	}
	if len(rec.Genres) != 5 {
		t.Errorf("Genres = %v, want the tag list capped at 5", rec.Genres)
	}
	if rec.Year != "" {
		t.Errorf("Year = %q, Last.fm reports no release year", rec.Year)
	}
}

func TestLookupByNameNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": 6, "message": "Track not found"}`))
	})

	_, err := adapter.LookupByName(context.Background(), "Nobody", "Nothing")
	var notFound *source.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByNameBadKey(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": 10, "message": "Invalid API key"}`))
	})

	_, err := adapter.LookupByName(context.Background(), "Daft Punk", "One More Time")
	var auth *source.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestLookupByNameRateLimited(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": 29, "message": "Rate limit exceeded"}`))
	})

	_, err := adapter.LookupByName(context.Background(), "Daft Punk", "One More Time")
	var unavailable *source.ErrUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLookupByNameNoKey(t *testing.T) {
	adapter := NewWithBaseURL("", source.NewRateLimiterMap(), testLogger(), "http://unused")

	_, err := adapter.LookupByName(context.Background(), "Daft Punk", "One More Time")
	var auth *source.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}
