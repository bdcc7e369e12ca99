package deezer

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
		if r.URL.Path != "/track/isrc:GBUM71029604" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 3135556,
			"title": "Harder, Better, Faster, Stronger",
			"isrc": "GBUM71029604",
			"preview": "https://cdn.deezer.com/preview/abc.mp3",
			"release_date": "2001-03-07",
			"artist": {"id": 27, "name": "Daft Punk"},
			"album": {"id": 302127, "title": "Discovery", "cover_xl": "https://cdn.deezer.com/cover/xl.jpg", "cover_big": "https://cdn.deezer.com/cover/big.jpg"}
		}`))
	})

	rec, err := adapter.LookupByISRC(context.Background(), "GBUM71029604")
	if err != nil {
		t.Fatalf("LookupByISRC failed: %v", err)
	}

	if rec.Title != "Harder, Better, Faster, Stronger" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.ArtistName != "Daft Punk" {
		t.Errorf("ArtistName = %q", rec.ArtistName)
	}
	if rec.AlbumName != "Discovery" {
		t.Errorf("AlbumName = %q", rec.AlbumName)
	}
	if rec.Year != "2001" {
		t.Errorf("Year = %q, want 2001", rec.Year)
	}
	if got := rec.ServiceIDs[source.PlatformDeezer]; got != "3135556" {
		t.Errorf("deezer service id = %q", got)
	}
	if got := rec.PreviewURLs[source.PlatformDeezer]; got != "https://cdn.deezer.com/preview/abc.mp3" {
		t.Errorf("preview url = %q", got)
	}
	if got := rec.CoverURLs[source.PlatformDeezer]; got != "https://cdn.deezer.com/cover/xl.jpg" {
		t.Errorf("cover url = %q, want the xl variant", got)
	}
	if rec.Popularity != nil {
		t.Errorf("Popularity = %v, want nil (rank is not a 0-100 score)", *rec.Popularity)
	}
}

func TestLookupByISRCInBandError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		// Deezer reports missing tracks with HTTP 200 and an error payload.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": {"type": "DataException", "message": "no data", "code": 800}}`))
	})

	_, err := adapter.LookupByISRC(context.Background(), "XX0000000000")
	var notFound *source.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notFound.Source != source.NameDeezer {
		t.Errorf("Source = %q", notFound.Source)
	}
}

func TestLookupByISRCServerError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := adapter.LookupByISRC(context.Background(), "GBUM71029604")
	var unavailable *source.ErrUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLookupByISRCRateLimited(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := adapter.LookupByISRC(context.Background(), "GBUM71029604")
	var unavailable *source.ErrUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if unavailable.RetryAfter == 0 {
		t.Error("expected a RetryAfter hint on 429")
	}
}

func TestPlaylistTracks(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlist/908622995" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 908622995,
			"title": "Quiz Classics",
			"tracks": {"data": [
				{"id": 3135556, "title": "One More Time", "artist": {"name": "Daft Punk"}},
				{"id": 916424, "title": "Mr. Brightside", "artist": {"name": "The Killers"}}
			]}
		}`))
	})

	refs, err := adapter.PlaylistTracks(context.Background(), "908622995")
	if err != nil {
		t.Fatalf("PlaylistTracks failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
	if refs[0].ServiceID != "3135556" {
		t.Errorf("refs[0].ServiceID = %q", refs[0].ServiceID)
	}
	if refs[0].ISRC != "" {
		t.Errorf("playlist listings carry no ISRC, got %q", refs[0].ISRC)
	}
	if refs[1].Artist != "The Killers" {
		t.Errorf("refs[1].Artist = %q", refs[1].Artist)
	}
}

func TestAlbumTracksMissing(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := adapter.AlbumTracks(context.Background(), "999999")
	var notFound *source.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
