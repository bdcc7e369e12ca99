package oracle

import (
	"context"
	"encoding/json"
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
	return New(srv.URL+"/v1/chat/completions", "test-key", "test-model", source.NewRateLimiterMap(), testLogger())
}

func completionWith(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestLookupByName(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		w.Write([]byte(completionWith(`{"year": "1994", "genre": "Grunge"}`)))
	})

	rec, err := adapter.LookupByName(context.Background(), "Nirvana", "About a Girl")
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if rec.Year != "1994" {
		t.Errorf("Year = %q", rec.Year)
	}
	if len(rec.Genres) != 1 || rec.Genres[0] != "Grunge" {
		t.Errorf("Genres = %v", rec.Genres)
	}
	if rec.Title != "" || rec.ArtistName != "" {
		t.Error("the model must not contribute title or artist")
	}
}

func TestLookupByNameFencedOutput(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionWith("```json\n{\"year\": \"2001\", \"genre\": \"House\"}\n```")))
	})

	rec, err := adapter.LookupByName(context.Background(), "Daft Punk", "One More Time")
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if rec.Year != "2001" {
		t.Errorf("Year = %q", rec.Year)
	}
}

func TestLookupByNameUnknownTrack(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionWith(`{"year": "", "genre": ""}`)))
	})

	_, err := adapter.LookupByName(context.Background(), "Nobody", "Nothing")
	var notFound *source.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupByNameGarbageOutput(t *testing.T) {
	cases := []string{
		"I think that song is from 1987 and it's synthpop.",
		`{"year": "87", "genre": "Synthpop"}`,
		`{"year": "3025", "genre": "Synthpop"}`,
		`{"year": "nineteen-eighty-seven", "genre": "Synthpop"}`,
	}
	for _, content := range cases {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(completionWith(content)))
		})
		_, err := adapter.LookupByName(context.Background(), "a-ha", "Take On Me")
		var notFound *source.ErrNotFound
		if !errors.As(err, &notFound) {
			t.Errorf("content %q: expected ErrNotFound, got %v", content, err)
		}
	}
}

func TestLookupByNameGenreOnly(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionWith(`{"year": "", "genre": "Jazz"}`)))
	})

	rec, err := adapter.LookupByName(context.Background(), "Miles Davis", "So What")
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if rec.Year != "" || len(rec.Genres) != 1 {
		t.Errorf("rec = %+v", rec)
	}
}

func TestLookupByNameBadKey(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := adapter.LookupByName(context.Background(), "Nirvana", "About a Girl")
	var auth *source.ErrAuthRequired
	if !errors.As(err, &auth) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestLookupByNameServerError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := adapter.LookupByName(context.Background(), "Nirvana", "About a Girl")
	var unavailable *source.ErrUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
