package reconcile

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	if table.Len() == 0 {
		t.Fatal("embedded table is empty")
	}

	cases := map[string]string{
		"iskelmä":        "Schlager",
		"ISKELMÄ":        "Schlager",
		"hip-hop/rap":    "Hip-Hop",
		"Unknown Genre":  "Unknown Genre",
		" vaihtoehtoinen": "Alternative",
	}
	for in, want := range cases {
		if got := table.Translate(in); got != want {
			t.Errorf("Translate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadTableMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genres.yaml")
	if err := os.WriteFile(path, []byte("schlagermusik: Schlager\niskelmä: Overridden\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if got := table.Translate("schlagermusik"); got != "Schlager" {
		t.Errorf("new entry: got %q", got)
	}
	if got := table.Translate("iskelmä"); got != "Overridden" {
		t.Errorf("override: got %q", got)
	}
	if got := table.Translate("classique"); got != "Classical" {
		t.Errorf("embedded default lost: got %q", got)
	}
}

func TestLoadTableMissingFile(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatchReloadsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genres.yaml")
	if err := os.WriteFile(path, []byte("foo: Bar\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = table.Watch(ctx, path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("foo: Baz\n"), 0o600); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if table.Translate("foo") == "Baz" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("table not reloaded, Translate(foo) = %q", table.Translate("foo"))
		case <-time.After(20 * time.Millisecond):
		}
	}
}
