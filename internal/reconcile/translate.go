package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed genres.yaml
var defaultTranslations []byte

// Table maps localized or vendor-specific genre labels to canonical ones.
// Lookups are case-insensitive; unknown labels pass through unchanged.
// The table is safe for concurrent use so it can be hot-reloaded.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
}

// DefaultTable returns the embedded genre translation table.
func DefaultTable() *Table {
	t := &Table{}
	// The embedded table is validated by tests; a parse failure here would
	// be a build defect, so fall back to an empty table rather than panic.
	if err := t.load(defaultTranslations); err != nil {
		t.entries = map[string]string{}
	}
	return t
}

// LoadTable reads a translation table from a YAML file and merges it over
// the embedded defaults.
func LoadTable(path string) (*Table, error) {
	t := DefaultTable()
	if err := t.MergeFile(path); err != nil {
		return nil, err
	}
	return t, nil
}

// MergeFile merges entries from a YAML file into the table. Entries in the
// file override embedded defaults with the same key.
func (t *Table) MergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return fmt.Errorf("reading genre translations: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing genre translations: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range raw {
		t.entries[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return nil
}

func (t *Table) load(data []byte) error {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make(map[string]string, len(raw))
	for k, v := range raw {
		entries[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()
	return nil
}

// Translate returns the canonical label for a genre, or the input unchanged
// when no translation exists.
func (t *Table) Translate(label string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if canonical, ok := t.entries[strings.ToLower(strings.TrimSpace(label))]; ok {
		return canonical
	}
	return label
}

// Len returns the number of translation entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Watch reloads the table whenever the file at path changes. It blocks
// until ctx is canceled and is meant to run in its own goroutine. Editors
// that replace the file (rename+create) are handled by watching the parent
// directory.
func (t *Table) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := t.MergeFile(path); err != nil {
				logger.Warn("reloading genre translations failed", "path", path, "error", err)
				continue
			}
			logger.Info("genre translations reloaded", "path", path, "entries", t.Len())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("genre translation watcher error", "error", err)
		}
	}
}
