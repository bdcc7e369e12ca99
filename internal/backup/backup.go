// Package backup snapshots the corpus database file with VACUUM INTO and
// prunes old snapshots by count and age. Record-level backup of individual
// rounds lives in internal/export.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// snapshotPattern matches snapshot filenames: quizzicalbeats-YYYYMMDD-HHMMSS.db
var snapshotPattern = regexp.MustCompile(`^quizzicalbeats-\d{8}-\d{6}\.db$`)

// Info describes one snapshot file.
type Info struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service manages database snapshots.
type Service struct {
	db         *sql.DB
	dir        string
	mu         sync.RWMutex
	retention  int
	maxAgeDays int
	logger     *slog.Logger
}

// NewService creates a snapshot service. retention caps how many snapshots
// Prune keeps; maxAgeDays of zero disables age-based pruning.
func NewService(db *sql.DB, dir string, retention, maxAgeDays int, logger *slog.Logger) *Service {
	return &Service{
		db:         db,
		dir:        dir,
		retention:  retention,
		maxAgeDays: maxAgeDays,
		logger:     logger.With(slog.String("component", "backup")),
	}
}

// Snapshot writes a consistent copy of the database using VACUUM INTO.
func (s *Service) Snapshot(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("quizzicalbeats-%s.db", now.Format("20060102-150405"))
	dest := filepath.Join(s.dir, filename)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}

	s.logger.Info("snapshot written",
		slog.String("filename", filename),
		slog.Int64("size", info.Size()))

	return &Info{Filename: filename, Size: info.Size(), CreatedAt: now}, nil
}

// List returns all snapshot files, newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var snapshots []Info
	for _, entry := range entries {
		if entry.IsDir() || !snapshotPattern.MatchString(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}

		name := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "quizzicalbeats-"), ".db")
		ts, err := time.Parse("20060102-150405", name)
		if err != nil {
			ts = fi.ModTime()
		}

		snapshots = append(snapshots, Info{
			Filename:  entry.Name(),
			Size:      fi.Size(),
			CreatedAt: ts,
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// Delete removes a single snapshot by filename.
func (s *Service) Delete(filename string) error {
	if !ValidSnapshotFilename(filename) {
		return fmt.Errorf("invalid snapshot filename")
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	s.logger.Info("snapshot deleted", slog.String("filename", filename))
	return nil
}

// SetRetention updates the retention count used by Prune.
func (s *Service) SetRetention(count int) {
	s.mu.Lock()
	s.retention = count
	s.mu.Unlock()
}

// Prune deletes snapshots past the retention count, then any older than
// the max age.
func (s *Service) Prune() error {
	s.mu.RLock()
	retention := s.retention
	maxAge := s.maxAgeDays
	s.mu.RUnlock()

	snapshots, err := s.List()
	if err != nil {
		return err
	}

	var excess []Info
	if retention > 0 && len(snapshots) > retention {
		excess = snapshots[retention:]
		snapshots = snapshots[:retention]
	}
	if maxAge > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -maxAge)
		for _, sn := range snapshots {
			if sn.CreatedAt.Before(cutoff) {
				excess = append(excess, sn)
			}
		}
	}

	for _, sn := range excess {
		if err := os.Remove(filepath.Join(s.dir, sn.Filename)); err != nil {
			s.logger.Warn("removing old snapshot",
				slog.String("filename", sn.Filename), slog.Any("error", err))
			continue
		}
		s.logger.Info("pruned snapshot", slog.String("filename", sn.Filename))
	}
	return nil
}

// Dir returns the snapshot directory path.
func (s *Service) Dir() string {
	return s.dir
}

// StartScheduler snapshots on a fixed interval until the context is
// canceled, pruning after every run.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("backup scheduler started",
		slog.String("interval", interval.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Snapshot(ctx); err != nil {
				s.logger.Error("scheduled snapshot failed", slog.Any("error", err))
				continue
			}
			if err := s.Prune(); err != nil {
				s.logger.Error("snapshot prune failed", slog.Any("error", err))
			}
		}
	}
}

// ValidSnapshotFilename checks the filename matches the snapshot pattern
// and contains no path separators.
func ValidSnapshotFilename(filename string) bool {
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return false
	}
	return snapshotPattern.MatchString(filename)
}
