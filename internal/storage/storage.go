package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/vsporte/fhm-matches/internal/failure"
	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/match"
)

// ErrNoSnapshot is returned by Load before the first snapshot is written
var ErrNoSnapshot = errors.New("no snapshot")

// Mirror receives a copy of each saved snapshot
type Mirror interface {
	Put(ctx context.Context, snap *match.Snapshot) error
	Close(ctx context.Context) error
}

// Store handles persistence of the snapshot file
type Store struct {
	path   string
	mirror Mirror

	mu   sync.Mutex
	last time.Time
}

// New creates a Store writing to path, creating its directory if needed.
func New(path string) (*Store, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Store{path: path}, nil
}

// SetMirror attaches a mirror; nil detaches
func (s *Store) SetMirror(m Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = m
}

// Path returns the snapshot file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the current snapshot. It returns ErrNoSnapshot if none was written yet.
func (s *Store) Load() (*match.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap match.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snap.Matches == nil {
		snap.Matches = []match.MatchRecord{}
	}
	if snap.Arenas == nil {
		snap.Arenas = []string{}
	}

	return &snap, nil
}

// Save replaces the snapshot file with snap. If snap.LastUpdate does not advance
// past the previously saved value it is moved to one microsecond after it.
// Failures are classified as snapshot_write_error.
func (s *Store) Save(ctx context.Context, snap *match.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last.IsZero() {
		if prev, err := s.Load(); err == nil {
			s.last = prev.LastUpdate
		}
	}

	snap.LastUpdate = snap.LastUpdate.UTC()
	if !snap.LastUpdate.After(s.last) {
		snap.LastUpdate = s.last.Add(time.Microsecond)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return failure.Wrap(failure.SnapshotWrite, err, "encoding snapshot")
	}

	if err := writeFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return failure.Wrap(failure.SnapshotWrite, err, "writing "+s.path)
	}
	s.last = snap.LastUpdate

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, snap); err != nil {
			// The file is the source of truth; a stale mirror is not a failed run.
			logger.Warn("snapshot mirror failed", logger.Fields{"error": err.Error()})
		}
	}
	return nil
}

// Close releases the mirror, if any
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mirror == nil {
		return nil
	}
	err := s.mirror.Close(ctx)
	s.mirror = nil
	return err
}

// writeFileAtomic writes data to a temp file next to path and renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
