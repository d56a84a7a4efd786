// Package filestore is a Signup Store backed by a single JSON file.
//
// The file holds {"emails": [...], "totalCount": N}. The full snapshot is kept
// in memory and rewritten atomically (temp file + rename) on every accepted
// signup. A mutex serializes the dedupe-and-increment step.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelforge/waitlist/internal/model"
	"github.com/modelforge/waitlist/internal/store"
)

// Store is a file-backed store.Store.
type Store struct {
	path   string
	seed   int64
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	snap    *model.Snapshot
	byEmail map[string]struct{}
}

var _ store.Store = (*Store)(nil)

// Open loads the snapshot at path, creating it at the seed count if missing.
// A file that cannot be parsed or that violates the count invariant is an error;
// it is never silently reset.
func Open(path string, seed int64, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		seed:   seed,
		logger: logger.With("component", "store.file"),
		now:    time.Now,
	}

	snap, err := Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		snap = model.NewSnapshot(seed)
		if err := Save(path, snap); err != nil {
			return nil, err
		}
		s.logger.Info("initialized signup file", "path", path, "seed", seed)
	case err != nil:
		return nil, err
	}

	if err := snap.Verify(seed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrStorageUnavailable, path, err)
	}

	s.snap = snap
	s.byEmail = make(map[string]struct{}, len(snap.Emails))
	for _, entry := range snap.Emails {
		s.byEmail[entry.Email] = struct{}{}
	}

	return s, nil
}

// TryAddSignup implements store.Store.
func (s *Store) TryAddSignup(ctx context.Context, email string) (store.AddResult, error) {
	if err := ctx.Err(); err != nil {
		return store.AddResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return store.AddResult{Accepted: false, Count: s.snap.TotalCount}, store.ErrDuplicateSignup
	}

	next := &model.Snapshot{
		Emails:     make([]model.SignupRecord, len(s.snap.Emails), len(s.snap.Emails)+1),
		TotalCount: s.snap.TotalCount + 1,
	}
	copy(next.Emails, s.snap.Emails)
	next.Emails = append(next.Emails, store.NewRecord(email, s.now()))

	// Memory only advances once the file is durable.
	if err := Save(s.path, next); err != nil {
		s.logger.Error("failed to persist signup", "error", err)
		return store.AddResult{}, err
	}

	s.snap = next
	s.byEmail[email] = struct{}{}

	return store.AddResult{Accepted: true, Count: next.TotalCount}, nil
}

// GetCount implements store.Store.
func (s *Store) GetCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.TotalCount, nil
}

// ListSignups implements store.Store.
func (s *Store) ListSignups(ctx context.Context) ([]model.SignupRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.NewestFirst(), nil
}

// Ping checks that the data file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageUnavailable, err)
	}
	return nil
}

// Close is a no-op; every accepted signup is already on disk.
func (s *Store) Close() error {
	return nil
}

// Load reads a snapshot from path. A missing file returns an error
// matching fs.ErrNotExist.
func Load(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s: %v", store.ErrStorageUnavailable, path, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", store.ErrStorageUnavailable, path, err)
	}
	if snap.Emails == nil {
		snap.Emails = []model.SignupRecord{}
	}

	return &snap, nil
}

// Save writes snap to path atomically.
func Save(path string, snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", store.ErrStorageUnavailable, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", store.ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: write: %v", store.ErrStorageUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: sync: %v", store.ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close: %v", store.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", store.ErrStorageUnavailable, err)
	}

	return nil
}
