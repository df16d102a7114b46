// Package store owns the on-disk backlog document.
//
// Every access goes through WithDocument or View, which serialize callers
// with an in-process semaphore plus an advisory lock file so that several
// server processes can share one tasks file. A mutation is always
// load -> apply -> save of the whole document, and the save replaces the
// file atomically.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/HendryAvila/backlog/internal/backlog"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultFile is the tasks file used when none is configured.
	DefaultFile = "tasks.json"
	// DefaultLockTimeout bounds the wait for the cross-process file lock.
	DefaultLockTimeout = 5 * time.Second

	lockSuffix     = ".lock"
	lockRetryDelay = 10 * time.Millisecond
	maxIDAttempts  = 64
)

// Store is the persistence contract the session controller depends on.
type Store interface {
	WithDocument(ctx context.Context, fn func(*backlog.Document) error) error
	View(ctx context.Context, fn func(*backlog.Document) error) error
	GenerateTaskID(doc *backlog.Document) (string, error)
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)

// FileStore implements Store on a single JSON file.
type FileStore struct {
	path        string
	lockTimeout time.Duration
	sem         *semaphore.Weighted
	flk         *flock.Flock
	newID       func() string
	logger      *slog.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLockTimeout sets how long to wait for the file lock before failing.
func WithLockTimeout(d time.Duration) Option {
	return func(s *FileStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithIDGenerator replaces the random task ID source. Used by tests to
// force collisions.
func WithIDGenerator(fn func() string) Option {
	return func(s *FileStore) { s.newID = fn }
}

// WithLogger sets the logger for lock diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFileStore creates a store for the given path. The file does not need
// to exist; it is created on the first mutation.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:        path,
		lockTimeout: DefaultLockTimeout,
		sem:         semaphore.NewWeighted(1),
		flk:         flock.New(path + lockSuffix),
		newID:       randomID,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and parses the backing file. A missing file yields an empty
// document.
func (s *FileStore) Load() (*backlog.Document, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return backlog.NewDocument(), nil
		}
		return nil, &backlog.StorageIOError{Op: "read", Path: s.path, Err: err}
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return backlog.NewDocument(), nil
	}

	var doc backlog.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, &backlog.CorruptDataError{Path: s.path, Err: err}
	}
	if err := doc.Normalize(); err != nil {
		return nil, &backlog.CorruptDataError{Path: s.path, Err: err}
	}
	return &doc, nil
}

// Save writes the document so that readers never observe a partial file.
func (s *FileStore) Save(doc *backlog.Document) error {
	if doc == nil {
		doc = backlog.NewDocument()
	}
	if doc.Issues == nil {
		doc.Issues = make(map[string]*backlog.Issue)
	}

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling backlog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &backlog.StorageIOError{Op: "create directory for", Path: s.path, Err: err}
	}

	_, statErr := os.Stat(s.path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	if err := atomic.WriteFile(s.path, bytes.NewReader(content)); err != nil {
		return &backlog.StorageIOError{Op: "write", Path: s.path, Err: err}
	}

	// atomic.WriteFile creates new files 0600.
	if isNew {
		_ = os.Chmod(s.path, 0o644)
	}
	return nil
}

// WithDocument runs fn against a freshly loaded document under the
// exclusive lock and saves the result. If fn fails, nothing is written and
// fn's error is returned unchanged.
func (s *FileStore) WithDocument(ctx context.Context, fn func(*backlog.Document) error) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(doc)
}

// View runs fn against a consistent snapshot under the same lock as
// mutations. Changes fn makes to the document are discarded.
func (s *FileStore) View(ctx context.Context, fn func(*backlog.Document) error) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	return fn(doc)
}

// GenerateTaskID draws identifiers until one is unused anywhere in doc.
func (s *FileStore) GenerateTaskID(doc *backlog.Document) (string, error) {
	for range maxIDAttempts {
		id := s.newID()
		if len(id) != backlog.TaskIDLength {
			return "", fmt.Errorf("generated task id %q has length %d, want %d", id, len(id), backlog.TaskIDLength)
		}
		if !doc.HasTask(id) {
			return id, nil
		}
		s.logger.Debug("task id collision, redrawing", "id", id)
	}
	return "", fmt.Errorf("no unused task id after %d attempts", maxIDAttempts)
}

// lock acquires the in-process semaphore and then the advisory file lock.
// The returned func releases both.
func (s *FileStore) lock(ctx context.Context) (func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, &backlog.StorageIOError{Op: "lock", Path: s.path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.sem.Release(1)
		return nil, &backlog.StorageIOError{Op: "create directory for", Path: s.path, Err: err}
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	start := time.Now()
	locked, err := s.flk.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		s.sem.Release(1)
		if err == nil {
			err = errors.New("lock not acquired")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("timed out waiting for file lock", "path", s.flk.Path(), "timeout", s.lockTimeout)
			err = fmt.Errorf("file lock held by another process for more than %s: %w", s.lockTimeout, err)
		}
		return nil, &backlog.StorageIOError{Op: "lock", Path: s.path, Err: err}
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		s.logger.Debug("waited for file lock", "path", s.flk.Path(), "waited", waited)
	}

	return func() {
		if err := s.flk.Unlock(); err != nil {
			s.logger.Warn("releasing file lock", "path", s.flk.Path(), "error", err)
		}
		s.sem.Release(1)
	}, nil
}

// randomID returns the first eight characters of a random UUID.
func randomID() string {
	return uuid.NewString()[:backlog.TaskIDLength]
}
