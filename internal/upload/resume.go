package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrCorruptRecord is returned when a resume record cannot be parsed. The
// corrupt file is deleted automatically.
var ErrCorruptRecord = errors.New("upload: corrupt resume record")

// ResumeSubdir is the directory under the data dir holding resume records.
const ResumeSubdir = "upload-sessions"

const (
	recordFilePerms = 0o600
	recordDirPerms  = 0o700
)

// StaleRecordAge is how long a resume record is kept. The server expires
// unfinished chunk sessions well before this.
const StaleRecordAge = 24 * time.Hour

// cleanThrottle limits stale-record scans to one per interval.
const cleanThrottle = time.Hour

// ResumeRecord is the on-disk JSON for an unfinished upload.
type ResumeRecord struct {
	Server      string    `json:"server"`
	Key         string    `json:"key"`
	UploadID    string    `json:"upload_id"`
	ChunkSize   int64     `json:"chunk_size"`
	TotalChunks int       `json:"total_chunks"`
	FileSize    int64     `json:"file_size"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResumeStore persists upload sessions so an interrupted upload can continue
// in a later process. Records are JSON files named by an xxhash of
// (server, key). Safe for concurrent use.
type ResumeStore struct {
	dir    string
	logger *slog.Logger

	cleanMu   sync.Mutex
	lastClean time.Time
}

// NewResumeStore creates a store rooted at dataDir/upload-sessions.
func NewResumeStore(dataDir string, logger *slog.Logger) *ResumeStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &ResumeStore{
		dir:    filepath.Join(dataDir, ResumeSubdir),
		logger: logger,
	}
}

// Load reads the record for (server, key). Returns nil, nil if none exists.
func (s *ResumeStore) Load(server, key string) (*ResumeRecord, error) {
	path := s.filePath(server, key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil //nolint:nilnil // absent record
		}

		return nil, fmt.Errorf("upload: reading resume record: %w", err)
	}

	var rec ResumeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("corrupt resume record, deleting",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("failed to remove corrupt resume record",
				slog.String("path", path),
				slog.String("error", rmErr.Error()),
			)
		}

		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}

	// Guard against hash collisions between different files.
	if rec.Server != server || rec.Key != key {
		return nil, nil //nolint:nilnil // record belongs to another file
	}

	return &rec, nil
}

// Save writes rec atomically and runs a throttled stale-record sweep.
func (s *ResumeStore) Save(rec *ResumeRecord) error {
	if err := os.MkdirAll(s.dir, recordDirPerms); err != nil {
		return fmt.Errorf("upload: creating resume dir: %w", err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("upload: encoding resume record: %w", err)
	}

	path := s.filePath(rec.Server, rec.Key)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, recordFilePerms); err != nil {
		return fmt.Errorf("upload: writing resume record: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("upload: renaming resume record: %w", err)
	}

	s.cleanIfDue()

	return nil
}

// Delete removes the record for (server, key). A missing record is fine.
func (s *ResumeStore) Delete(server, key string) error {
	if err := os.Remove(s.filePath(server, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("upload: deleting resume record: %w", err)
	}

	return nil
}

// CleanStale removes records older than maxAge and returns how many were
// deleted.
func (s *ResumeStore) CleanStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("upload: reading resume dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to clean stale resume record",
				slog.String("file", e.Name()),
				slog.String("error", err.Error()),
			)

			continue
		}

		s.logger.Debug("deleted stale resume record",
			slog.String("file", e.Name()),
			slog.Duration("age", time.Since(info.ModTime())),
		)

		deleted++
	}

	return deleted, nil
}

func (s *ResumeStore) cleanIfDue() {
	s.cleanMu.Lock()
	if time.Since(s.lastClean) < cleanThrottle {
		s.cleanMu.Unlock()
		return
	}

	s.lastClean = time.Now()
	s.cleanMu.Unlock()

	n, err := s.CleanStale(StaleRecordAge)
	if err != nil {
		s.logger.Warn("stale resume record cleanup failed", slog.String("error", err.Error()))
		return
	}

	if n > 0 {
		s.logger.Info("cleaned stale resume records", slog.Int("count", n))
	}
}

// recordName is length-prefixed so ("a:", "b") and ("a", ":b") differ.
func recordName(server, key string) string {
	return fmt.Sprintf("%016x.json", xxhash.Sum64(fmt.Appendf(nil, "%d:%s:%s", len(server), server, key)))
}

func (s *ResumeStore) filePath(server, key string) string {
	return filepath.Join(s.dir, recordName(server, key))
}
