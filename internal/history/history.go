// Package history keeps a local ledger of completed uploads in SQLite so the
// CLI can list past share links without a server round-trip.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/pickoala/pickoala-cli/internal/api"
)

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Entry is one completed upload.
type Entry struct {
	ID           int64
	Server       string
	LocalPath    string
	FileID       int64
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	UniqueCode   string
	UploadMode   api.UploadMode
	ExpireAt     time.Time // zero = never
	UploadedAt   time.Time
}

// ShareURL returns the public link for the entry.
func (e *Entry) ShareURL() string {
	return ShareURL(e.Server, e.UniqueCode)
}

// ShareURL builds "<site>/s/<code>" from an API root. A trailing "/api"
// segment is dropped because share links live on the site, not the API.
func ShareURL(server, code string) string {
	site := strings.TrimRight(server, "/")
	site = strings.TrimSuffix(site, "/api")

	return site + "/s/" + code
}

// Store is the upload ledger. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the ledger at dbPath and migrates it.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	// Parallel uploads record concurrently; one connection serializes writes.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a completed upload and returns the saved entry.
func (s *Store) Record(
	ctx context.Context, server, localPath string, mode api.UploadMode, f *api.UploadedFile,
) (*Entry, error) {
	e := &Entry{
		Server:       server,
		LocalPath:    localPath,
		FileID:       f.ID,
		Filename:     f.Filename,
		OriginalName: f.OriginalFilename,
		MimeType:     f.MimeType,
		Size:         f.FileSize,
		UniqueCode:   f.UniqueCode,
		UploadMode:   mode,
		UploadedAt:   s.now().UTC(),
	}

	if e.UploadMode == "" {
		e.UploadMode = api.UploadModeFile
	}

	if f.ExpireAt != nil {
		e.ExpireAt = f.ExpireAt.Time
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (server, local_path, file_id, filename, original_name, mime_type,
			size, unique_code, upload_mode, expire_at, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Server, e.LocalPath, e.FileID, e.Filename, e.OriginalName, nullString(e.MimeType),
		e.Size, e.UniqueCode, string(e.UploadMode), nullUnixNano(e.ExpireAt), e.UploadedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("history: recording %s: %w", localPath, err)
	}

	if e.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("history: reading row id: %w", err)
	}

	s.logger.Debug("recorded upload",
		slog.String("path", localPath),
		slog.String("unique_code", e.UniqueCode),
	)

	return e, nil
}

// List returns the most recent uploads for server, newest first. An empty
// server lists every server.
func (s *Store) List(ctx context.Context, server string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, server, local_path, file_id, filename, original_name, mime_type,
			size, unique_code, upload_mode, expire_at, uploaded_at
		FROM uploads
		WHERE ? = '' OR server = ?
		ORDER BY uploaded_at DESC, id DESC
		LIMIT ?`,
		server, server, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: listing uploads: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e        Entry
			mimeType sql.NullString
			mode     string
			expireAt sql.NullInt64
			uploaded int64
		)

		if err := rows.Scan(&e.ID, &e.Server, &e.LocalPath, &e.FileID, &e.Filename, &e.OriginalName,
			&mimeType, &e.Size, &e.UniqueCode, &mode, &expireAt, &uploaded); err != nil {
			return nil, fmt.Errorf("history: scanning upload row: %w", err)
		}

		e.MimeType = mimeType.String
		e.UploadMode = api.UploadMode(mode)
		e.UploadedAt = time.Unix(0, uploaded).UTC()

		if expireAt.Valid {
			e.ExpireAt = time.Unix(0, expireAt.Int64).UTC()
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating upload rows: %w", err)
	}

	return entries, nil
}

// Uploaded reports whether localPath was already uploaded to server.
// The watch command uses it to skip files seen in a previous run.
func (s *Store) Uploaded(ctx context.Context, server, localPath string) (bool, error) {
	var n int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM uploads WHERE server = ? AND local_path = ?`,
		server, localPath,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("history: checking %s: %w", localPath, err)
	}

	return n > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: s, Valid: true}
}

func nullUnixNano(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
