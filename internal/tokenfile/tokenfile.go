// Package tokenfile persists the session's access/refresh token pair. A token
// file is bound to the server it was issued by, so pointing the CLI at a
// different server never sends it foreign credentials. Leaf package: imported
// by session/ and by the CLI's status output.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the data directory.
const DirPerms = 0o700

// ErrServerMismatch is returned by Load when the file belongs to another server.
var ErrServerMismatch = errors.New("tokenfile: token was issued by a different server")

// File is the on-disk format. Token carries the access token, the refresh
// token, and the access token expiry when known. Meta caches display data
// (username, role) so status output works offline.
type File struct {
	Server string            `json:"server"`
	Token  *oauth2.Token     `json:"token"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// Load reads a token file for server. Returns (nil, nil) if the file does not
// exist. A file issued by a different server yields ErrServerMismatch; an
// empty server argument accepts any file.
func Load(path, server string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	if server != "" && tf.Server != "" && tf.Server != server {
		return nil, fmt.Errorf("%w: %s (file) vs %s", ErrServerMismatch, tf.Server, server)
	}

	return &tf, nil
}

// Save writes a token file atomically (write-to-temp + rename) with 0600
// permissions. Never logs token values.
func Save(path string, tf *File) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Delete removes the token file. A missing file is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return nil
}

// MergeMeta reads the token file, merges new metadata keys (new keys
// overwrite existing), and saves. Returns an error if no token file exists.
func MergeMeta(path string, meta map[string]string) error {
	tf, err := Load(path, "")
	if err != nil {
		return fmt.Errorf("reading token for metadata update: %w", err)
	}

	if tf == nil {
		return fmt.Errorf("no token file at %s", path)
	}

	if tf.Meta == nil {
		tf.Meta = make(map[string]string, len(meta))
	}

	maps.Copy(tf.Meta, meta)

	return Save(path, tf)
}
