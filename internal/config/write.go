package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by WriteDefault when a config file is present.
var ErrConfigExists = errors.New("config: file already exists")

// configTemplate lists every setting as a commented-out default so users can
// discover each option without reading docs.
const configTemplate = `# pickoala configuration
# Uncomment and modify to override defaults.

[server]
# API root of the pickoala server
# url = "http://localhost:8000/api"

# Notification language (en, zh-Hans)
# locale = "en"

# Display zone for timestamps; empty uses the server's site_timezone
# timezone = ""

[transfers]
# Preferred chunk size; the server may choose a different one
# chunk_size = "20MiB"

# Retries per chunk before the upload is aborted
# max_retries = 3

# Files uploaded at once by put and watch
# parallel_uploads = 2

# Storage mode: file, image, video
# upload_mode = "file"

# Continue interrupted uploads from the last acknowledged chunk
# resume = true

[logging]
# Verbosity: debug, info, warn, error
# log_level = "info"

# Output format: auto, text, json
# log_format = "auto"

[network]
# Dial timeout for API connections
# connect_timeout = "10s"

# user_agent = ""
`

// WriteDefault creates a commented config file at path. An existing file is
// never overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	slog.Info("creating config file", slog.String("path", path))

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temp file in the target directory, then
// renames it over path so readers never see a partial file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
