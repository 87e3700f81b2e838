package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/language"
)

// Validation range constants.
const (
	maxRetries         = 10
	minParallelUploads = 1
	maxParallelUploads = 16
	minConnectTimeout  = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	errs = append(errs, validateServerURL(s.URL)...)

	if s.Locale != "" {
		if _, err := language.Parse(s.Locale); err != nil {
			errs = append(errs, fmt.Errorf("locale: invalid language tag %q: %w", s.Locale, err))
		}
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: unknown zone %q: %w", s.Timezone, err))
		}
	}

	return errs
}

func validateServerURL(raw string) []error {
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("url: %w", err)}
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []error{fmt.Errorf("url: must be an absolute http or https URL, got %q", raw)}
	}

	return nil
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	errs = append(errs, validateChunkSize(t.ChunkSize)...)

	if t.MaxRetries < 0 || t.MaxRetries > maxRetries {
		errs = append(errs, fmt.Errorf("max_retries: must be between 0 and %d, got %d",
			maxRetries, t.MaxRetries))
	}

	if t.ParallelUploads < minParallelUploads || t.ParallelUploads > maxParallelUploads {
		errs = append(errs, fmt.Errorf("parallel_uploads: must be between %d and %d, got %d",
			minParallelUploads, maxParallelUploads, t.ParallelUploads))
	}

	if !validUploadModes[t.UploadMode] {
		errs = append(errs, fmt.Errorf("upload_mode: must be one of file, image, video; got %q", t.UploadMode))
	}

	return errs
}

func validateChunkSize(s string) []error {
	if _, err := ParseChunkSize(s); err != nil {
		return []error{fmt.Errorf("chunk_size: %w", err)}
	}

	return nil
}

var validUploadModes = map[string]bool{
	"file":  true,
	"image": true,
	"video": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := time.ParseDuration(n.ConnectTimeout)
	if err != nil {
		return []error{fmt.Errorf("connect_timeout: invalid duration %q: %w", n.ConnectTimeout, err)}
	}

	if d < minConnectTimeout {
		return []error{fmt.Errorf("connect_timeout: must be >= %s, got %s", minConnectTimeout, d)}
	}

	return nil
}
