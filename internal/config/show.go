package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated summary
// to w. This powers "config show", exposing the values that remain after
// every override layer has been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (%s)\n\n", r.ConfigPath)

	ew.printf("[server]\n")
	ew.printf("  url      = %q\n", r.ServerURL)
	ew.printf("  locale   = %q\n", r.Locale)

	if r.Timezone != "" {
		ew.printf("  timezone = %q\n", r.Timezone)
	}

	ew.printf("\n[transfers]\n")
	ew.printf("  chunk_size       = %q\n", FormatSize(r.ChunkSize))
	ew.printf("  max_retries      = %d\n", r.MaxRetries)
	ew.printf("  parallel_uploads = %d\n", r.ParallelUploads)
	ew.printf("  upload_mode      = %q\n", r.UploadMode)
	ew.printf("  resume           = %t\n", r.Resume)

	ew.printf("\n[logging]\n")
	ew.printf("  log_level  = %q\n", r.LogLevel)
	ew.printf("  log_format = %q\n", r.LogFormat)

	ew.printf("\n[network]\n")
	ew.printf("  connect_timeout = %q\n", r.ConnectTimeout.String())

	if r.UserAgent != "" {
		ew.printf("  user_agent      = %q\n", r.UserAgent)
	}

	ew.printf("\n# data_dir = %q\n", r.DataDir)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
