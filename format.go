package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// isTerminal reports whether fd is an interactive terminal.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
func formatSize(bytes int64) string {
	switch {
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	now := time.Now()

	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// progressReporter renders per-file upload progress. On a terminal a single
// file redraws one line in place; otherwise each file reports when it
// crosses a quarter mark, which keeps logs and parallel uploads readable.
type progressReporter struct {
	mu      sync.Mutex
	w       io.Writer
	inPlace bool
}

func newProgressReporter(w io.Writer, terminal bool, files int) *progressReporter {
	return &progressReporter{
		w:       w,
		inPlace: terminal && files == 1,
	}
}

// quarterMark tracks the last reported percentage of one upload.
type quarterMark struct {
	seen bool
	prev int
}

// Func returns the Progress callback for one upload of path. Every call
// starts a fresh quarter-mark state, so uploads sharing a file name (or the
// same path uploaded twice) never suppress each other's lines.
func (p *progressReporter) Func(path string) func(percent int) {
	name := filepath.Base(path)
	mark := &quarterMark{}

	return func(percent int) {
		p.report(name, mark, percent)
	}
}

func (p *progressReporter) report(name string, mark *quarterMark, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inPlace {
		fmt.Fprintf(p.w, "\rUploading %s: %3d%%", name, percent)

		if percent >= 100 {
			fmt.Fprintln(p.w)
		}

		return
	}

	const step = 25

	if mark.seen && percent/step == mark.prev/step {
		return
	}

	mark.seen, mark.prev = true, percent
	fmt.Fprintf(p.w, "Uploading %s: %d%%\n", name, percent)
}
