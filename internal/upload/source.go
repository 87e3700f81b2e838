package upload

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gabriel-vasile/mimetype"
)

const (
	octetStream = "application/octet-stream"

	// sniffLen is how much of the file content detection reads.
	sniffLen = 3072
)

// Source is the file being uploaded. Content must support random access so
// a failed chunk can be re-read.
type Source struct {
	Name     string
	Size     int64
	MimeType string // "" = detect from content, then extension
	Content  io.ReaderAt

	// Key identifies the file across runs for resume, usually its absolute
	// path. Empty disables resume for this upload.
	Key string
}

// OpenFile opens path for upload. The caller closes the returned file.
func OpenFile(path string) (Source, *os.File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, nil, fmt.Errorf("upload: resolving %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return Source{}, nil, fmt.Errorf("upload: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Source{}, nil, fmt.Errorf("upload: stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		f.Close()
		return Source{}, nil, fmt.Errorf("upload: %s is not a regular file", path)
	}

	return Source{
		Name:    info.Name(),
		Size:    info.Size(),
		Content: f,
		Key:     abs,
	}, f, nil
}

// detectMIME sniffs the content type. A generic content match (plain text
// or octet-stream) defers to the file extension.
func detectMIME(src Source) string {
	detected := octetStream

	if src.Size > 0 {
		r := io.NewSectionReader(src.Content, 0, min(src.Size, sniffLen))
		if m, err := mimetype.DetectReader(r); err == nil {
			detected = stripParams(m.String())
		}
	}

	if detected != octetStream && detected != "text/plain" {
		return detected
	}

	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(src.Name))); byExt != "" {
		return stripParams(byExt)
	}

	return detected
}

func stripParams(mt string) string {
	base, _, _ := strings.Cut(mt, ";")

	return strings.TrimSpace(base)
}

// fingerprint hashes the whole content with xxhash. It ties a resume record
// to the exact bytes uploaded before.
func fingerprint(src Source) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, io.NewSectionReader(src.Content, 0, src.Size)); err != nil {
		return "", fmt.Errorf("upload: fingerprinting %s: %w", src.Name, err)
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}
