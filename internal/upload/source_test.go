package upload

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDetectMIME_Content(t *testing.T) {
	src := memSource("no-extension", pngHeader)
	assert.Equal(t, "image/png", detectMIME(src))
}

func TestDetectMIME_ExtensionFallback(t *testing.T) {
	src := memSource("notes.json", []byte("not really json"))
	assert.Equal(t, "application/json", detectMIME(src))
}

func TestDetectMIME_EmptyUnknown(t *testing.T) {
	assert.Equal(t, octetStream, detectMIME(memSource("blob", nil)))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	src, f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "photo.png", src.Name)
	assert.Equal(t, int64(len(pngHeader)), src.Size)
	assert.Equal(t, path, src.Key)
}

func TestOpenFile_Directory(t *testing.T) {
	_, _, err := OpenFile(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
}

func TestFingerprint_ContentSensitive(t *testing.T) {
	a, err := fingerprint(memSource("a", []byte("hello")))
	require.NoError(t, err)

	b, err := fingerprint(memSource("b", []byte("hello")))
	require.NoError(t, err)

	c, err := fingerprint(Source{Name: "c", Size: 5, Content: bytes.NewReader([]byte("hellO"))})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
