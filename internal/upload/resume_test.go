package upload

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickoala/pickoala-cli/internal/api"
)

const testServer = "https://img.example.com/api"

func TestResumeStore_SaveLoadDelete(t *testing.T) {
	store := NewResumeStore(t.TempDir(), nil)

	rec := &ResumeRecord{
		Server: testServer, Key: "/tmp/a.bin", UploadID: "u-1",
		ChunkSize: 10, TotalChunks: 3, FileSize: 25, Fingerprint: "ff",
	}
	require.NoError(t, store.Save(rec))

	got, err := store.Load(testServer, "/tmp/a.bin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.UploadID)
	assert.False(t, got.CreatedAt.IsZero())

	other, err := store.Load("https://other.example.com/api", "/tmp/a.bin")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.Delete(testServer, "/tmp/a.bin"))
	require.NoError(t, store.Delete(testServer, "/tmp/a.bin"))

	got, err = store.Load(testServer, "/tmp/a.bin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResumeStore_CorruptRecordDeleted(t *testing.T) {
	dir := t.TempDir()
	store := NewResumeStore(dir, nil)

	path := filepath.Join(dir, ResumeSubdir, recordName(testServer, "k"))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	_, err := store.Load(testServer, "k")
	require.ErrorIs(t, err, ErrCorruptRecord)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestResumeStore_CleanStale(t *testing.T) {
	dir := t.TempDir()
	store := NewResumeStore(dir, nil)

	require.NoError(t, store.Save(&ResumeRecord{Server: testServer, Key: "old"}))
	require.NoError(t, store.Save(&ResumeRecord{Server: testServer, Key: "new"}))

	oldPath := filepath.Join(dir, ResumeSubdir, recordName(testServer, "old"))
	past := time.Now().Add(-2 * StaleRecordAge)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	n, err := store.CleanStale(StaleRecordAge)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Load(testServer, "new")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRecordName_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t, recordName("a:", "b"), recordName("a", ":b"))
}

func resumableEngine(t *testing.T, fake *fakeAPI) (*Engine, *ResumeStore) {
	t.Helper()

	store := NewResumeStore(t.TempDir(), nil)
	e, _ := newTestEngine(t, fake, Config{Resume: store, Server: testServer})

	return e, store
}

func TestUpload_ResumeSkipsUploadedChunks(t *testing.T) {
	data := pattern(45)
	src := memSource("a.bin", data)
	src.Key = "/data/a.bin"

	// First run dies at chunk 3.
	first := newFakeAPI(10)
	first.chunkErr = func(index, _ int) error {
		if index == 3 {
			return &api.HTTPError{StatusCode: http.StatusBadRequest, Err: api.ErrBadRequest}
		}

		return nil
	}

	e, store := resumableEngine(t, first)

	_, err := e.Upload(t.Context(), src, Options{})
	require.ErrorIs(t, err, ErrUploadAborted)

	rec, err := store.Load(testServer, src.Key)
	require.NoError(t, err)
	require.NotNil(t, rec, "record kept after abort")
	assert.Equal(t, 5, rec.TotalChunks)

	// Second run: server reports chunks 0-2 held.
	second := newFakeAPI(10)
	second.status = []int{0, 1, 2}
	e.api = second

	var progress []int

	_, err = e.Upload(t.Context(), src, Options{Progress: func(p int) { progress = append(progress, p) }})
	require.NoError(t, err)

	assert.Empty(t, second.initReqs, "no new session")
	assert.Equal(t, []string{"u-1"}, second.statusIDs)
	assert.Equal(t, []int{3, 4}, second.order)
	assert.Equal(t, []int{20, 40, 60, 80, 100}, progress, "skipped chunks still report progress")

	rec, err = store.Load(testServer, src.Key)
	require.NoError(t, err)
	assert.Nil(t, rec, "record deleted on completion")
}

func TestUpload_ResumeStatusNotFoundStartsFresh(t *testing.T) {
	src := memSource("a.bin", pattern(25))
	src.Key = "/data/a.bin"

	fake := newFakeAPI(10)
	fake.statusErr = &api.HTTPError{StatusCode: http.StatusNotFound, Err: api.ErrNotFound}

	e, store := resumableEngine(t, fake)

	fp, err := fingerprint(src)
	require.NoError(t, err)
	require.NoError(t, store.Save(&ResumeRecord{
		Server: testServer, Key: src.Key, UploadID: "expired",
		ChunkSize: 10, TotalChunks: 3, FileSize: 25, Fingerprint: fp,
	}))

	_, err = e.Upload(t.Context(), src, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"expired"}, fake.statusIDs)
	assert.Len(t, fake.initReqs, 1)
	assert.Equal(t, []int{0, 1, 2}, fake.order)
}

func TestUpload_ResumeIgnoresChangedFile(t *testing.T) {
	src := memSource("a.bin", pattern(25))
	src.Key = "/data/a.bin"

	fake := newFakeAPI(10)
	e, store := resumableEngine(t, fake)

	require.NoError(t, store.Save(&ResumeRecord{
		Server: testServer, Key: src.Key, UploadID: "old",
		ChunkSize: 10, TotalChunks: 3, FileSize: 25, Fingerprint: "0000000000000000",
	}))

	_, err := e.Upload(t.Context(), src, Options{})
	require.NoError(t, err)
	assert.Empty(t, fake.statusIDs)
	assert.Len(t, fake.initReqs, 1)
}
