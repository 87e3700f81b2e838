package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickoala/pickoala-cli/internal/config"
)

func TestDueFiles(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	pending := map[string]time.Time{
		"/w/b.png": now.Add(-3 * time.Second),
		"/w/a.png": now.Add(-2 * time.Second),
		"/w/c.png": now.Add(-time.Second),
	}

	assert.Equal(t, []string{"/w/a.png", "/w/b.png"}, dueFiles(pending, now, 2*time.Second))
	assert.Empty(t, dueFiles(pending, now, time.Minute))
}

func TestIgnoredName(t *testing.T) {
	for _, name := range []string{".DS_Store", "photo.jpg~", "movie.mp4.part", "x.crdownload", "a.TMP", ".a.swp"} {
		assert.True(t, ignoredName(name), name)
	}

	for _, name := range []string{"photo.jpg", "notes.txt", "archive.tar.gz"} {
		assert.False(t, ignoredName(name), name)
	}
}

func TestDirWatcher_Observe(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	dw := &dirWatcher{pending: map[string]time.Time{}, now: func() time.Time { return now }}

	dw.observe(fsnotify.Event{Name: "/w/a.png", Op: fsnotify.Create})
	dw.observe(fsnotify.Event{Name: "/w/.hidden", Op: fsnotify.Create})
	dw.observe(fsnotify.Event{Name: "/w/b.png", Op: fsnotify.Chmod})
	assert.Equal(t, map[string]time.Time{"/w/a.png": now}, dw.pending)

	dw.observe(fsnotify.Event{Name: "/w/a.png", Op: fsnotify.Remove})
	assert.Empty(t, dw.pending)
}

func TestDirWatcher_UploadsSettledFilesOnce(t *testing.T) {
	testEnv(t)
	srv := newFakeServer(t, 10)

	newRootCmd()

	resolvedCfg = &config.Resolved{
		DataDir:         t.TempDir(),
		ServerURL:       srv.APIRoot(),
		Locale:          "en",
		ChunkSize:       1 << 20,
		MaxRetries:      0,
		ParallelUploads: 2,
		UploadMode:      "file",
		LogLevel:        "error",
		LogFormat:       "text",
		ConnectTimeout:  time.Second,
	}
	t.Cleanup(func() { resolvedCfg = nil })

	cc, err := newCLIContext(t.Context())
	require.NoError(t, err)
	defer cc.Close()

	up, err := newUploader(t.Context(), cc, nil)
	require.NoError(t, err)
	defer up.Close()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", 25)

	events := make(chan fsnotify.Event)
	errs := make(chan error)

	dw := &dirWatcher{
		up:      up,
		events:  events,
		errors:  errs,
		settle:  20 * time.Millisecond,
		pending: make(map[string]time.Time),
		logger:  cc.Logger,
		now:     time.Now,
	}

	done := make(chan error, 1)

	go func() { done <- dw.run(t.Context()) }()

	events <- fsnotify.Event{Name: path, Op: fsnotify.Create}

	require.Eventually(t, func() bool {
		entries, listErr := up.history.List(t.Context(), srv.APIRoot(), 0)
		return listErr == nil && len(entries) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Changing an already uploaded file does not upload it again.
	writeFile(t, dir, "a.txt", 40)
	events <- fsnotify.Event{Name: path, Op: fsnotify.Write}
	events <- fsnotify.Event{Name: filepath.Join(dir, "gone.txt"), Op: fsnotify.Create}

	time.Sleep(100 * time.Millisecond)

	close(events)
	require.NoError(t, <-done)

	assert.Equal(t, 1, srv.completeCount())
	assert.Len(t, srv.chunksFor("up-1"), 3)
}

func TestDirWatcher_QueueExisting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", 1)
	writeFile(t, dir, ".hidden", 1)

	now := time.Now()
	dw := &dirWatcher{pending: map[string]time.Time{}, settle: time.Second, now: func() time.Time { return now }}

	require.NoError(t, dw.queueExisting(dir))
	assert.Equal(t, []string{filepath.Join(dir, "a.txt")}, dueFiles(dw.pending, now, time.Second))
}

func TestWatchHelp_DescribesPathBasedSkip(t *testing.T) {
	long := newWatchCmd().Long

	assert.Contains(t, long, "upload each new file")
	assert.NotContains(t, long, "changed file")
	assert.Contains(t, long, "does not upload it again")
}
