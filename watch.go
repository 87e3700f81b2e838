package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// defaultSettle is how long a file must go without writes before upload.
const defaultSettle = 2 * time.Second

var (
	flagSettle   time.Duration
	flagExisting bool
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload files as they appear in a directory",
		Long: `Watch a directory and upload each new file once it has stopped
changing. A path already in the upload history for this server is skipped,
so editing a file after it was uploaded does not upload it again. Runs
until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	addUploadFlags(cmd)
	cmd.Flags().DurationVar(&flagSettle, "settle", defaultSettle, "quiet period before a changed file is uploaded")
	cmd.Flags().BoolVar(&flagExisting, "existing", false, "also upload files already in the directory")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]

	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stating watch directory: %w", err)
	}

	if !fi.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}

	cc, err := newCLIContext(cmd.Context())
	if err != nil {
		return err
	}
	defer cc.Close()

	if err := cc.requireLogin(); err != nil {
		cc.Logger.Info("watching as guest", slog.String("reason", err.Error()))
	}

	ctx := shutdownContext(cmd.Context(), cc)

	var progress *progressReporter
	if !flagQuiet && !flagJSON {
		progress = newProgressReporter(os.Stderr, false, parallelUploads())
	}

	up, err := newUploader(ctx, cc, progress)
	if err != nil {
		return err
	}
	defer up.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	dw := &dirWatcher{
		up:      up,
		events:  w.Events,
		errors:  w.Errors,
		settle:  flagSettle,
		pending: make(map[string]time.Time),
		logger:  cc.Logger,
		now:     time.Now,
	}

	if flagExisting {
		if err := dw.queueExisting(dir); err != nil {
			return err
		}
	}

	cc.Statusf("Watching %s (Ctrl-C to stop)\n", dir)

	return dw.run(ctx)
}

// dirWatcher turns filesystem events into uploads. A path is uploaded once
// no event has touched it for the settle period.
type dirWatcher struct {
	up      *uploader
	events  <-chan fsnotify.Event
	errors  <-chan error
	settle  time.Duration
	pending map[string]time.Time
	logger  *slog.Logger
	now     func() time.Time
}

func (dw *dirWatcher) run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(parallelUploads())

	tick := dw.settle / 2
	if tick <= 0 {
		tick = time.Second
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait() //nolint:errcheck // workers log their own failures
			return nil
		case ev, ok := <-dw.events:
			if !ok {
				_ = g.Wait() //nolint:errcheck // workers log their own failures
				return nil
			}

			dw.observe(ev)
		case err, ok := <-dw.errors:
			if !ok {
				dw.errors = nil
				continue
			}

			dw.logger.Warn("watch error", slog.String("error", err.Error()))
		case <-ticker.C:
			dw.dispatch(ctx, &g)
		}
	}
}

// observe records activity on created or written files.
func (dw *dirWatcher) observe(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			delete(dw.pending, ev.Name)
		}

		return
	}

	if ignoredName(filepath.Base(ev.Name)) {
		return
	}

	dw.pending[ev.Name] = dw.now()
}

// dispatch starts uploads for settled paths. A path that finds every worker
// busy stays pending and is retried on the next tick.
func (dw *dirWatcher) dispatch(ctx context.Context, g *errgroup.Group) {
	for _, path := range dueFiles(dw.pending, dw.now(), dw.settle) {
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			delete(dw.pending, path)
			continue
		}

		if dw.up.alreadyUploaded(ctx, path) {
			dw.logger.Debug("already uploaded, skipping", slog.String("path", path))
			delete(dw.pending, path)

			continue
		}

		started := g.TryGo(func() error {
			res, err := dw.up.uploadPath(ctx, path)
			if err != nil {
				dw.logger.Error("upload failed", slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}

			fmt.Printf("%s\t%s\n", res.Path, res.URL)

			return nil
		})
		if !started {
			return
		}

		delete(dw.pending, path)
	}
}

// queueExisting marks regular files already in dir as settled.
func (dw *dirWatcher) queueExisting(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}

	settled := dw.now().Add(-dw.settle)

	for _, e := range entries {
		if e.Type().IsRegular() && !ignoredName(e.Name()) {
			dw.pending[filepath.Join(dir, e.Name())] = settled
		}
	}

	return nil
}

// dueFiles returns the pending paths untouched for at least settle, sorted
// for a stable upload order.
func dueFiles(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var due []string

	for path, last := range pending {
		if now.Sub(last) >= settle {
			due = append(due, path)
		}
	}

	slices.Sort(due)

	return due
}

// ignoredName skips hidden files and common editor or download temporaries.
func ignoredName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return true
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".tmp", ".part", ".crdownload", ".swp":
		return true
	}

	return false
}
