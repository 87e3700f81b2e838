package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pickoala/pickoala-cli/internal/api"
	"github.com/pickoala/pickoala-cli/internal/history"
	"github.com/pickoala/pickoala-cli/internal/upload"
)

// Per-upload flags shared by put and watch.
var (
	flagMode          string
	flagPassword      string
	flagDownloadLimit int
	flagExpireDays    int
	flagParallel      int
)

// putResult is the JSON schema for one file of `put --json`.
type putResult struct {
	Path       string `json:"path"`
	Name       string `json:"name,omitempty"`
	Size       int64  `json:"size,omitempty"`
	UniqueCode string `json:"unique_code,omitempty"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// uploader runs chunked uploads of local files and records them in the
// history ledger.
type uploader struct {
	engine   *upload.Engine
	history  *history.Store // nil when the ledger could not be opened
	server   string
	opts     upload.Options
	progress *progressReporter
	logger   *slog.Logger
}

// newUploader wires an engine from resolvedCfg. The history ledger is
// optional: a failure to open it is logged and uploads proceed without it.
func newUploader(ctx context.Context, cc *CLIContext, progress *progressReporter) (*uploader, error) {
	opts, err := uploadOptionsFromFlags()
	if err != nil {
		return nil, err
	}

	var resume *upload.ResumeStore
	if dir := resolvedCfg.ResumeDir(); dir != "" {
		resume = upload.NewResumeStore(dir, cc.Logger)
	}

	engine := upload.NewEngine(cc.Client, upload.Config{
		ChunkSize: resolvedCfg.ChunkSize,
		Retry: upload.RetryPolicy{
			MaxRetries: resolvedCfg.MaxRetries,
			Backoff:    upload.DefaultBackoff,
		},
		Resume:  resume,
		Server:  resolvedCfg.ServerURL,
		Metrics: appMetrics,
	}, cc.Logger)

	if err := engine.ValidateOptions(opts); err != nil {
		return nil, err
	}

	u := &uploader{
		engine:   engine,
		server:   resolvedCfg.ServerURL,
		opts:     opts,
		progress: progress,
		logger:   cc.Logger,
	}

	hist, err := history.Open(ctx, resolvedCfg.HistoryPath(), cc.Logger)
	if err != nil {
		cc.Logger.Warn("upload history unavailable", slog.String("error", err.Error()))
	} else {
		u.history = hist
	}

	return u, nil
}

// Close releases the history ledger.
func (u *uploader) Close() {
	if u.history != nil {
		if err := u.history.Close(); err != nil {
			u.logger.Debug("closing history", slog.String("error", err.Error()))
		}
	}
}

// uploadOptionsFromFlags maps put/watch flags onto engine options. Zero
// limits leave the server defaults.
func uploadOptionsFromFlags() (upload.Options, error) {
	modeName := flagMode
	if modeName == "" {
		modeName = resolvedCfg.UploadMode
	}

	mode, ok := api.ParseUploadMode(modeName)
	if !ok {
		return upload.Options{}, fmt.Errorf("invalid upload mode %q: must be file, image, or video", modeName)
	}

	opts := upload.Options{Mode: mode, Password: flagPassword}

	if flagDownloadLimit != 0 {
		limit := flagDownloadLimit
		opts.DownloadLimit = &limit
	}

	if flagExpireDays != 0 {
		days := flagExpireDays
		opts.ExpireDays = &days
	}

	return opts, nil
}

// uploadPath uploads one local file. The returned result always carries the
// path; Error is set when err is non-nil.
func (u *uploader) uploadPath(ctx context.Context, path string) (putResult, error) {
	res := putResult{Path: path}

	src, f, err := upload.OpenFile(path)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	defer f.Close()

	opts := u.opts
	if u.progress != nil {
		opts.Progress = u.progress.Func(path)
	}

	opts.OnRetry = func(chunk, attempt int, err error) {
		u.logger.Info("retrying chunk",
			slog.String("path", path),
			slog.Int("chunk", chunk),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	file, err := u.engine.Upload(ctx, src, opts)
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("%s: %w", path, err)
	}

	res.Name = file.OriginalFilename
	res.Size = file.FileSize
	res.UniqueCode = file.UniqueCode
	res.URL = history.ShareURL(u.server, file.UniqueCode)

	if u.history != nil {
		if _, recErr := u.history.Record(context.WithoutCancel(ctx), u.server, src.Key, opts.Mode, file); recErr != nil {
			u.logger.Warn("recording upload failed", slog.String("path", path), slog.String("error", recErr.Error()))
		}
	}

	return res, nil
}

// alreadyUploaded reports whether path is in the history ledger for this
// server. Without a ledger nothing counts as uploaded.
func (u *uploader) alreadyUploaded(ctx context.Context, path string) bool {
	if u.history == nil {
		return false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	ok, err := u.history.Uploaded(ctx, u.server, abs)
	if err != nil && !errors.Is(err, context.Canceled) {
		u.logger.Warn("history lookup failed", slog.String("path", path), slog.String("error", err.Error()))
	}

	return ok
}
