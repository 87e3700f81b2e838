// Package upload implements the chunked upload protocol: init, strictly
// sequential chunk transfer with bounded linear-backoff retry, and complete.
// One Engine may run many uploads concurrently; each Upload call is an
// independent state machine.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pickoala/pickoala-cli/internal/api"
	"github.com/pickoala/pickoala-cli/internal/metrics"
)

// ChunkAPI is the slice of the API client the engine drives. *api.Client
// satisfies it.
type ChunkAPI interface {
	InitChunkUpload(ctx context.Context, req api.ChunkInitRequest) (*api.ChunkInitResponse, error)
	ChunkStatus(ctx context.Context, uploadID string) (*api.ChunkStatus, error)
	UploadChunk(ctx context.Context, uploadID string, index int, data []byte, quiet bool) (*api.ChunkAck, error)
	CompleteChunkUpload(ctx context.Context, req api.CompleteRequest) (*api.UploadedFile, error)
}

// Config tunes an Engine. Zero values select defaults.
type Config struct {
	ChunkSize int64       // client estimate for total_chunks; server value wins
	Retry     RetryPolicy // zero = DefaultRetryPolicy
	Resume    *ResumeStore
	Server    string // binds resume records to one API root
	Metrics   *metrics.Metrics
}

// Options configures one upload. Nil pointers leave the server defaults.
type Options struct {
	Mode          api.UploadMode `validate:"omitempty,oneof=file image video"`
	Password      string
	DownloadLimit *int `validate:"omitnil,min=1"`
	ExpireDays    *int `validate:"omitnil,min=1"`

	// Progress receives round((i+1)/total*100) after every chunk, uploaded
	// or skipped, on the uploading goroutine.
	Progress func(percent int)
	// OnStateChange observes every state transition.
	OnStateChange func(State)
	// OnRetry fires before the wait preceding a chunk retry. attempt is the
	// 1-based attempt that just failed.
	OnRetry func(chunk, attempt int, err error)
}

// Engine runs chunked uploads. Safe for concurrent use.
type Engine struct {
	api       ChunkAPI
	chunkSize int64
	retry     RetryPolicy
	resume    *ResumeStore
	server    string
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validate  *validator.Validate

	// sleepFunc waits between chunk retries. Tests replace it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine over c.
func NewEngine(c ChunkAPI, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	retry := cfg.Retry
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy()
	}

	return &Engine{
		api:       c,
		chunkSize: chunkSize,
		retry:     retry.normalized(),
		resume:    cfg.Resume,
		server:    cfg.Server,
		metrics:   cfg.Metrics,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		sleepFunc: timeSleep,
	}
}

// ValidateOptions checks opts without uploading.
func (e *Engine) ValidateOptions(opts Options) error {
	if err := e.validate.Struct(opts); err != nil {
		return fmt.Errorf("upload: invalid options: %w", err)
	}

	return nil
}

// Upload sends src through the chunk protocol and returns the stored file.
// Any unrecoverable failure returns an *AbortError wrapping
// ErrUploadAborted. No server cleanup is attempted on abort.
func (e *Engine) Upload(ctx context.Context, src Source, opts Options) (*api.UploadedFile, error) {
	if err := e.ValidateOptions(opts); err != nil {
		return nil, err
	}

	if src.Content == nil {
		return nil, errors.New("upload: source has no content")
	}

	if src.Size < 0 {
		return nil, fmt.Errorf("upload: negative size for %s", src.Name)
	}

	if opts.Mode == "" {
		opts.Mode = api.UploadModeFile
	}

	r := &run{
		e:      e,
		src:    src,
		opts:   opts,
		state:  StateIdle,
		logger: e.logger.With(slog.String("file", src.Name)),
	}

	f, err := r.execute(ctx)
	if err != nil {
		outcome := metrics.OutcomeAborted
		if ctx.Err() != nil {
			outcome = metrics.OutcomeCanceled
		}

		e.metrics.ObserveUpload(outcome)

		return nil, err
	}

	e.metrics.ObserveUpload(metrics.OutcomeCompleted)

	return f, nil
}

// session is the server side of one upload.
type session struct {
	uploadID string
	plan     Plan
	uploaded map[int]bool
	resumed  bool
}

// run is the state of a single Upload call.
type run struct {
	e      *Engine
	src    Source
	opts   Options
	state  State
	logger *slog.Logger

	fingerprint string
}

func (r *run) execute(ctx context.Context) (*api.UploadedFile, error) {
	r.transition(StateInitializing)

	sess, err := r.prepare(ctx)
	if err != nil {
		return nil, r.abort(StageInit, -1, 1, err)
	}

	r.transition(StateUploading)

	if err := r.sendChunks(ctx, sess); err != nil {
		return nil, err
	}

	r.transition(StateCompleting)

	f, err := r.e.api.CompleteChunkUpload(ctx, r.completeRequest(sess.uploadID))
	if err != nil {
		return nil, r.abort(StageComplete, -1, 1, err)
	}

	r.forget()
	r.transition(StateDone)

	r.logger.Info("upload complete",
		slog.String("upload_id", sess.uploadID),
		slog.Int64("id", f.ID),
		slog.String("unique_code", f.UniqueCode),
		slog.Int("chunks", sess.plan.TotalChunks),
	)

	return f, nil
}

// prepare resumes a recorded session when possible, otherwise opens a new
// one.
func (r *run) prepare(ctx context.Context) (*session, error) {
	if sess := r.tryResume(ctx); sess != nil {
		return sess, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	mimeType := r.src.MimeType
	if mimeType == "" {
		mimeType = detectMIME(r.src)
	}

	estimate, err := NewPlan(r.src.Size, r.e.chunkSize)
	if err != nil {
		return nil, err
	}

	resp, err := r.e.api.InitChunkUpload(ctx, api.ChunkInitRequest{
		Filename:    r.src.Name,
		FileSize:    r.src.Size,
		MimeType:    mimeType,
		TotalChunks: estimate.TotalChunks,
		UploadMode:  r.opts.Mode,
	})
	if err != nil {
		return nil, err
	}

	chunkSize := resp.ChunkSize
	if chunkSize <= 0 {
		chunkSize = r.e.chunkSize
	}

	plan, err := NewPlan(r.src.Size, chunkSize)
	if err != nil {
		return nil, err
	}

	if plan.TotalChunks != estimate.TotalChunks {
		r.logger.Debug("server chunk size changed chunk count",
			slog.Int64("chunk_size", chunkSize),
			slog.Int("estimated", estimate.TotalChunks),
			slog.Int("total_chunks", plan.TotalChunks),
		)
	}

	r.remember(resp.UploadID, plan)

	return &session{uploadID: resp.UploadID, plan: plan, uploaded: map[int]bool{}}, nil
}

// tryResume returns a resumable session or nil. Every failure is logged and
// answered with a fresh upload.
func (r *run) tryResume(ctx context.Context) *session {
	store := r.e.resume
	if store == nil || r.src.Key == "" {
		return nil
	}

	fp, err := fingerprint(r.src)
	if err != nil {
		r.logger.Warn("cannot fingerprint file, resume disabled", slog.String("error", err.Error()))
		return nil
	}

	r.fingerprint = fp

	rec, err := store.Load(r.e.server, r.src.Key)
	if err != nil {
		r.logger.Warn("resume record unreadable", slog.String("error", err.Error()))
		return nil
	}

	if rec == nil {
		return nil
	}

	if rec.Fingerprint != fp || rec.FileSize != r.src.Size {
		r.logger.Info("file changed since last attempt, starting over")
		r.forget()

		return nil
	}

	plan, err := NewPlan(rec.FileSize, rec.ChunkSize)
	if err != nil || plan.TotalChunks != rec.TotalChunks {
		r.forget()
		return nil
	}

	status, err := r.e.api.ChunkStatus(ctx, rec.UploadID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			r.logger.Info("server no longer holds upload session, starting over",
				slog.String("upload_id", rec.UploadID),
			)
		} else {
			r.logger.Warn("upload status query failed, starting over",
				slog.String("upload_id", rec.UploadID),
				slog.String("error", err.Error()),
			)
		}

		r.forget()

		return nil
	}

	uploaded := make(map[int]bool, len(status.UploadedChunks))
	for _, i := range status.UploadedChunks {
		if i >= 0 && i < plan.TotalChunks {
			uploaded[i] = true
		}
	}

	r.logger.Info("resuming upload",
		slog.String("upload_id", rec.UploadID),
		slog.Int("uploaded", len(uploaded)),
		slog.Int("total_chunks", plan.TotalChunks),
	)

	return &session{uploadID: rec.UploadID, plan: plan, uploaded: uploaded, resumed: true}
}

// sendChunks uploads every chunk the server does not already hold, in
// index order, reusing one buffer.
func (r *run) sendChunks(ctx context.Context, sess *session) error {
	plan := sess.plan
	buf := make([]byte, min(plan.ChunkSize, max(plan.Size, 0)))

	for i := range plan.TotalChunks {
		if sess.uploaded[i] {
			r.e.metrics.ObserveChunkSkipped()
			r.logger.Debug("chunk already on server", slog.Int("index", i))
			r.progress(plan.Percent(i))

			continue
		}

		if err := ctx.Err(); err != nil {
			return r.abort(StageUpload, i, 0, err)
		}

		offset, length := plan.Range(i)
		data := buf[:length]

		if n, err := r.src.Content.ReadAt(data, offset); err != nil && (!errors.Is(err, io.EOF) || int64(n) != length) {
			return r.abort(StageUpload, i, 0, fmt.Errorf("reading chunk %d of %s: %w", i, r.src.Name, err))
		}

		attempts, err := r.sendChunk(ctx, sess.uploadID, i, data)
		if err != nil {
			return r.abort(StageUpload, i, attempts, err)
		}

		r.e.metrics.ObserveChunkBytes(len(data))
		r.progress(plan.Percent(i))
	}

	return nil
}

// sendChunk uploads one chunk under the retry policy and returns the number
// of attempts made.
func (r *run) sendChunk(ctx context.Context, uploadID string, index int, data []byte) (int, error) {
	policy := r.e.retry

	for attempt := 1; ; attempt++ {
		_, err := r.e.api.UploadChunk(ctx, uploadID, index, data, true)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("chunk succeeded after retry",
					slog.Int("index", index),
					slog.Int("attempts", attempt),
				)
			}

			return attempt, nil
		}

		if attempt > policy.MaxRetries || !retryable(ctx, err) {
			return attempt, err
		}

		delay := policy.Delay(attempt, err)

		r.logger.Warn("chunk upload failed, retrying",
			slog.Int("index", index),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)

		r.e.metrics.ObserveChunkRetry()

		if r.opts.OnRetry != nil {
			r.opts.OnRetry(index, attempt, err)
		}

		if sleepErr := r.e.sleepFunc(ctx, delay); sleepErr != nil {
			return attempt, fmt.Errorf("waiting to retry chunk %d: %w", index, sleepErr)
		}
	}
}

func (r *run) completeRequest(uploadID string) api.CompleteRequest {
	req := api.CompleteRequest{
		UploadID:      uploadID,
		DownloadLimit: r.opts.DownloadLimit,
		ExpireDays:    r.opts.ExpireDays,
	}

	if r.opts.Password != "" {
		pw := r.opts.Password
		req.Password = &pw
	}

	return req
}

func (r *run) transition(s State) {
	if r.state.Terminal() {
		return
	}

	r.logger.Debug("upload state", slog.String("from", r.state.String()), slog.String("to", s.String()))
	r.state = s

	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(s)
	}
}

func (r *run) progress(percent int) {
	if r.opts.Progress != nil {
		r.opts.Progress(percent)
	}
}

// abort moves to Failed and builds the AbortError. The resume record is
// kept so a later run can continue.
func (r *run) abort(stage Stage, chunk, attempts int, err error) error {
	r.transition(StateFailed)

	r.logger.Warn("upload aborted",
		slog.String("stage", string(stage)),
		slog.Int("chunk", chunk),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)

	return &AbortError{Stage: stage, ChunkIndex: chunk, Attempts: attempts, Err: err}
}

// remember saves a resume record for a freshly opened session.
func (r *run) remember(uploadID string, plan Plan) {
	if r.e.resume == nil || r.src.Key == "" || r.fingerprint == "" {
		return
	}

	if err := r.e.resume.Save(&ResumeRecord{
		Server:      r.e.server,
		Key:         r.src.Key,
		UploadID:    uploadID,
		ChunkSize:   plan.ChunkSize,
		TotalChunks: plan.TotalChunks,
		FileSize:    plan.Size,
		Fingerprint: r.fingerprint,
	}); err != nil {
		r.logger.Warn("failed to save resume record, an interrupted upload will restart",
			slog.String("error", err.Error()),
		)
	}
}

// forget deletes the resume record for this file.
func (r *run) forget() {
	if r.e.resume == nil || r.src.Key == "" {
		return
	}

	if err := r.e.resume.Delete(r.e.server, r.src.Key); err != nil {
		r.logger.Warn("failed to delete resume record", slog.String("error", err.Error()))
	}
}
