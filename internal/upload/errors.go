package upload

import (
	"errors"
	"fmt"
)

// ErrUploadAborted marks every unrecoverable upload failure. The AbortError
// carrying it also unwraps to the last underlying error.
var ErrUploadAborted = errors.New("upload: aborted")

// Stage names the protocol step an upload failed in.
type Stage string

// Upload stages.
const (
	StageInit     Stage = "init"
	StageUpload   Stage = "upload"
	StageComplete Stage = "complete"
)

// AbortError describes why an upload stopped. ChunkIndex is -1 outside the
// upload stage; Attempts counts requests made for the failing step.
type AbortError struct {
	Stage      Stage
	ChunkIndex int
	Attempts   int
	Err        error
}

func (e *AbortError) Error() string {
	if e.Stage == StageUpload {
		return fmt.Sprintf("upload: aborted at chunk %d after %d attempt(s): %v", e.ChunkIndex, e.Attempts, e.Err)
	}

	return fmt.Sprintf("upload: aborted during %s: %v", e.Stage, e.Err)
}

// Unwrap exposes both ErrUploadAborted and the underlying error.
func (e *AbortError) Unwrap() []error {
	return []error{ErrUploadAborted, e.Err}
}
