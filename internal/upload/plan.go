package upload

import (
	"errors"
	"fmt"
)

// DefaultChunkSize is used to estimate total_chunks for /chunk/init and
// whenever the server omits its own chunk size.
const DefaultChunkSize int64 = 20 * 1024 * 1024

// ThresholdSize is the size above which the web client considers an upload
// "large". The CLI sends every file through the chunk protocol regardless;
// the constant is kept for progress display decisions.
const ThresholdSize int64 = 50 * 1024 * 1024

// ErrInvalidChunkSize is returned for a non-positive chunk size.
var ErrInvalidChunkSize = errors.New("upload: chunk size must be positive")

// Plan splits a file of Size bytes into TotalChunks ranges of ChunkSize.
// A zero-byte file has a single empty chunk.
type Plan struct {
	Size        int64
	ChunkSize   int64
	TotalChunks int
}

// NewPlan computes the chunk layout. totalChunks = ceil(size / chunkSize),
// minimum 1.
func NewPlan(size, chunkSize int64) (Plan, error) {
	if chunkSize <= 0 {
		return Plan{}, ErrInvalidChunkSize
	}

	if size < 0 {
		return Plan{}, fmt.Errorf("upload: negative file size %d", size)
	}

	total := (size + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}

	return Plan{Size: size, ChunkSize: chunkSize, TotalChunks: int(total)}, nil
}

// Range returns the byte offset and length of chunk i. Chunk i covers
// [i*ChunkSize, min((i+1)*ChunkSize, Size)).
func (p Plan) Range(i int) (offset, length int64) {
	offset = int64(i) * p.ChunkSize
	end := min(offset+p.ChunkSize, p.Size)

	if offset >= end {
		return offset, 0
	}

	return offset, end - offset
}

// Percent is the progress after chunk i completes:
// round((i+1) / TotalChunks * 100), rounding halves up.
func (p Plan) Percent(i int) int {
	done := i + 1

	return (done*200 + p.TotalChunks) / (2 * p.TotalChunks)
}
