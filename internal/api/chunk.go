package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// InitChunkUpload opens a chunked upload session. The response's chunk size
// is authoritative for all chunk boundaries.
func (c *Client) InitChunkUpload(ctx context.Context, req ChunkInitRequest) (*ChunkInitResponse, error) {
	c.logger.Info("initializing chunked upload",
		slog.String("filename", req.Filename),
		slog.Int64("size", req.FileSize),
		slog.Int("total_chunks", req.TotalChunks),
		slog.String("mode", string(req.UploadMode)),
	)

	var resp ChunkInitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chunk/init", req, &resp, nil); err != nil {
		return nil, err
	}

	if resp.UploadID == "" {
		return nil, fmt.Errorf("api: chunk init response missing upload_id")
	}

	c.logger.Debug("chunked upload initialized",
		slog.String("upload_id", resp.UploadID),
		slog.Int64("chunk_size", resp.ChunkSize),
	)

	return &resp, nil
}

// ChunkStatus asks which chunks of an upload the server already holds.
func (c *Client) ChunkStatus(ctx context.Context, uploadID string) (*ChunkStatus, error) {
	var status ChunkStatus
	if err := c.doJSON(ctx, http.MethodGet, "/chunk/status/"+url.PathEscape(uploadID), nil, &status, &RequestOpts{
		Quiet: true,
	}); err != nil {
		return nil, err
	}

	return &status, nil
}

// UploadChunk sends one chunk as a multipart form with fields chunk_index
// and file. data is streamed as is, not copied into the form. quiet suppresses notifications; the upload engine sets it
// because it reports chunk failures through its own abort error.
func (c *Client) UploadChunk(
	ctx context.Context, uploadID string, index int, data []byte, quiet bool,
) (*ChunkAck, error) {
	c.logger.Debug("uploading chunk",
		slog.String("upload_id", uploadID),
		slog.Int("index", index),
		slog.Int("bytes", len(data)),
	)

	body, contentType, err := chunkBody(index, data)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(ctx, http.MethodPost, "/chunk/upload/"+url.PathEscape(uploadID),
		body, &RequestOpts{
			ContentType: contentType,
			Quiet:       quiet,
		})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	ack := ChunkAck{ChunkIndex: index, Success: true}
	if decErr := json.NewDecoder(resp.Body).Decode(&ack); decErr != nil {
		// The ack body is informational; a 2xx is the real acknowledgment.
		c.logger.Debug("chunk ack not decodable", slog.String("error", decErr.Error()))
	}

	return &ack, nil
}

// CompleteChunkUpload asks the server to assemble the chunks and returns the
// stored file.
func (c *Client) CompleteChunkUpload(ctx context.Context, req CompleteRequest) (*UploadedFile, error) {
	c.logger.Info("completing chunked upload", slog.String("upload_id", req.UploadID))

	var file UploadedFile
	if err := c.doJSON(ctx, http.MethodPost, "/chunk/complete/"+url.PathEscape(req.UploadID), req, &file, nil); err != nil {
		return nil, err
	}

	return &file, nil
}

// chunkBody builds the multipart form for one chunk around data without
// copying it: only the form header and trailer are rendered to memory. The
// result is seekable so the request can be replayed after a token refresh.
func chunkBody(index int, data []byte) (*io.SectionReader, string, error) {
	var head bytes.Buffer

	w := multipart.NewWriter(&head)

	if err := w.WriteField("chunk_index", strconv.Itoa(index)); err != nil {
		return nil, "", fmt.Errorf("api: writing chunk_index field: %w", err)
	}

	if _, err := w.CreateFormFile("file", fmt.Sprintf("part_%d", index)); err != nil {
		return nil, "", fmt.Errorf("api: creating file part: %w", err)
	}

	prefix := bytes.Clone(head.Bytes())
	head.Reset()

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("api: closing multipart writer: %w", err)
	}

	parts := splicedBytes{prefix, data, head.Bytes()}

	return io.NewSectionReader(parts, 0, parts.size()), w.FormDataContentType(), nil
}

// splicedBytes is a read-only concatenation of byte slices.
type splicedBytes [][]byte

func (s splicedBytes) size() int64 {
	var n int64
	for _, b := range s {
		n += int64(len(b))
	}

	return n
}

func (s splicedBytes) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("api: negative offset")
	}

	n := 0

	for _, b := range s {
		if len(p) == 0 {
			break
		}

		if off >= int64(len(b)) {
			off -= int64(len(b))
			continue
		}

		c := copy(p, b[off:])
		n += c
		p = p[c:]
		off = 0
	}

	if len(p) > 0 {
		return n, io.EOF
	}

	return n, nil
}
