package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitChunkUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chunk/init", r.URL.Path)

		var req ChunkInitRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "movie.mp4", req.Filename)
		assert.Equal(t, int64(120<<20), req.FileSize)
		assert.Equal(t, 6, req.TotalChunks)
		assert.Equal(t, UploadModeVideo, req.UploadMode)

		_, _ = io.WriteString(w, `{"upload_id":"u-1","chunk_size":20971520}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	resp, err := c.InitChunkUpload(t.Context(), ChunkInitRequest{
		Filename:    "movie.mp4",
		FileSize:    120 << 20,
		MimeType:    "video/mp4",
		TotalChunks: 6,
		UploadMode:  UploadModeVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.UploadID)
	assert.Equal(t, int64(20<<20), resp.ChunkSize)
}

func TestInitChunkUpload_MissingUploadID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"chunk_size":1024}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.InitChunkUpload(t.Context(), ChunkInitRequest{Filename: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_id")
}

func TestUploadChunk_MultipartFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chunk/upload/u-1", r.URL.Path)
		assert.Positive(t, r.ContentLength, "chunk bodies carry a length")
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "3", r.FormValue("chunk_index"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()

		data, _ := io.ReadAll(f)
		assert.Equal(t, "chunk-bytes", string(data))
		assert.Equal(t, "part_3", hdr.Filename)

		_, _ = io.WriteString(w, `{"success":true,"chunk_index":3}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	ack, err := c.UploadChunk(t.Context(), "u-1", 3, []byte("chunk-bytes"), true)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	assert.Equal(t, 3, ack.ChunkIndex)
}

func TestChunkBody_SplicesDataWithoutCopy(t *testing.T) {
	data := []byte("0123456789")

	body, contentType, err := chunkBody(2, data)
	require.NoError(t, err)

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw)), body.Size())

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)

	form, err := multipart.NewReader(bytes.NewReader(raw), params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, form.Value["chunk_index"])
	require.Len(t, form.File["file"], 1)
	assert.Equal(t, "part_2", form.File["file"][0].Filename)

	// The payload is read from the caller's slice.
	data[0] = 'X'

	_, err = body.Seek(0, io.SeekStart)
	require.NoError(t, err)

	again, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(again), "X123456789")
}

func TestSplicedBytes_ReadAtAcrossParts(t *testing.T) {
	s := splicedBytes{[]byte("ab"), nil, []byte("cde"), []byte("f")}
	assert.Equal(t, int64(6), s.size())

	buf := make([]byte, 3)
	n, err := s.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "bcd", string(buf[:n]))

	n, err = s.ReadAt(buf, 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ef", string(buf[:n]))

	n, err = s.ReadAt(buf, 10)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestUploadChunk_ReplayedAfterRefresh(t *testing.T) {
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		f, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()

		data, _ := io.ReadAll(f)
		seen = append(seen, string(data))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	creds := &fakeCreds{
		token:     "old",
		refreshFn: func(string) (string, error) { return "new", nil },
	}
	c := newTestClient(t, srv.URL, creds)

	_, err := c.UploadChunk(t.Context(), "u-1", 0, []byte("payload"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"payload"}, seen)
}

func TestChunkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chunk/status/u-9", r.URL.Path)
		_, _ = io.WriteString(w, `{"upload_id":"u-9","uploaded_chunks":[0,1,4]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	st, err := c.ChunkStatus(t.Context(), "u-9")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4}, st.UploadedChunks)
}

func TestCompleteChunkUpload_SendsNullsForDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chunk/complete/u-1", r.URL.Path)

		var raw map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "u-1", raw["upload_id"])
		assert.Contains(t, raw, "password")
		assert.Nil(t, raw["password"])
		assert.InDelta(t, 3, raw["expire_days"], 0)

		_, _ = io.WriteString(w, `{
			"id": 42, "filename": "abc.mp4", "original_filename": "movie.mp4",
			"mime_type": "video/mp4", "file_size": 125829120, "unique_code": "xYz12",
			"download_count": 0, "download_limit": null,
			"expire_at": "2026-05-04T10:00:00", "created_at": "2026-05-01T10:00:00.123456"
		}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	days := 3

	f, err := c.CompleteChunkUpload(t.Context(), CompleteRequest{UploadID: "u-1", ExpireDays: &days})
	require.NoError(t, err)
	assert.Equal(t, int64(42), f.ID)
	assert.Equal(t, "xYz12", f.UniqueCode)
	assert.Nil(t, f.DownloadLimit)
	require.NotNil(t, f.ExpireAt)
	assert.Equal(t, 2026, f.ExpireAt.Year())
	assert.Equal(t, "UTC", f.ExpireAt.Location().String())
}
