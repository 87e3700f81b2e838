package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/pickoala/pickoala-cli/internal/api"
)

const (
	testUsername = "koala"
	testPassword = "eucalyptus"
	testAccess   = "access-1"
)

// fakeServer implements the slice of the PicKoala API the CLI talks to.
type fakeServer struct {
	*httptest.Server

	chunkSize int64

	mu        sync.Mutex
	nextID    int
	inits     map[string]api.ChunkInitRequest
	chunks    map[string][]int
	completes []api.CompleteRequest
	meCalls   int
	meStatus  int

	// holdChunk, when non-nil, parks every chunk upload until the request
	// is abandoned, announcing it on the channel first.
	holdChunk chan int
}

func newFakeServer(t *testing.T, chunkSize int64) *fakeServer {
	t.Helper()

	f := &fakeServer{
		chunkSize: chunkSize,
		inits:     make(map[string]api.ChunkInitRequest),
		chunks:    make(map[string][]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("GET /api/user/me", f.me)
	mux.HandleFunc("GET /api/site/settings", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"site_name": "Test Koala"})
	})
	mux.HandleFunc("POST /api/chunk/init", f.init)
	mux.HandleFunc("POST /api/chunk/upload/{id}", f.upload)
	mux.HandleFunc("POST /api/chunk/complete/{id}", f.complete)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	return f
}

// APIRoot is the server URL the CLI is pointed at.
func (f *fakeServer) APIRoot() string {
	return f.URL + "/api"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck // test server
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail}) //nolint:errcheck // test server
}

func (f *fakeServer) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Username != testUsername || req.Password != testPassword {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	writeJSON(w, api.TokenPair{AccessToken: testAccess, RefreshToken: "refresh-1", TokenType: "bearer"})
}

func (f *fakeServer) me(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.meCalls++
	status := f.meStatus
	f.mu.Unlock()

	if status != 0 {
		writeDetail(w, status, "Internal Server Error")
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+testAccess {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, api.User{ID: 7, Username: testUsername, Email: "koala@example.com", Role: api.RoleUser})
}

func (f *fakeServer) init(w http.ResponseWriter, r *http.Request) {
	var req api.ChunkInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("up-%d", f.nextID)
	f.inits[id] = req
	f.mu.Unlock()

	writeJSON(w, api.ChunkInitResponse{UploadID: id, ChunkSize: f.chunkSize})
}

func (f *fakeServer) upload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	index, err := strconv.Atoi(r.FormValue("chunk_index"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "chunk_index required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	if _, err := io.Copy(io.Discard, file); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	hold := f.holdChunk
	f.mu.Unlock()

	if hold != nil {
		hold <- index
		<-r.Context().Done()

		return
	}

	f.mu.Lock()
	f.chunks[id] = append(f.chunks[id], index)
	f.mu.Unlock()

	writeJSON(w, api.ChunkAck{Success: true, ChunkIndex: index})
}

func (f *fakeServer) complete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req api.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	init, ok := f.inits[id]
	f.completes = append(f.completes, req)
	f.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Upload session not found")
		return
	}

	writeJSON(w, api.UploadedFile{
		ID:               1,
		Filename:         id + ".bin",
		OriginalFilename: init.Filename,
		MimeType:         init.MimeType,
		FileSize:         init.FileSize,
		UniqueCode:       "code-" + id,
	})
}

func (f *fakeServer) completeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.completes)
}

func (f *fakeServer) failMe(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.meStatus = status
}

func (f *fakeServer) meCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.meCalls
}

func (f *fakeServer) completed() []api.CompleteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]api.CompleteRequest(nil), f.completes...)
}

func (f *fakeServer) initRequests() map[string]api.ChunkInitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]api.ChunkInitRequest, len(f.inits))
	for k, v := range f.inits {
		out[k] = v
	}

	return out
}

func (f *fakeServer) chunksFor(id string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]int(nil), f.chunks[id]...)
}

// testEnv points config and data directories at temp paths and returns
// the data directory.
func testEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("PICKOALA_CONFIG", dir+"/absent.toml")
	t.Setenv("PICKOALA_DATA_DIR", dir+"/data")
	t.Setenv("PICKOALA_SERVER", "")
	t.Setenv("PICKOALA_LOCALE", "")

	return dir + "/data"
}

// execute runs the root command with args.
func execute(t *testing.T, args ...string) error {
	t.Helper()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetContext(t.Context())

	return cmd.Execute()
}
