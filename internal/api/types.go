package api

import (
	"encoding/json"
	"time"

	"github.com/pickoala/pickoala-cli/internal/timefmt"
)

// Role names used by the server.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Timestamp is a server time. Naive values are read as UTC; unparseable
// values decode to the zero time instead of failing the whole document.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		t.Time = time.Time{}
		return nil //nolint:nilerr // non-string timestamps are treated as absent
	}

	parsed, err := timefmt.ParseServerTime(s)
	if err != nil {
		t.Time = time.Time{}
		return nil //nolint:nilerr // invalid timestamps are treated as absent
	}

	t.Time = parsed

	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// TokenPair is the response of the login, OAuth callback, and refresh
// endpoints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"` // seconds; 0 if the server omits it
}

// User is the current-user profile from /user/me.
type User struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Status        string     `json:"status,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	VIPExpireAt   *Timestamp `json:"vip_expire_at"`
	CreatedAt     *Timestamp `json:"created_at,omitempty"`
	LastLoginAt   *Timestamp `json:"last_login_at,omitempty"`
}

// VIPExpiry returns the VIP expiry, or the zero time when absent or invalid.
func (u *User) VIPExpiry() time.Time {
	if u == nil || u.VIPExpireAt == nil {
		return time.Time{}
	}

	return u.VIPExpireAt.Time
}

// UploadMode selects how the server stores a chunked upload.
type UploadMode string

// Upload modes accepted by /chunk/init.
const (
	UploadModeFile  UploadMode = "file"
	UploadModeImage UploadMode = "image"
	UploadModeVideo UploadMode = "video"
)

// ParseUploadMode validates a mode name. Empty selects UploadModeFile.
func ParseUploadMode(s string) (UploadMode, bool) {
	switch UploadMode(s) {
	case "", UploadModeFile:
		return UploadModeFile, true
	case UploadModeImage, UploadModeVideo:
		return UploadMode(s), true
	default:
		return "", false
	}
}

// ChunkInitRequest is the body of POST /chunk/init.
type ChunkInitRequest struct {
	Filename    string     `json:"filename"`
	FileSize    int64      `json:"file_size"`
	MimeType    string     `json:"mime_type"`
	TotalChunks int        `json:"total_chunks"`
	UploadMode  UploadMode `json:"upload_mode"`
}

// ChunkInitResponse carries the server-issued upload id and the chunk size
// the client must use.
type ChunkInitResponse struct {
	UploadID  string `json:"upload_id"`
	ChunkSize int64  `json:"chunk_size"`
}

// ChunkStatus lists the chunk indexes the server already holds.
type ChunkStatus struct {
	UploadID       string `json:"upload_id"`
	UploadedChunks []int  `json:"uploaded_chunks"`
}

// ChunkAck acknowledges a stored chunk.
type ChunkAck struct {
	Success    bool `json:"success"`
	ChunkIndex int  `json:"chunk_index"`
}

// CompleteRequest is the body of POST /chunk/complete/{id}. Nil fields are
// sent as null so the server applies its defaults.
type CompleteRequest struct {
	UploadID      string  `json:"upload_id"`
	Password      *string `json:"password"`
	DownloadLimit *int    `json:"download_limit"`
	ExpireDays    *int    `json:"expire_days"`
}

// UploadedFile is the server representation of a completed upload.
type UploadedFile struct {
	ID               int64      `json:"id"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"original_filename"`
	Extension        string     `json:"extension,omitempty"`
	MimeType         string     `json:"mime_type"`
	FileSize         int64      `json:"file_size"`
	UniqueCode       string     `json:"unique_code"`
	StorageType      string     `json:"storage_type,omitempty"`
	ThumbnailPath    string     `json:"thumbnail_path,omitempty"`
	DownloadCount    int        `json:"download_count"`
	DownloadLimit    *int       `json:"download_limit"`
	ExpireAt         *Timestamp `json:"expire_at"`
	CreatedAt        *Timestamp `json:"created_at"`
	URL              string     `json:"url,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
