package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestSiteSettings_MergesOverDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SettingsPath, r.URL.Path)
		_, _ = io.WriteString(w, `{"site_name":"Koala Pics","max_upload_size_user":"20971520","enable_registration":"false"}`)
	}))
	defer srv.Close()

	s := newTestClient(t, srv.URL, nil).SiteSettings(t.Context())

	assert.Equal(t, "Koala Pics", s.String("site_name"))
	assert.Equal(t, "Asia/Shanghai", s.Timezone())
	assert.Equal(t, int64(20<<20), s.MaxUploadSize(true, false))
	assert.Equal(t, int64(50<<20), s.MaxUploadSize(true, true))
	assert.Equal(t, int64(5<<20), s.MaxUploadSize(false, false))
	assert.False(t, s.Bool("enable_registration"))
	assert.True(t, s.Bool("enable_guest_upload"))
}

func TestSiteSettings_FailureFallsBackSilently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	n := &recordingNotifier{}
	s := newTestClient(t, srv.URL, nil, WithNotifier(n)).SiteSettings(t.Context())

	assert.Equal(t, DefaultSiteSettings(), s)
	assert.Empty(t, n.messages())
}

func TestSiteSettings_Accessors(t *testing.T) {
	s := SiteSettings{"n": json.Number("12"), "bad": []any{}, "b": true}

	assert.Equal(t, int64(12), s.Int("n"))
	assert.Zero(t, s.Int("bad"))
	assert.Zero(t, s.Int("missing"))
	assert.Empty(t, s.String("n"))
	assert.True(t, s.Bool("b"))
	assert.False(t, s.Bool("missing"))
}

func TestTranslator(t *testing.T) {
	zh := NewTranslator("zh-CN")
	assert.Equal(t, language.SimplifiedChinese, zh.Locale())
	assert.Equal(t, "用户名或密码错误", zh.Translate("Incorrect username or password"))
	assert.Equal(t, "Something new", zh.Translate("Something new"))

	en := NewTranslator("en-US")
	assert.Equal(t, language.English, en.Locale())
	assert.Equal(t, "Incorrect username or password", en.Translate("Incorrect username or password"))

	assert.Equal(t, language.English, NewTranslator("").Locale())
	assert.Equal(t, language.English, NewTranslator("!!").Locale())

	var nilT *Translator
	assert.Equal(t, "x", nilT.Translate("x"))
}

func TestTimestamp_Unmarshal(t *testing.T) {
	var doc struct {
		A *Timestamp `json:"a"`
		B *Timestamp `json:"b"`
		C Timestamp  `json:"c"`
		D Timestamp  `json:"d"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-12-14T10:30:00","b":null,"c":"garbage","d":17}`), &doc))

	require.NotNil(t, doc.A)
	assert.True(t, doc.A.Equal(time.Date(2024, 12, 14, 10, 30, 0, 0, time.UTC)))
	assert.Nil(t, doc.B)
	assert.True(t, doc.C.IsZero())
	assert.True(t, doc.D.IsZero())
}

func TestUserVIPExpiry(t *testing.T) {
	var u *User
	assert.True(t, u.VIPExpiry().IsZero())

	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	u = &User{VIPExpireAt: &Timestamp{Time: exp}}
	assert.Equal(t, exp, u.VIPExpiry())
}

func TestParseUploadMode(t *testing.T) {
	m, ok := ParseUploadMode("")
	assert.True(t, ok)
	assert.Equal(t, UploadModeFile, m)

	m, ok = ParseUploadMode("video")
	assert.True(t, ok)
	assert.Equal(t, UploadModeVideo, m)

	_, ok = ParseUploadMode("audio")
	assert.False(t, ok)
}
