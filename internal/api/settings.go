package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
)

// SiteSettings is the public site configuration. Keys follow the server's
// snake_case names; values are whatever JSON type the server sent.
type SiteSettings map[string]any

// DefaultSiteSettings returns the built-in settings used when the server
// cannot be reached or omits keys.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		"site_name":                   "PicKoala",
		"site_title":                  "PicKoala",
		"timezone":                    "Asia/Shanghai",
		"max_upload_size_guest":       float64(5 * 1024 * 1024),
		"max_upload_size_user":        float64(10 * 1024 * 1024),
		"max_upload_size_vip":         float64(50 * 1024 * 1024),
		"allowed_extensions":          []any{"png", "jpg", "jpeg", "gif", "webp"},
		"enable_registration":         true,
		"enable_guest_upload":         true,
		"guest_rate_limit_per_minute": float64(3),
		"user_rate_limit_per_minute":  float64(10),
		"vip_rate_limit_per_minute":   float64(30),
		"guest_file_limit_per_minute": float64(1),
		"user_file_limit_per_minute":  float64(5),
		"vip_file_limit_per_minute":   float64(10),
	}
}

// SiteSettings fetches the site settings merged over the defaults. The
// endpoint is optional: any failure is logged, no notification is raised,
// and the defaults are returned.
func (c *Client) SiteSettings(ctx context.Context) SiteSettings {
	settings := DefaultSiteSettings()

	var remote map[string]any
	if err := c.doJSON(ctx, http.MethodGet, SettingsPath, nil, &remote, nil); err != nil {
		c.logger.Warn("site settings unavailable, using defaults",
			slog.String("error", err.Error()),
		)

		return settings
	}

	maps.Copy(settings, remote)

	return settings
}

// String returns a string setting, or "" if absent or not a string.
func (s SiteSettings) String(key string) string {
	v, _ := s[key].(string) //nolint:errcheck // type assertion, zero value on mismatch

	return v
}

// Bool returns a boolean setting. String values "true"/"false" are accepted
// because some deployments store settings as text.
func (s SiteSettings) Bool(key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return false
	}
}

// Int returns an integer setting, or 0 if absent or not numeric.
func (s SiteSettings) Int(key string) int64 {
	switch v := s[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64() //nolint:errcheck // zero on malformed numbers
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64) //nolint:errcheck // zero on malformed numbers
		return n
	default:
		return 0
	}
}

// Timezone returns the site display timezone.
func (s SiteSettings) Timezone() string {
	return s.String("timezone")
}

// MaxUploadSize returns the per-tier single upload limit in bytes.
func (s SiteSettings) MaxUploadSize(loggedIn, vip bool) int64 {
	switch {
	case vip:
		return s.Int("max_upload_size_vip")
	case loggedIn:
		return s.Int("max_upload_size_user")
	default:
		return s.Int("max_upload_size_guest")
	}
}
