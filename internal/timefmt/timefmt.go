// Package timefmt parses the server's timestamps and formats them for display
// in the site timezone. The backend emits naive ISO timestamps that are
// always UTC ("2024-12-14T10:30:00"), so anything without an offset is read
// as UTC rather than local time.
package timefmt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is the site timezone used when settings do not name one.
const DefaultTimezone = "Asia/Shanghai"

// Placeholder is rendered for missing timestamps.
const Placeholder = "-"

// naiveLayouts are tried, in order, for timestamps without an offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ErrEmpty is returned by ParseServerTime for an empty string.
var ErrEmpty = errors.New("timefmt: empty timestamp")

// ParseServerTime parses a server timestamp. Strings with a zone ("Z" or a
// numeric offset) are honored; naive strings are treated as UTC. A space
// between date and time is accepted in place of "T".
func ParseServerTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}

	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	if hasZone(s) {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timefmt: parsing %q: %w", s, err)
		}

		return t.UTC(), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("timefmt: unrecognized timestamp %q", s)
}

// hasZone reports whether an ISO timestamp carries zone information. Only
// the time portion (after the date) is inspected so date dashes do not count.
func hasZone(s string) bool {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return true
	}

	if len(s) <= 10 {
		return false
	}

	tail := s[10:]

	return strings.ContainsAny(tail, "+-")
}

// LoadLocation resolves an IANA zone name, falling back to DefaultTimezone
// and then UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}

	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}

	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}

	return time.UTC
}

// FormatDateTime renders t as "2006-01-02 15:04:05" in the named zone.
func FormatDateTime(t time.Time, tz string) string {
	if t.IsZero() {
		return Placeholder
	}

	return t.In(LoadLocation(tz)).Format(time.DateTime)
}

// FormatDate renders t as "2006-01-02" in the named zone.
func FormatDate(t time.Time, tz string) string {
	if t.IsZero() {
		return Placeholder
	}

	return t.In(LoadLocation(tz)).Format(time.DateOnly)
}
