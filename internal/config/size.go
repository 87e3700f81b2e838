package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Bounds for [transfers] chunk_size. The server may still answer init with
// its own chunk size, which wins.
const (
	MinChunkSize int64 = 1 << 20
	MaxChunkSize int64 = 512 << 20
)

// sizeUnits maps lower-cased suffixes to multipliers. SI suffixes are
// decimal; IEC suffixes (and the single-letter shorthands) are binary.
var sizeUnits = map[string]int64{
	"":    1,
	"b":   1,
	"kb":  1e3,
	"mb":  1e6,
	"gb":  1e9,
	"k":   1 << 10,
	"m":   1 << 20,
	"g":   1 << 30,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
}

// iecUnits is the display order for FormatSize, largest first.
var iecUnits = []struct {
	name string
	size int64
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
}

// ParseSize converts a size string such as "20MiB", "8 mb" or "1048576" to
// bytes. An empty string is 0.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	num, unit := s, ""
	if i := strings.IndexFunc(s, isUnitRune); i >= 0 {
		num, unit = strings.TrimSpace(s[:i]), strings.ToLower(strings.TrimSpace(s[i:]))
	}

	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit %q", s, unit)
	}

	if num == "" {
		return 0, fmt.Errorf("invalid size %q: missing number", s)
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if v < 0 {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
	}

	return int64(v * float64(mult)), nil
}

func isUnitRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsSpace(r)
}

// ParseChunkSize parses s and checks it against the chunk size bounds.
func ParseChunkSize(s string) (int64, error) {
	n, err := ParseSize(s)
	if err != nil {
		return 0, err
	}

	if n < MinChunkSize || n > MaxChunkSize {
		return 0, fmt.Errorf("must be between %s and %s, got %q",
			FormatSize(MinChunkSize), FormatSize(MaxChunkSize), s)
	}

	return n, nil
}

// FormatSize renders n in the largest IEC unit that divides it exactly, so
// the result parses back to the same value.
func FormatSize(n int64) string {
	for _, u := range iecUnits {
		if n != 0 && n%u.size == 0 {
			return strconv.FormatInt(n/u.size, 10) + u.name
		}
	}

	return strconv.FormatInt(n, 10)
}
