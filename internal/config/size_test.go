package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"", 0},
		{"0", 0},
		{"1048576", 1 << 20},
		{"100B", 100},
		{"8MB", 8_000_000},
		{"8 mb", 8_000_000},
		{"20MiB", 20 << 20},
		{" 8 mib ", 8 << 20},
		{"1.5MiB", 1_572_864},
		{"16m", 16 << 20},
		{"1GiB", 1 << 30},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Rejects(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"lots", "unknown unit"},
		{"MiB", "missing number"},
		{"20 parsecs", "unknown unit"},
		{"-1", "must be non-negative"},
		{"-5MiB", "must be non-negative"},
		{"1.2.3MB", "invalid size"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseSize(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseChunkSize_Bounds(t *testing.T) {
	n, err := ParseChunkSize("1MiB")
	require.NoError(t, err)
	assert.Equal(t, MinChunkSize, n)

	n, err = ParseChunkSize("512MiB")
	require.NoError(t, err)
	assert.Equal(t, MaxChunkSize, n)

	_, err = ParseChunkSize("1000KB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1MiB and 512MiB")

	_, err = ParseChunkSize("513MiB")
	require.Error(t, err)
}

func TestFormatSize_ParsesBack(t *testing.T) {
	for _, n := range []int64{MinChunkSize, 20 << 20, MaxChunkSize, 1 << 30, 3 << 10, 1_000_000, 0} {
		s := FormatSize(n)

		got, err := ParseSize(s)
		require.NoError(t, err, s)
		assert.Equal(t, n, got, s)
	}

	assert.Equal(t, "20MiB", FormatSize(20<<20))
	assert.Equal(t, "1000000", FormatSize(1_000_000))
}
