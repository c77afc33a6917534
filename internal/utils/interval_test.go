package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"5min", 5 * time.Minute},
		{"15T", 15 * time.Minute},
		{"1h", time.Hour},
		{"1d", 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"1h30m", 90 * time.Minute},
		{"PT5M", 5 * time.Minute},
		{"P1D", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseGranularity(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParseGranularity_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "0m", "-5m", "P"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseGranularity(input)
			assert.Error(t, err)
		})
	}
}
