package workbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"iso date", "2025-03-01", "2025-03-01 00:00:00", true},
		{"iso datetime", "2025-03-01 14:30:00", "2025-03-01 14:30:00", true},
		{"br date", "1/3/2025", "2025-03-01 00:00:00", true},
		{"br padded", "01/03/2025", "2025-03-01 00:00:00", true},
		{"br short year", "01/03/25", "2025-03-01 00:00:00", true},
		{"br with time", "01/03/2025 14:30", "2025-03-01 14:30:00", true},
		{"br with seconds", "01/03/2025 14:30:45", "2025-03-01 14:30:45", true},
		{"rollover", "31/02/2025", "", false},
		{"empty", "   ", "", false},
		{"garbage", "sem data", "", false},
		{"month out of range", "01/13/2025", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDate(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02 15:04:05"))
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"95,5", 95.5, true},
		{"95.5", 95.5, true},
		{"100%", 100, true},
		{" 87 % ", 87, true},
		{"0", 0, true},
		{"120", 100, true}, // clamped
		{"-3", 0, true},    // clamped
		{"", 0, false},
		{"n/d", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePercent(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
	}
}
