package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel verifies numeric and named levels
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"0", slog.LevelError},
		{"fail", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"1", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"2", slog.LevelInfo},
		{"note", slog.LevelInfo},
		{" info ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"3", slog.LevelDebug},
		{"debug", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, "loud")
}

// TestNew_FiltersByLevel verifies records below the level are dropped
func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.Info("quiet message")
	logger.Warn("Candidate selection failed", "attempt", 2)

	out := buf.String()
	assert.NotContains(t, out, "quiet message")
	assert.Contains(t, out, "Candidate selection failed")
	assert.Contains(t, out, "attempt=2")
	assert.NotContains(t, out, "\x1b[", "non-terminal output should not be colored")
}
