package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSetup_WritesJSONRecordsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")

	logger, cleanup, err := Setup(Config{
		Level:    "info",
		FilePath: path,
		// Keep stderr quiet in tests
		MaxSizeMB: 1,
		MaxFiles:  2,
	})
	require.NoError(t, err)

	logger.Info("pass complete", slog.Int("objects", 42))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"pass complete"`)
	assert.Contains(t, string(data), `"objects":42`)
}

func TestSetup_DebugRecordsFilteredAtInfoLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")

	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	logger.Debug("per-object detail")
	logger.Warn("data-quality defect")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "per-object detail")
	assert.Contains(t, string(data), "data-quality defect")
}

func TestRotatingWriter_RotatesAtSizeLimitAndPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// Force the limit down so a few writes trigger several rotations.
	w.maxSize = 64

	record := bytes.Repeat([]byte("x"), 48)
	for i := 0; i < 8; i++ {
		_, err := w.Write(append(record, '\n'))
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	joined := strings.Join(names, " ")

	assert.Contains(t, joined, "ingest.log")
	assert.Contains(t, joined, "ingest.log.1")
	// maxFiles of 2 keeps at most two rotated generations
	assert.NotContains(t, joined, "ingest.log.3")
}
