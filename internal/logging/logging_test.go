package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "ghgfocus.log")
		res := NewLoggerWithPath(Config{Level: "debug", Format: FormatJSON, Output: OutputFile, File: path})
		defer func() { _ = res.Close() }()

		assert.True(t, res.UsingFile)
		assert.False(t, res.FallbackUsed)
		assert.Equal(t, zerolog.DebugLevel, res.Logger.GetLevel())

		res.Logger.Info().Msg("hello")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"hello"`)
	})

	t.Run("missing file path falls back", func(t *testing.T) {
		res := NewLoggerWithPath(Config{Level: "warn", Output: OutputFile})
		assert.False(t, res.UsingFile)
		assert.True(t, res.FallbackUsed)
		assert.NotEmpty(t, res.FallbackReason)
		assert.Equal(t, zerolog.WarnLevel, res.Logger.GetLevel())
	})

	t.Run("bad level defaults to info", func(t *testing.T) {
		res := NewLoggerWithPath(Config{Level: "loud"})
		assert.Equal(t, zerolog.InfoLevel, res.Logger.GetLevel())
	})
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := ComponentLogger(zerolog.New(&buf), "engine")

	ctx := logger.WithContext(context.Background())
	ctx = ContextWithTraceID(ctx, "trace-123")
	FromContext(ctx).Info().Msg("aggregated")

	out := buf.String()
	assert.Contains(t, out, `"component":"engine"`)
	assert.Contains(t, out, `"trace_id":"trace-123"`)
}

func TestFromContext_NoLogger(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	// Must not panic.
	l.Info().Msg("dropped")
}

func TestGetOrGenerateTraceID(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "known")
	assert.Equal(t, "known", GetOrGenerateTraceID(ctx))

	generated := GetOrGenerateTraceID(context.Background())
	assert.Len(t, generated, 26)
}

func TestPrintMessages(t *testing.T) {
	var buf bytes.Buffer
	PrintLogPathMessage(&buf, "/tmp/x.log")
	PrintFallbackWarning(&buf, "permission denied")
	assert.Contains(t, buf.String(), "Logging to /tmp/x.log")
	assert.Contains(t, buf.String(), "permission denied")
}
