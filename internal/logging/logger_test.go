package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log line: %s", buf.String())
	return entry
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel)

	logger.Info("Filled nulls",
		"column", "value",
		"filled", 3,
		"value", math.NaN(),
		"elapsed", 2*time.Second,
		"error", errors.New("boom"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "Filled nulls", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "value", entry["column"])
	assert.Equal(t, float64(3), entry["filled"])
	assert.Equal(t, "NaN", entry["value"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "elapsed")
}

func TestLogger_DropsDanglingKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel)

	logger.Warn("Dangling", "rows", 5, "orphan")

	entry := decodeLine(t, &buf)
	assert.Equal(t, float64(5), entry["rows"])
	assert.NotContains(t, entry, "orphan")
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, zerolog.DebugLevel)
	child := base.With("tag", "TIC-101")

	child.Info("Assigned status")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "TIC-101", entry["tag"])

	buf.Reset()
	base.Info("No tag")
	entry = decodeLine(t, &buf)
	assert.NotContains(t, entry, "tag")
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.DebugLevel)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithTag(ctx, "FIC-200")

	assert.Same(t, logger, FromContext(ctx))

	InfoCtx(ctx, "Pipeline complete")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "FIC-200", entry["tag"])
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	assert.Same(t, Global(), FromContext(context.Background()))
}

func TestNewFromConfig(t *testing.T) {
	logger, err := NewFromConfig(configForTest("debug", "json", "stderr"), "")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = NewFromConfig(configForTest("bogus", "console", "stdout"), "analyze")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewFromConfig_FileWithService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "analyzer.log")

	logger, err := NewFromConfig(configForTest("info", "json", path), "analyzer")
	require.NoError(t, err)
	logger.Debug("Dropped below level")
	logger.Info("Analysis complete", "tag", "TIC-101")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "analyzer", entry["service"])
	assert.Equal(t, "TIC-101", entry["tag"])
	assert.Equal(t, "Analysis complete", entry["message"])
}
