package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSONOutput(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Sampling.Enabled = false
	var buf bytes.Buffer

	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), "run-1")
	logger.Info(ctx, "knowledge merged", zap.Int("entries", 3))
	require.NoError(t, logger.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "knowledge merged", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "run-1", line["run.id"])
	assert.Equal(t, "qrepair", line["service"])
	assert.EqualValues(t, 3, line["entries"])
}

func TestNewLogger_TraceLevelName(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = "trace"
	cfg.Format = "json"
	cfg.Sampling.Enabled = false
	var buf bytes.Buffer

	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)
	logger.Trace(context.Background(), "step applied")

	assert.Contains(t, buf.String(), `"level":"trace"`)
}

func TestNewLogger_LevelFilters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = "warn"
	var buf bytes.Buffer

	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)

	ctx := context.Background()
	logger.Debug(ctx, "hidden debug")
	logger.Info(ctx, "hidden info")
	logger.Warn(ctx, "shown warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "yaml"

	_, err := NewLogger(cfg, nil)

	assert.ErrorContains(t, err, "invalid config")
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithEpisodeID(WithRunID(context.Background(), "run-7"), "ep-2")

	tl.Trace(ctx, "trace message")
	tl.Debug(ctx, "debug message")
	tl.Info(ctx, "info message")
	tl.Warn(ctx, "warn message")
	tl.Error(ctx, "error message")

	require.Len(t, tl.All(), 5)
	for _, entry := range tl.All() {
		fields := entry.ContextMap()
		assert.Equal(t, "run-7", fields["run.id"], entry.Message)
		assert.Equal(t, "ep-2", fields["episode.id"], entry.Message)
	}
	tl.AssertLogged(t, TraceLevel, "trace message")
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()

	child := tl.With(zap.String("component", "merge")).Named("cli")
	child.Info(context.Background(), "child message")
	tl.Info(context.Background(), "parent message")

	entries := tl.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "cli", entries[0].LoggerName)
	assert.Equal(t, "merge", entries[0].ContextMap()["component"])
	assert.NotContains(t, entries[1].ContextMap(), "component")
}

func TestLogger_Underlying(t *testing.T) {
	tl := NewTestLogger()

	tl.Underlying().Info("from library")

	tl.AssertLogged(t, zapcore.InfoLevel, "from library")
	assert.True(t, strings.HasPrefix(tl.All()[0].Message, "from"))
}

func TestNewNop(t *testing.T) {
	l := NewNop()

	assert.False(t, l.Enabled(zapcore.ErrorLevel))
	assert.NotPanics(t, func() {
		l.Trace(context.Background(), "discarded")
		l.Info(WithEpisodeID(context.Background(), "ep-1"), "discarded")
	})
	assert.NoError(t, l.Sync())
}
