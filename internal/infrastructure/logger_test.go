package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intransparent/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{name: "json to stderr", cfg: config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"}},
		{name: "text to stdout", cfg: config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"}},
		{
			name: "file output",
			cfg: config.LoggingConfig{
				Level: "warn", Format: "json",
				Output: filepath.Join(t.TempDir(), "app.log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestRequestIDInjection(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(&requestIDHandler{Handler: handler})

	ctx := WithRequestID(context.Background(), "req-123")
	logger.InfoContext(ctx, "ingest started", "entities", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-123", record["request_id"])
	assert.Equal(t, "ingest started", record["msg"])
}

func TestRequestIDAbsent(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))

	var buf bytes.Buffer
	logger := slog.New(&requestIDHandler{Handler: slog.NewJSONHandler(&buf, nil)})
	logger.Info("no request")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, present := record["request_id"]
	assert.False(t, present)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("anything"))
}
