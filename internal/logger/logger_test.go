package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"pdf-rag-chatbot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN", "debug"))
	assert.Equal(t, slog.LevelDebug, parseLevel("", "debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("", "release"))
	assert.Equal(t, slog.LevelError, parseLevel("error", "release"))
}

func TestHelpersAreNilSafe(t *testing.T) {
	prev := Logger
	Logger = nil
	defer func() { Logger = prev }()

	assert.NotPanics(t, func() {
		Info("info")
		Warn("warn")
		Error("error")
		Debug("debug")
		With("k", "v").Info("discarded")
	})
}

func TestInitWithWriterEmitsJSON(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	var buf bytes.Buffer
	InitWithWriter(&config.Config{GinMode: "release", ServiceName: "svc"}, &buf)
	buf.Reset()

	Info("document stored", "filename", "a.pdf", "chunks", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "document stored", entry["msg"])
	assert.Equal(t, "a.pdf", entry["filename"])
	assert.Equal(t, "svc", entry["service"])
}
