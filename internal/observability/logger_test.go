// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/kao/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bufferSink adapts a bytes.Buffer to zapcore.WriteSyncer.
type bufferSink struct {
	bytes.Buffer
}

func (b *bufferSink) Sync() error { return nil }

func TestNewLogger(t *testing.T) {
	t.Run("console format colorizes levels and names the service", func(t *testing.T) {
		sink := &bufferSink{}
		logger := NewLogger(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "kao-test",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)

		logger.Info("session committed")
		require.NoError(t, logger.Sync())

		out := sink.String()
		assert.Contains(t, out, "session committed")
		assert.Contains(t, out, colorGreen+"INFO"+colorReset)
		assert.Contains(t, out, "kao-test.")
	})

	t.Run("json format emits structured fields", func(t *testing.T) {
		sink := &bufferSink{}
		logger := NewLogger(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "kao"}, sink)

		logger.Warn("rollback failed", zap.String("op", "create"))
		require.NoError(t, logger.Sync())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(sink.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "kao", entry["logger"])
		assert.Equal(t, "rollback failed", entry["msg"])
		assert.Equal(t, "create", entry["op"])
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		sink := &bufferSink{}
		logger := NewLogger(config.LoggerConfig{Level: "chatty", Format: "json"}, sink)

		logger.Debug("hidden")
		logger.Info("shown")
		require.NoError(t, logger.Sync())

		assert.NotContains(t, sink.String(), "hidden")
		assert.Contains(t, sink.String(), "shown")
	})

	t.Run("log file receives json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kao.log")
		logger := NewLogger(config.LoggerConfig{
			Level:   "info",
			Format:  "console",
			LogFile: path,
			MaxSize: 1,
		}, zapcore.AddSync(&bufferSink{}))

		logger.Error("connection refused", zap.String("stage", "connect"))
		_ = logger.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
		assert.Equal(t, "connect", entry["stage"])
	})
}

func TestInitializeAndGetLogger(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	fallback := GetLogger()
	require.NotNil(t, fallback, "fallback is returned before initialization")

	sink := &bufferSink{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, sink)
	// Second initialization is ignored.
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, zapcore.AddSync(&bufferSink{}))

	GetLogger().Info("hello")
	Sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(sink.Bytes(), &entry))
	assert.Equal(t, "first", entry["logger"])
}
