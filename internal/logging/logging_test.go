package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("disabled"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestNewLoggerWithConfig_PlainConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "debug", Console: true, Out: &buf})
	logger.Debug().Str("symbol", "AAPL").Msg("hello")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "symbol=AAPL")
	assert.NotContains(t, out, "\x1b[", "non-terminal output must not be colored")
}

func TestNewLoggerWithConfig_JSONWithoutConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "info", Out: &buf})
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "shown", entry["message"])
}

func TestLogTrade(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := WithUser(zerolog.New(&buf), "alice")

	LogTrade(logger, "txn_1", "AAPL", "buy", decimal.NewFromInt(10), decimal.RequireFromString("175.43"), true)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trade", entry["event"])
	assert.Equal(t, "alice", entry["user"])
	assert.Equal(t, "175.43", entry["price"])
	assert.Equal(t, "10", entry["quantity"])
	assert.Equal(t, true, entry["copy"])
}

func TestLogRoute(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogRoute(logger, "e1", "TSLA", "dropped", "insufficient_funds", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "insufficient_funds", entry["reason"])
	assert.Equal(t, "e1", entry["expert"])
}

func TestLogRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogRequest(logger, "POST", "/users/alice/trades", 422, 3*time.Millisecond, nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "http_request", line["event"])
	assert.Equal(t, float64(422), line["status"])
}
