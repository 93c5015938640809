package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestInitLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(InitLogger("info", LogFormatJSON, &buf), "outbox_processor")

	logger.Debug().Msg("hidden")
	logger.Info().Str("notification_id", "n-1").Msg("Notification sent")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "outbox_processor", entry["component"])
	assert.Equal(t, "n-1", entry["notification_id"])
	assert.Equal(t, "Notification sent", entry["message"])
}

func TestInitLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("info", LogFormatConsole, &buf)

	logger.Info().Msg("Worker started")

	assert.Contains(t, buf.String(), "Worker started")
	assert.False(t, json.Valid(buf.Bytes()))
}
