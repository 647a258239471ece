package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, zerolog.InfoLevel, NewLogger("production").GetLevel())
	assert.Equal(t, zerolog.DebugLevel, NewLogger("development").GetLevel())

	t.Setenv("LOG_LEVEL", "WARN")
	assert.Equal(t, zerolog.WarnLevel, NewLogger("development").GetLevel())

	t.Setenv("LOG_LEVEL", "chatty")
	assert.Equal(t, zerolog.InfoLevel, NewLogger("production").GetLevel())
}

func TestComponentTagsLines(t *testing.T) {
	var buf bytes.Buffer
	log := Component(zerolog.New(&buf), "worker")
	log.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "worker", line["component"])
	assert.Equal(t, "hello", line["message"])
}
