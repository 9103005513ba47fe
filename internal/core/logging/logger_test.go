package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Hook(ContextHook{})
	t.Cleanup(func() { log.Logger = prev })

	logger := Component("gateway")
	logger.Info().Ctx(WithSessionID(context.Background(), "sess-1")).Msg("analyze")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "gateway", entry["cmp"])
	assert.Equal(t, "analyze", entry["message"])
	assert.Equal(t, "sess-1", entry["session_id"])
}

func TestWith_and_ForSession(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := ForSession(With(base, CmpWorkflow), "sess-9")
	logger.Info().Msg("submit")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, CmpWorkflow, entry["cmp"])
	assert.Equal(t, "sess-9", entry["session_id"])
}
