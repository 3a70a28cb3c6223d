package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(Component("engine"))

	log.Debug("hidden")
	log.Info("matching run finished", RunID("r1"), Int("matches_created", 3), Err(errors.New("x")), Latency(2*time.Second))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var e map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "matching run finished", e["message"])
	fields := e["fields"].(map[string]any)
	assert.Equal(t, "engine", fields["component"])
	assert.Equal(t, "r1", fields["run_id"])
	assert.Equal(t, float64(3), fields["matches_created"])
	assert.Equal(t, "x", fields["error"])
	assert.Equal(t, "2s", fields["latency"])
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, Format: FormatText})
	log.Warn("slot full", SlotID("s1"), BookSlot(2))

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "slot full")
	assert.Contains(t, out, "book_slot=2 slot_id=s1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).WithRequestID("req-1")
	ctx := WithContext(context.Background(), log)

	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf})
	_ = parent.With(String("child", "yes"))

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "child")
}
