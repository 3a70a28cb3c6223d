package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
)

func createdEvent() shared.Event {
	return shared.NewMatchesCreatedEvent("run-1", "odd", "2024-25", "2025-01-13",
		[]string{"m1"}, []string{"a", "b"})
}

func TestEncode(t *testing.T) {
	data, err := Encode(createdEvent())
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, string(shared.EventMatchesCreated), env["type"])
	assert.Equal(t, "run-1", env["aggregate_id"])
	assert.NotEmpty(t, env["timestamp"])

	payload := env["payload"].(map[string]any)
	assert.Equal(t, "2025-01-13", payload["exchange_date"])
	assert.Equal(t, float64(1), payload["count"])
}

func TestMultiPublisher(t *testing.T) {
	ok := NewInMemoryPublisher()
	bad := NewInMemoryPublisher()
	bad.FailWith(errors.New("sink down"))

	m := NewMultiPublisher(ok, nil, bad)
	err := m.Publish(context.Background(), createdEvent())

	assert.EqualError(t, err, "sink down")
	assert.Len(t, ok.Events(), 1)
	assert.NoError(t, NewMultiPublisher().Publish(context.Background(), createdEvent()))
}

func TestInMemoryPublisher(t *testing.T) {
	p := NewInMemoryPublisher()
	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, createdEvent(), shared.NewMatchingStoppedEvent("run-1", "2025-01-14", 1)))

	assert.Len(t, p.Events(), 2)
	stopped := p.OfType(shared.EventMatchingStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "2025-01-14", stopped[0].Payload()["last_tried_date"])

	p.FailWith(errors.New("nope"))
	assert.Error(t, p.Publish(ctx, createdEvent()))
	assert.Len(t, p.Events(), 2)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(logger.New(logger.Options{Output: &buf}))

	require.NoError(t, p.Publish(context.Background(), shared.NewMatchingStoppedEvent("run-9", "2025-01-14", 3)))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "domain event", entry["message"])
	fields := entry["fields"].(map[string]any)
	assert.Equal(t, string(shared.EventMatchingStopped), fields["event_type"])
	assert.Equal(t, "run-9", fields["aggregate_id"])
	assert.Equal(t, "2025-01-14", fields["last_tried_date"])
	assert.Equal(t, "events", fields["component"])
}

func TestLogPublisherHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewLogPublisher(logger.Discard())
	assert.ErrorIs(t, p.Publish(ctx, createdEvent()), context.Canceled)
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}, nil)
	assert.Error(t, err)
	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}

func TestKafkaPublisherClosed(t *testing.T) {
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "exchange-events"}, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.NoError(t, p.Publish(context.Background()))
	assert.ErrorIs(t, p.Publish(context.Background(), createdEvent()), ErrPublisherClosed)
}

func TestNilKafkaPublisher(t *testing.T) {
	var p *KafkaPublisher
	assert.NoError(t, p.Publish(context.Background(), createdEvent()))
	assert.NoError(t, p.Close())
}
