// Package messaging delivers domain events produced by matching runs to
// Kafka, to the structured log, or to an in-process buffer.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
)

// ErrPublisherClosed is returned when publishing after Close.
var ErrPublisherClosed = errors.New("messaging: publisher is closed")

// ══════════════════════════════════════════════════════════════════════════════
// ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// Envelope is the wire form of an event.
type Envelope struct {
	Type        shared.EventType       `json:"type"`
	AggregateID string                 `json:"aggregate_id"`
	Timestamp   time.Time              `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload"`
}

// NewEnvelope wraps an event for transport.
func NewEnvelope(e shared.Event) Envelope {
	return Envelope{
		Type:        e.EventType(),
		AggregateID: e.AggregateID(),
		Timestamp:   e.OccurredAt().UTC(),
		Payload:     e.Payload(),
	}
}

// Encode serializes an event envelope as JSON.
func Encode(e shared.Event) ([]byte, error) {
	data, err := json.Marshal(NewEnvelope(e))
	if err != nil {
		return nil, fmt.Errorf("messaging: encode %s: %w", e.EventType(), err)
	}
	return data, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FAN-OUT
// ══════════════════════════════════════════════════════════════════════════════

// MultiPublisher publishes to every sink and joins their errors.
type MultiPublisher struct {
	sinks []shared.EventPublisher
}

// NewMultiPublisher skips nil sinks.
func NewMultiPublisher(sinks ...shared.EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Publish implements shared.EventPublisher.
func (m *MultiPublisher) Publish(ctx context.Context, events ...shared.Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryPublisher buffers events in process. Used by tests and by the
// memory store profile.
type InMemoryPublisher struct {
	mu     sync.RWMutex
	events []shared.Event
	err    error
}

// NewInMemoryPublisher creates an empty buffer.
func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

// FailWith makes every later Publish return err.
func (p *InMemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Publish implements shared.EventPublisher.
func (p *InMemoryPublisher) Publish(_ context.Context, events ...shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (p *InMemoryPublisher) Events() []shared.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]shared.Event, len(p.events))
	copy(out, p.events)
	return out
}

// OfType filters buffered events by type.
func (p *InMemoryPublisher) OfType(t shared.EventType) []shared.Event {
	var out []shared.Event
	for _, e := range p.Events() {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}
