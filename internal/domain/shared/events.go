package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	EventMatchesCreated  EventType = "exchange.matches_created"
	EventMatchingStopped EventType = "exchange.matching_stopped"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is used as the partition key when events are streamed.
	AggregateID() string
	Payload() map[string]interface{}
}

// EventPublisher delivers domain events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Matching Events
// ═══════════════════════════════════════════════════════════════════════════

// MatchesCreatedEvent is emitted after a matching run commits at least one match.
type MatchesCreatedEvent struct {
	BaseEvent
	Semester     string   `json:"semester"`
	AcademicYear string   `json:"academic_year"`
	ExchangeDate string   `json:"exchange_date"`
	MatchIDs     []string `json:"match_ids"`
	StudentIDs   []string `json:"student_ids"`
}

// Payload implements Event interface.
func (e MatchesCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semester":      e.Semester,
		"academic_year": e.AcademicYear,
		"exchange_date": e.ExchangeDate,
		"match_ids":     e.MatchIDs,
		"student_ids":   e.StudentIDs,
		"count":         len(e.MatchIDs),
	}
}

// NewMatchesCreatedEvent creates a MatchesCreatedEvent keyed by run ID.
func NewMatchesCreatedEvent(runID, semester, academicYear, exchangeDate string, matchIDs, studentIDs []string) MatchesCreatedEvent {
	return MatchesCreatedEvent{
		BaseEvent:    NewBaseEvent(EventMatchesCreated, runID),
		Semester:     semester,
		AcademicYear: academicYear,
		ExchangeDate: exchangeDate,
		MatchIDs:     matchIDs,
		StudentIDs:   studentIDs,
	}
}

// MatchingStoppedEvent is emitted when a run halts early because no
// exchange slot could be allocated.
type MatchingStoppedEvent struct {
	BaseEvent
	LastTriedDate  string `json:"last_tried_date"`
	MatchesCreated int    `json:"matches_created"`
}

// Payload implements Event interface.
func (e MatchingStoppedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"last_tried_date": e.LastTriedDate,
		"matches_created": e.MatchesCreated,
	}
}

// NewMatchingStoppedEvent creates a MatchingStoppedEvent keyed by run ID.
func NewMatchingStoppedEvent(runID, lastTriedDate string, created int) MatchingStoppedEvent {
	return MatchingStoppedEvent{
		BaseEvent:      NewBaseEvent(EventMatchingStopped, runID),
		LastTriedDate:  lastTriedDate,
		MatchesCreated: created,
	}
}
