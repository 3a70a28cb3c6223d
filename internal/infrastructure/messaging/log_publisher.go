package messaging

import (
	"context"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
)

// LogPublisher writes each event as one structured log line. It is the
// sink used when Kafka is not configured.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.Default()
	}
	return &LogPublisher{log: log.With(logger.Component("events"))}
}

// Publish implements shared.EventPublisher.
func (p *LogPublisher) Publish(ctx context.Context, events ...shared.Event) error {
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := []logger.Field{
			logger.String("event_type", string(e.EventType())),
			logger.String("aggregate_id", e.AggregateID()),
		}
		for k, v := range e.Payload() {
			fields = append(fields, logger.Any(k, v))
		}
		p.log.Info("domain event", fields...)
	}
	return nil
}
