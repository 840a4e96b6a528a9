package events

import (
	"context"

	"agenda/internal/schedule"
	"agenda/pkg/kafka"
	"agenda/pkg/middleware"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher publishes schedule changes keyed by owner, so every
// change of one owner lands on the same partition in commit order.
type KafkaPublisher struct {
	producer MessagePublisher
}

func NewKafkaPublisher(producer MessagePublisher) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

var _ schedule.Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) ScheduleChanged(ctx context.Context, change schedule.ScheduleChange) error {
	event := ScheduleChanged{
		Owner:  change.Owner,
		Reason: change.Reason,
		At:     change.At.UTC(),
	}
	if r := change.Result; r != nil {
		event.Window = r.Window
		event.OccurrencesInserted = r.OccurrencesInserted
		event.OccurrencesDeleted = r.OccurrencesDeleted
		event.SlotsInserted = r.SlotsInserted
		event.SlotsDeleted = r.SlotsDeleted
	}

	builder := kafka.NewMessage().
		WithKey(change.Owner.Key()).
		WithValue(event).
		WithEventID("").
		WithEventType(EventScheduleChanged).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(event.At)
	// Changes made by an API call carry its request ID.
	if requestID := middleware.RequestID(ctx); requestID != "" {
		builder.WithCorrelationID(requestID)
	}
	msg, err := builder.Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}
