package order

import (
	"context"
	"errors"
	"log/slog"

	"gozon/order-tracking/pkg/contracts"
	"gozon/order-tracking/pkg/messaging"
)

// EventPublisher appends placed orders to the orders topic. It never writes
// to the Store; orders become visible only once the consumer processes them.
type EventPublisher struct {
	publisher messaging.Publisher
	logger    *slog.Logger
}

func NewEventPublisher(publisher messaging.Publisher, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		publisher: publisher,
		logger:    logger.With("component", "event_publisher"),
	}
}

// Publish sends a PLACED snapshot of o keyed by its id. Errors are
// *messaging.PublishError.
func (p *EventPublisher) Publish(ctx context.Context, o Order) error {
	o = o.Clone()
	o.Status = StatusPlaced
	o.ProcessedAt = nil

	payload, err := EncodeMessage(o)
	if err != nil {
		return &messaging.PublishError{Topic: contracts.OrdersTopic, Key: o.ID, Err: err}
	}

	if err := p.publisher.Publish(ctx, o.ID, payload); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish order", "order_id", o.ID, "err", err)
		var pubErr *messaging.PublishError
		if !errors.As(err, &pubErr) {
			err = &messaging.PublishError{Topic: contracts.OrdersTopic, Key: o.ID, Err: err}
		}
		return err
	}

	p.logger.InfoContext(ctx, "published order", "order_id", o.ID, "topic", contracts.OrdersTopic)
	return nil
}
