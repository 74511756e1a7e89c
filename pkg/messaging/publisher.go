package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// NoopPublisher drops every message. It is used when a broker is not
// configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ string, _ []byte) error { return nil }

func (NoopPublisher) Close() error { return nil }

// RabbitPublisher publishes to a fanout exchange and waits for the broker
// confirm of every message.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitPublisher{conn: conn, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return p.fail(routingKey, fmt.Errorf("open channel: %w", err))
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return p.fail(routingKey, fmt.Errorf("enable confirms: %w", err))
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return p.fail(routingKey, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return p.fail(routingKey, err)
	}
	if !acked {
		return p.fail(routingKey, ErrNotAcknowledged)
	}
	return nil
}

func (p *RabbitPublisher) fail(key string, err error) error {
	return &PublishError{Topic: p.exchange, Key: key, Err: err}
}

func (p *RabbitPublisher) Close() error {
	return p.conn.Close()
}
