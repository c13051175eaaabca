package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"video-splitter/config"
)

type Publisher[T any] interface {
	Publish(ctx context.Context, msg T) error
}

type publisher[T any] struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

// Publish declares the exchange and sends msg as persistent JSON. A channel is
// opened per message; completion events are rare.
func (p publisher[T]) Publish(ctx context.Context, msg T) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(p.cfg.ExchangeName, p.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", p.cfg.ExchangeName).Msg("failed to declare exchange")
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	err = ch.PublishWithContext(ctx, p.cfg.ExchangeName, p.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("routing_key", p.cfg.RoutingKey).Msg("failed to publish message")
		return err
	}
	return nil
}

type noopPublisher[T any] struct{}

func (noopPublisher[T]) Publish(context.Context, T) error {
	return nil
}

// NewPublisher returns a publisher bound to conn, or one that drops every
// message when conn is nil.
func NewPublisher[T any](conn *amqp.Connection, cfg *config.RabbitMQ) Publisher[T] {
	if conn == nil {
		return noopPublisher[T]{}
	}
	return &publisher[T]{conn: conn, cfg: cfg}
}
