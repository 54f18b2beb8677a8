package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"videojobs/internal/pipeline"
)

const DefaultExchange = "video_jobs"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitNotifier publishes updates to a topic exchange with routing key
// job.<status>, so consumers can bind to e.g. job.completed only.
type RabbitNotifier struct {
	channel  amqpChannel
	exchange string
}

func NewRabbitNotifier(conn *amqp.Connection, exchange string) (*RabbitNotifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitNotifier{channel: ch, exchange: exchange}, nil
}

func RoutingKey(u pipeline.Update) string {
	return "job." + string(u.Status)
}

func (n *RabbitNotifier) Publish(ctx context.Context, u pipeline.Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	return n.channel.PublishWithContext(ctx, n.exchange, RoutingKey(u), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    u.JobID,
		Body:         body,
	})
}

func (n *RabbitNotifier) Close() error {
	return n.channel.Close()
}
