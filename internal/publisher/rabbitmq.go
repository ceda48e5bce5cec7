package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/internal/metrics"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes envelopes with the topic as routing key.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	service  string
	logger   *zap.Logger
}

// NewRabbitMQ dials url and opens a channel. An empty exchange publishes to
// the default exchange.
func NewRabbitMQ(url, exchange, service string, logger *zap.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &RabbitPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		service:  service,
		logger:   logger,
	}, nil
}

func (p *RabbitPublisher) PublishEnvelope(ctx context.Context, env *model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.rabbitmq.marshal_failed", zap.Error(err))
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	start := time.Now()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		env.Topic, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     env.ID.String(),
			CorrelationId: env.CorrelationID.String(),
			Timestamp:     env.Timestamp,
			Type:          env.EventType,
			AppId:         p.service,
			Body:          body,
		},
	)
	metrics.ObserveDuration(metrics.EventPublishLatency, start, env.Topic)
	if err != nil {
		p.logger.Error("publisher.rabbitmq.publish_failed",
			zap.String("routing_key", env.Topic),
			zap.Error(err))
		metrics.IncPublished(env.Topic, "error")
		return err
	}

	p.logger.Info("publisher.rabbitmq.publish_success",
		zap.String("routing_key", env.Topic),
		zap.String("event_type", env.EventType))
	metrics.IncPublished(env.Topic, "ok")
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
