package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/yieldcurve/internal/metrics"
	"github.com/Checker-Finance/yieldcurve/pkg/logger"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// jetStream is the part of nats.JetStreamContext the publisher needs.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes envelopes on JetStream, one subject per topic.
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetStream
	service string
}

// NewNATS creates a publisher with JetStream enabled on nc.
func NewNATS(nc *nats.Conn, service string) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, js: js, service: service}, nil
}

// PublishEnvelope serializes and publishes a canonical event envelope to NATS.
func (p *NATSPublisher) PublishEnvelope(ctx context.Context, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", env.Topic,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: env.Topic,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			nats.MsgIdHdr:    []string{env.ID.String()},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.EventPublishLatency, start, env.Topic)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", env.Topic,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncPublished(env.Topic, "error")
		return err
	}

	logger.S().Infow("publisher.publish_success",
		"subject", env.Topic,
		"event_type", env.EventType,
	)
	metrics.IncPublished(env.Topic, "ok")
	return nil
}

// Close drains the connection so in-flight publishes complete.
func (p *NATSPublisher) Close() error {
	if p.nc != nil && p.nc.IsConnected() {
		return p.nc.Drain()
	}
	return nil
}
