package publisher

import (
	"context"
	"time"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// Publisher emits canonical event envelopes to a broker.
type Publisher interface {
	PublishEnvelope(ctx context.Context, env *model.Envelope) error
	Close() error
}

// Broker names accepted by EVENT_BROKER.
const (
	BrokerNATS     = "nats"
	BrokerRabbitMQ = "rabbitmq"
	BrokerNone     = "none"
)

// CurveGenerated wraps a generation outcome in its envelope.
func CurveGenerated(evt model.CurveGeneratedEvent) (*model.Envelope, error) {
	if evt.GeneratedAt.IsZero() {
		evt.GeneratedAt = time.Now().UTC()
	}
	return model.NewEnvelope(model.TopicCurveGenerated, model.EventTypeCurveGenerated, evt)
}

// Noop drops every event. It is used when EVENT_BROKER is none.
type Noop struct{}

func (Noop) PublishEnvelope(context.Context, *model.Envelope) error { return nil }
func (Noop) Close() error                                           { return nil }
