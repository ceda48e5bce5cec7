package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TopicCurveGenerated     = "evt.yieldcurve.generated.v1"
	EventTypeCurveGenerated = "yieldcurve.generated"
)

// Envelope is the canonical wrapper for every event emitted by the service.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

type CurveGeneratedEvent struct {
	BusinessDate    string    `json:"business_date"`
	RequestedMethod string    `json:"requested_method"`
	EffectiveMethod string    `json:"effective_method"`
	Points          int       `json:"points"`
	BondCount       int       `json:"bond_count"`
	Forced          bool      `json:"forced"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// NewEnvelope wraps payload in a fresh envelope for topic.
func NewEnvelope(topic, eventType string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         topic,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}, nil
}
