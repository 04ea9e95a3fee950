package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

// Sender is the transport the publisher hands encoded envelopes to.
type Sender interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// Event is a domain event waiting to be wrapped and sent.
type Event struct {
	Type        string
	AggregateID string
	Actor       *ActorRef
	Data        any
}

// Publisher wraps events in a PayloadEnvelope and sends them to a single topic.
type Publisher struct {
	sender Sender
	topic  string
	now    func() time.Time
	newID  func() string
}

// NewPublisher builds a publisher for the given topic.
func NewPublisher(sender Sender, topic string) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("outbox sender required")
	}
	if topic == "" {
		return nil, fmt.Errorf("outbox topic required")
	}
	return &Publisher{
		sender: sender,
		topic:  topic,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// Envelope builds the envelope for the event without sending it.
func (p *Publisher) Envelope(event Event) (PayloadEnvelope, error) {
	if event.Type == "" {
		return PayloadEnvelope{}, pkgerrors.New(pkgerrors.CodeValidation, "event type is required")
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event payload")
	}
	return PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    p.newID(),
		EventType:  event.Type,
		OccurredAt: p.now().UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}

// Publish encodes the event and sends it. It returns the transport message id.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	env, err := p.Envelope(event)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event envelope")
	}
	attrs := map[string]string{
		"event_type": event.Type,
		"event_id":   env.EventID,
	}
	if event.AggregateID != "" {
		attrs["aggregate_id"] = event.AggregateID
	}
	id, err := p.sender.Publish(ctx, p.topic, body, attrs)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish event")
	}
	return id, nil
}
