package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/iho/bistroledger/internal/domain"
)

// DefaultSubjectPrefix is prepended to event types to form NATS subjects,
// e.g. "bistroledger.entry.posted".
const DefaultSubjectPrefix = "bistroledger"

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// envelope is the wire form of an outbox event.
type envelope struct {
	ID            string         `json:"id"`
	EventType     string         `json:"event_type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NATSPublisher publishes outbox events and alerts to JetStream. The outbox
// event id is the message id, so redelivered events are deduplicated.
type NATSPublisher struct {
	js     streamPublisher
	prefix string
}

// NewNATSPublisher creates a publisher on an open connection.
func NewNATSPublisher(nc *nats.Conn, prefix string) (*NATSPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}
	return newNATSPublisher(js, prefix), nil
}

func newNATSPublisher(js streamPublisher, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{js: js, prefix: prefix}
}

// EnsureStream creates or updates the stream capturing every subject under
// the prefix.
func EnsureStream(ctx context.Context, nc *nats.Conn, name, prefix string) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       name,
		Subjects:   []string{prefix + ".>"},
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}

// Publish sends the event to "<prefix>.<event_type>".
func (p *NATSPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	data, err := json.Marshal(envelope{
		ID:            event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		CreatedAt:     event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	if _, err := p.js.Publish(ctx, p.subject(event.EventType), data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// Notify sends the alert to "<prefix>.alert.<kind>".
func (p *NATSPublisher) Notify(ctx context.Context, alert domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject("alert."+string(alert.Kind)), data); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (p *NATSPublisher) subject(suffix string) string {
	return p.prefix + "." + suffix
}
