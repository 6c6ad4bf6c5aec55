package mq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dt-demo-gcp/authserver/types"
)

const publishTimeout = 5 * time.Second

// EventPublisher sends auth events to a channel. A nil backend turns every
// call into a no-op, so callers never need to check whether events are enabled.
type EventPublisher struct {
	backend Backend
	channel string
	logger  *slog.Logger
}

func NewEventPublisher(backend Backend, channel string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		backend: backend,
		channel: channel,
		logger:  logger,
	}
}

// Enabled reports whether events are actually sent anywhere.
func (p *EventPublisher) Enabled() bool {
	return p != nil && p.backend != nil
}

// Publish encodes and sends event. Failures are logged and otherwise ignored;
// an unreachable broker must never change the outcome of a login.
func (p *EventPublisher) Publish(ctx context.Context, event types.AuthEvent) {
	if !p.Enabled() {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode auth event", "type", event.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{"type": string(event.Type)}
	if _, err := p.backend.Publish(ctx, p.channel, data, attrs); err != nil {
		p.logger.WarnContext(ctx, "failed to publish auth event", "type", event.Type, "error", err)
	}
}

// Watch subscribes to the channel and hands each decoded event to fn.
// Undecodable messages are acknowledged and skipped.
func (p *EventPublisher) Watch(ctx context.Context, fn func(types.AuthEvent)) error {
	if !p.Enabled() {
		return nil
	}
	return p.backend.Subscribe(ctx, p.channel, func(ctx context.Context, msg Message) error {
		var event types.AuthEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			p.logger.WarnContext(ctx, "skipping malformed auth event", "id", msg.ID, "error", err)
			return nil
		}
		fn(event)
		return nil
	})
}

// Close releases the backend connection.
func (p *EventPublisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.backend.Close()
}
