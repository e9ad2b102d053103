package broadcast

import (
	"context"
	"errors"
	"log/slog"

	"dispatch/internal/core/ports"
)

// ErrCircuitOpen marks a publish that was suppressed by an open circuit.
// Callers use it to distinguish suppression from a real transport failure:
// a suppressed send must not advance send bookkeeping, but it is not an
// error to surface.
var ErrCircuitOpen = errors.New("circuit is open, publish suppressed")

// Publisher sends typed events through the transport under breaker
// protection. Every publish is gated by the topic's circuit and its outcome
// is fed back into the breaker.
type Publisher struct {
	client  ports.RealtimeClient
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// NewPublisher creates a breaker-guarded publisher.
func NewPublisher(client ports.RealtimeClient, breaker *CircuitBreaker, logger *slog.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if breaker == nil {
		return nil, errors.New("breaker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		client:  client,
		breaker: breaker,
		logger:  logger.With("component", "publisher"),
	}, nil
}

// Publish encodes and sends one event on the topic. It returns ErrCircuitOpen
// when the topic's circuit suppresses the send, and the transport error when
// the send itself fails; both outcomes are recorded in the breaker.
func (p *Publisher) Publish(ctx context.Context, key TopicKey, event Event) error {
	topic := key.String()

	if !p.breaker.Allow(topic) {
		p.logger.Debug("publish suppressed", "topic", topic)
		return ErrCircuitOpen
	}

	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, topic, payload); err != nil {
		p.breaker.RecordFailure(topic)
		p.logger.Warn("publish failed", "topic", topic, "error", err)
		return err
	}

	p.breaker.RecordSuccess(topic)
	return nil
}
