package ports

import "context"

// InboundMessage is one raw payload received on a subscribed topic.
// Payloads are decoded exactly once at the application boundary into a typed
// event; raw bytes never travel past the broadcast package.
type InboundMessage struct {
	Topic   string
	Payload []byte
}

// Subscription is an open event stream for one topic. Closing it must stop
// delivery into Messages and release the underlying transport resources.
type Subscription interface {
	// Messages returns the stream of inbound payloads. The channel is closed
	// when the subscription is closed or the transport drops it.
	Messages() <-chan InboundMessage

	// Close tears the subscription down. Closing twice is a no-op.
	Close() error
}

// RealtimeClient is the pub/sub transport contract. Delivery is
// at-least-once and may reorder under retry; observers must treat status
// payloads as latest-wins, not as an append log.
type RealtimeClient interface {
	// Subscribe opens an event stream for the topic.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends one payload on the topic. A failure is returned as a
	// TransportError and is absorbed by the circuit breaker, never raised
	// to the driver directly.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Close releases the transport connection.
	Close() error
}
