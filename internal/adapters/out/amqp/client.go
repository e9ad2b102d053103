// Package amqp implements the realtime pub/sub transport over a RabbitMQ topic
// exchange. Lease keys map directly to routing keys: delivery.status.<id>,
// delivery.location.<id> and driver.offers.<id>. Delivery is at-least-once;
// ordering under retry is not guaranteed.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName       = "dispatch_topic"
	connectAttempts    = 5
	connectBackoffBase = time.Second
)

// Client is a RabbitMQ-backed implementation of ports.RealtimeClient.
// One connection, one channel; subscriptions get exclusive auto-delete
// queues bound to the topic exchange.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient dials RabbitMQ and declares the topic exchange. Connection
// attempts are retried with exponential backoff before giving up.
func NewClient(url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "amqp_client")

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("rabbitmq connect failed", "attempt", attempt, "error", err)
		time.Sleep(connectBackoffBase * time.Duration(1<<(attempt-1)))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("connected to rabbitmq", "exchange", exchangeName)
	return &Client{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

// Publish sends one payload on the routing key. Failures come back as
// TransportError for the circuit breaker to absorb.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	err := c.channel.PublishWithContext(
		ctx,
		exchangeName,
		topic,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
		},
	)
	if err != nil {
		return errs.NewTransportError(topic, err)
	}

	return nil
}

// Subscribe binds an exclusive auto-delete queue to the topic and starts
// consuming into the returned subscription.
func (c *Client) Subscribe(ctx context.Context, topic string) (ports.Subscription, error) {
	queue, err := c.channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errs.NewTransportError(topic, err)
	}

	if err := c.channel.QueueBind(queue.Name, topic, exchangeName, false, nil); err != nil {
		return nil, errs.NewTransportError(topic, err)
	}

	deliveries, err := c.channel.Consume(
		queue.Name,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errs.NewTransportError(topic, err)
	}

	sub := &subscription{
		topic:    topic,
		queue:    queue.Name,
		channel:  c.channel,
		messages: make(chan ports.InboundMessage),
		done:     make(chan struct{}),
	}
	go sub.pump(ctx, deliveries)

	c.logger.Info("subscribed", "topic", topic, "queue", queue.Name)
	return sub, nil
}

// Close releases the channel and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.channel.Close(); err != nil {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}

// subscription is one consuming queue bound to a topic.
type subscription struct {
	topic    string
	queue    string
	channel  *amqp.Channel
	messages chan ports.InboundMessage

	closeOnce sync.Once
	done      chan struct{}
}

// pump forwards broker deliveries into the subscription channel until the
// consumer stream ends or the subscription is closed.
func (s *subscription) pump(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(s.messages)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			msg := ports.InboundMessage{Topic: s.topic, Payload: d.Body}
			select {
			case s.messages <- msg:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

// Messages returns the inbound payload stream.
func (s *subscription) Messages() <-chan ports.InboundMessage {
	return s.messages
}

// Close stops the pump and unbinds the queue. Closing twice is a no-op.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.channel.QueueUnbind(s.queue, s.topic, exchangeName, nil)
	})
	return err
}
