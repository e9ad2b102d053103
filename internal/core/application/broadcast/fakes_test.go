package broadcast

import (
	"context"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

type publishedMessage struct {
	Topic   string
	Payload []byte
}

type fakeSubscription struct {
	mu     sync.Mutex
	msgs   chan ports.InboundMessage
	closed bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{msgs: make(chan ports.InboundMessage, 16)}
}

func (s *fakeSubscription) Messages() <-chan ports.InboundMessage {
	return s.msgs
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.msgs)
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

type fakeRealtimeClient struct {
	mu             sync.Mutex
	published      []publishedMessage
	failingTopics  map[string]bool
	subs           map[string]*fakeSubscription
	subscribeCalls int
}

func newFakeRealtimeClient() *fakeRealtimeClient {
	return &fakeRealtimeClient{
		failingTopics: make(map[string]bool),
		subs:          make(map[string]*fakeSubscription),
	}
}

func (c *fakeRealtimeClient) failTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failingTopics[topic] = true
}

func (c *fakeRealtimeClient) healTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.failingTopics, topic)
}

func (c *fakeRealtimeClient) Subscribe(_ context.Context, topic string) (ports.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribeCalls++
	sub := newFakeSubscription()
	c.subs[topic] = sub
	return sub, nil
}

func (c *fakeRealtimeClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failingTopics[topic] {
		return errs.NewTransportError(topic, nil)
	}
	c.published = append(c.published, publishedMessage{Topic: topic, Payload: payload})
	return nil
}

func (c *fakeRealtimeClient) Close() error {
	return nil
}

func (c *fakeRealtimeClient) publishedOn(topic string) []publishedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []publishedMessage
	for _, msg := range c.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

type presenceRecord struct {
	DriverID kernel.UUID
	Sample   kernel.LocationSample
	Activity driver.Activity
}

type fakePresenceStore struct {
	mu      sync.Mutex
	upserts []presenceRecord
	cleared []kernel.UUID
	err     error
}

func (p *fakePresenceStore) Upsert(_ context.Context, driverID kernel.UUID, sample kernel.LocationSample, activity driver.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.upserts = append(p.upserts, presenceRecord{DriverID: driverID, Sample: sample, Activity: activity})
	return nil
}

func (p *fakePresenceStore) Clear(_ context.Context, driverID kernel.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cleared = append(p.cleared, driverID)
	return nil
}

func (p *fakePresenceStore) upsertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.upserts)
}

var sampleClock = mustParseTime("2026-08-30T12:00:00Z")

func mustParseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func mustSample(speedKmh float64) kernel.LocationSample {
	point, err := kernel.NewGeoPoint(55.751244, 37.618423)
	if err != nil {
		panic(err)
	}
	sample, err := kernel.NewLocationSample(point, speedKmh, 90, 5, sampleClock)
	if err != nil {
		panic(err)
	}
	return sample
}
