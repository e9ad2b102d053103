package broadcast

import (
	"context"
	"strings"
	"sync"

	"dispatch/internal/core/ports"
)

// leaseMode distinguishes what a lease holds open.
type leaseMode int

const (
	leaseModePublish leaseMode = iota
	leaseModeSubscribe
)

// lease is one held topic. Publish leases carry no transport state of their
// own; subscribe leases own the underlying subscription.
type lease struct {
	key  TopicKey
	mode leaseMode
	sub  ports.Subscription
}

// LeaseManager tracks which broadcast topics are currently held. Acquire and
// Subscribe are idempotent per key, Release of an unknown key is a no-op, and
// ReleaseAllMatching tears down every lease whose key contains a fragment.
// The table is keyed by the topic's routing-key string form.
type LeaseManager struct {
	mu      sync.Mutex
	client  ports.RealtimeClient
	breaker *CircuitBreaker
	leases  map[string]*lease
}

// NewLeaseManager creates a lease table over the transport.
func NewLeaseManager(client ports.RealtimeClient, breaker *CircuitBreaker) *LeaseManager {
	return &LeaseManager{
		client:  client,
		breaker: breaker,
		leases:  make(map[string]*lease),
	}
}

// Acquire registers a publish lease for the topic. Acquiring a topic that is
// already held returns the existing lease unchanged.
func (m *LeaseManager) Acquire(key TopicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[key.String()]; ok {
		return
	}
	m.leases[key.String()] = &lease{key: key, mode: leaseModePublish}
}

// Subscribe opens a subscription lease for the topic and returns its message
// stream. Subscribing to a topic that is already held returns the stream of
// the existing lease without opening a second subscription.
func (m *LeaseManager) Subscribe(ctx context.Context, key TopicKey) (<-chan ports.InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.leases[key.String()]; ok && existing.sub != nil {
		return existing.sub.Messages(), nil
	}

	sub, err := m.client.Subscribe(ctx, key.String())
	if err != nil {
		return nil, err
	}
	m.leases[key.String()] = &lease{key: key, mode: leaseModeSubscribe, sub: sub}
	return sub.Messages(), nil
}

// Held reports whether the topic currently has a lease.
func (m *LeaseManager) Held(key TopicKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.leases[key.String()]
	return ok
}

// Release tears down the topic's lease. Releasing a topic that is not held
// is a no-op, so teardown paths may release unconditionally.
func (m *LeaseManager) Release(key TopicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.release(key.String())
}

// ReleaseAllMatching tears down every lease whose key contains the fragment.
// Passing a delivery id releases both its status and location topics in one
// call.
func (m *LeaseManager) ReleaseAllMatching(fragment string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var released int
	for key := range m.leases {
		if strings.Contains(key, fragment) {
			m.release(key)
			released++
		}
	}
	return released
}

// release assumes m.mu is held.
func (m *LeaseManager) release(key string) {
	held, ok := m.leases[key]
	if !ok {
		return
	}
	if held.sub != nil {
		_ = held.sub.Close()
	}
	delete(m.leases, key)
	if m.breaker != nil {
		m.breaker.Reset(key)
	}
}
