package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"dispatch/internal/core/application/broadcast"
	"dispatch/internal/core/application/offers"
	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

type publishedMessage struct {
	Topic   string
	Payload []byte
}

type fakeRealtimeClient struct {
	mu        sync.Mutex
	published []publishedMessage
}

func (c *fakeRealtimeClient) Subscribe(context.Context, string) (ports.Subscription, error) {
	return nil, nil
}

func (c *fakeRealtimeClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published = append(c.published, publishedMessage{Topic: topic, Payload: payload})
	return nil
}

func (c *fakeRealtimeClient) Close() error { return nil }

func (c *fakeRealtimeClient) statusEventsOn(t *testing.T, topic string) []broadcast.StatusEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []broadcast.StatusEvent
	for _, msg := range c.published {
		if msg.Topic != topic {
			continue
		}
		decoded, err := broadcast.Decode(msg.Payload)
		require.NoError(t, err)
		event, ok := decoded.(broadcast.StatusEvent)
		require.True(t, ok)
		out = append(out, event)
	}
	return out
}

type fakeDeliveryRepository struct {
	mu             sync.Mutex
	finalWrites    []*delivery.Delivery
	updateFinalErr error
	actives        []*delivery.Delivery
}

func (r *fakeDeliveryRepository) Add(context.Context, *delivery.Delivery) error { return nil }

func (r *fakeDeliveryRepository) Get(context.Context, kernel.UUID) (*delivery.Delivery, error) {
	return nil, errs.NewObjectNotFoundError("deliveryID", nil)
}

func (r *fakeDeliveryRepository) Claim(_ context.Context, deliveryID kernel.UUID, driverID kernel.UUID) (*delivery.Delivery, error) {
	pickup, _ := kernel.NewGeoPoint(55.75, 37.61)
	dropoff, _ := kernel.NewGeoPoint(55.76, 37.62)
	return delivery.RestoreDelivery(
		deliveryID, delivery.Assigned, &driverID, pickup, dropoff,
		12.5, delivery.SourceIndividual, baseTime, &baseTime, nil)
}

func (r *fakeDeliveryRepository) Release(context.Context, kernel.UUID, kernel.UUID) error {
	return nil
}

func (r *fakeDeliveryRepository) UpdateFinal(_ context.Context, aggregate *delivery.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateFinalErr != nil {
		return r.updateFinalErr
	}
	r.finalWrites = append(r.finalWrites, aggregate)
	return nil
}

func (r *fakeDeliveryRepository) GetAllActiveForDriver(context.Context, kernel.UUID) ([]*delivery.Delivery, error) {
	return r.actives, nil
}

type fakeCheckpointRepository struct {
	mu        sync.Mutex
	appended  []ports.Checkpoint
	appendErr error
}

func (r *fakeCheckpointRepository) Append(_ context.Context, checkpoint ports.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.appendErr != nil {
		return r.appendErr
	}
	r.appended = append(r.appended, checkpoint)
	return nil
}

func (r *fakeCheckpointRepository) GetAllForDelivery(context.Context, kernel.UUID) ([]ports.Checkpoint, error) {
	return r.appended, nil
}

type fakeUnitOfWork struct {
	deliveries  *fakeDeliveryRepository
	checkpoints *fakeCheckpointRepository
	commitErr   error
	commits     int
	rollbacks   int
}

func (u *fakeUnitOfWork) Begin(context.Context) error { return nil }

func (u *fakeUnitOfWork) Commit(context.Context) error {
	if u.commitErr != nil {
		return u.commitErr
	}
	u.commits++
	return nil
}

func (u *fakeUnitOfWork) Rollback(context.Context) error {
	u.rollbacks++
	return nil
}

func (u *fakeUnitOfWork) DeliveryRepository() ports.DeliveryRepository { return u.deliveries }

func (u *fakeUnitOfWork) CheckpointRepository() ports.CheckpointRepository { return u.checkpoints }

type fakeUoWFactory struct {
	uow *fakeUnitOfWork
}

func (f *fakeUoWFactory) Create() ports.UnitOfWork { return f.uow }

type fakePositionSource struct {
	mu         sync.Mutex
	sample     kernel.LocationSample
	currentErr error
}

func (s *fakePositionSource) Current(context.Context) (kernel.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentErr != nil {
		return kernel.LocationSample{}, s.currentErr
	}
	return s.sample, nil
}

func (s *fakePositionSource) Watch(ctx context.Context) (<-chan kernel.LocationSample, <-chan error, error) {
	samples := make(chan kernel.LocationSample)
	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		close(samples)
	}()
	return samples, errCh, nil
}

type fakePresenceStore struct {
	mu      sync.Mutex
	cleared int
}

func (p *fakePresenceStore) Upsert(context.Context, kernel.UUID, kernel.LocationSample, driver.Activity) error {
	return nil
}

func (p *fakePresenceStore) Clear(context.Context, kernel.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cleared++
	return nil
}

type fakeNotifier struct {
	mu             sync.Mutex
	offersReceived int
	statusChanges  []delivery.Status
	errorMessages  []string
}

func (n *fakeNotifier) OfferReceived(kernel.UUID, int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.offersReceived++
}

func (n *fakeNotifier) StatusChanged(_ kernel.UUID, status delivery.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.statusChanges = append(n.statusChanges, status)
}

func (n *fakeNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.errorMessages = append(n.errorMessages, message)
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	coordinator  *offers.Coordinator
	broadcaster  *broadcast.Broadcaster
	leases       *broadcast.LeaseManager
	client       *fakeRealtimeClient
	repo         *fakeDeliveryRepository
	checkpoints  *fakeCheckpointRepository
	uow          *fakeUnitOfWork
	positions    *fakePositionSource
	presence     *fakePresenceStore
	notifier     *fakeNotifier
	driverID     kernel.UUID
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	f := &orchestratorFixture{
		client:      &fakeRealtimeClient{},
		repo:        &fakeDeliveryRepository{},
		checkpoints: &fakeCheckpointRepository{},
		positions:   &fakePositionSource{sample: mustSample(t, 30)},
		presence:    &fakePresenceStore{},
		notifier:    &fakeNotifier{},
		driverID:    kernel.NewUUID(),
	}
	f.uow = &fakeUnitOfWork{deliveries: f.repo, checkpoints: f.checkpoints}

	breaker := broadcast.NewCircuitBreaker()
	publisher, err := broadcast.NewPublisher(f.client, breaker, nil)
	require.NoError(t, err)
	f.leases = broadcast.NewLeaseManager(f.client, breaker)

	f.broadcaster, err = broadcast.NewBroadcaster(f.driverID, f.positions, publisher, f.presence, nil)
	require.NoError(t, err)
	t.Cleanup(f.broadcaster.Stop)

	f.coordinator, err = offers.NewCoordinator(f.driverID, f.repo, f.leases, f.notifier, nil)
	require.NoError(t, err)

	drv, err := driver.NewDriver(f.driverID, "Alice", true)
	require.NoError(t, err)

	f.orchestrator, err = NewOrchestrator(
		drv, f.coordinator, f.broadcaster, publisher, f.leases,
		&fakeUoWFactory{uow: f.uow}, f.positions, f.presence, f.notifier, nil)
	require.NoError(t, err)

	return f
}

func mustSample(t *testing.T, speedKmh float64) kernel.LocationSample {
	t.Helper()

	point, err := kernel.NewGeoPoint(55.751244, 37.618423)
	require.NoError(t, err)
	sample, err := kernel.NewLocationSample(point, speedKmh, 90, 5, baseTime)
	require.NoError(t, err)
	return sample
}

// acceptDelivery drives the fixture through offer receipt and acceptance.
func (f *orchestratorFixture) acceptDelivery(t *testing.T) kernel.UUID {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.orchestrator.GoOnline(ctx))

	deliveryID := kernel.NewUUID()
	f.coordinator.HandleOfferEvent(broadcast.OfferEvent{
		DeliveryID: deliveryID.String(),
		DriverID:   f.driverID.String(),
		Status:     delivery.Offered.String(),
		PickupLat:  55.75, PickupLon: 37.61,
		DropoffLat: 55.76, DropoffLon: 37.62,
		Price:     12.5,
		Source:    delivery.SourceIndividual.String(),
		CreatedAt: baseTime,
	})

	cmd, err := offers.NewAcceptOfferCommand(deliveryID)
	require.NoError(t, err)
	_, err = f.orchestrator.AcceptOffer(ctx, cmd)
	require.NoError(t, err)

	return deliveryID
}

func (f *orchestratorFixture) advance(t *testing.T, next delivery.Status) error {
	t.Helper()

	cmd, err := NewAdvanceDeliveryCommand(next)
	require.NoError(t, err)
	return f.orchestrator.Advance(context.Background(), cmd)
}

func TestOrchestrator_AcceptOffer(t *testing.T) {
	t.Run("won claim promotes the delivery to active and heads to pickup", func(t *testing.T) {
		f := newOrchestratorFixture(t)

		deliveryID := f.acceptDelivery(t)

		active := f.orchestrator.ActiveDelivery()
		require.NotNil(t, active)
		assert.Equal(t, delivery.HeadingToPickup, active.Status())
		assert.True(t, f.leases.Held(broadcast.StatusTopic(deliveryID)))
		assert.True(t, f.leases.Held(broadcast.LocationTopic(deliveryID)))
		require.NotNil(t, f.broadcaster.ActiveDelivery())
		assert.True(t, f.broadcaster.ActiveDelivery().IsEqual(deliveryID))

		events := f.client.statusEventsOn(t, broadcast.StatusTopic(deliveryID).String())
		require.Len(t, events, 2)
		assert.Equal(t, delivery.Assigned.String(), events[0].Status)
		assert.Equal(t, delivery.HeadingToPickup.String(), events[1].Status)
	})

	t.Run("accept while another delivery is active is rejected", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.acceptDelivery(t)

		cmd, err := offers.NewAcceptOfferCommand(kernel.NewUUID())
		require.NoError(t, err)
		_, err = f.orchestrator.AcceptOffer(context.Background(), cmd)

		assert.ErrorIs(t, err, ErrDeliveryInProgress)
	})

	t.Run("offline driver cannot accept", func(t *testing.T) {
		f := newOrchestratorFixture(t)

		cmd, err := offers.NewAcceptOfferCommand(kernel.NewUUID())
		require.NoError(t, err)
		_, err = f.orchestrator.AcceptOffer(context.Background(), cmd)

		assert.ErrorIs(t, err, driver.ErrDriverIsOffline)
	})
}

func TestOrchestrator_Advance(t *testing.T) {
	t.Run("intermediate statuses broadcast but never persist", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)

		require.NoError(t, f.advance(t, delivery.AtPickup))
		require.NoError(t, f.advance(t, delivery.Collected))

		events := f.client.statusEventsOn(t, broadcast.StatusTopic(deliveryID).String())
		require.Len(t, events, 4)
		assert.Equal(t, delivery.AtPickup.String(), events[2].Status)
		assert.Equal(t, delivery.Collected.String(), events[3].Status)
		assert.Empty(t, f.repo.finalWrites)
		assert.Zero(t, f.uow.commits)
	})

	t.Run("skipping a status is rejected without side effects", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)
		before := len(f.client.statusEventsOn(t, broadcast.StatusTopic(deliveryID).String()))

		err := f.advance(t, delivery.Collected)

		assert.ErrorIs(t, err, errs.ErrStatusTransition)
		assert.Equal(t, delivery.HeadingToPickup, f.orchestrator.ActiveDelivery().Status())
		assert.Len(t, f.client.statusEventsOn(t, broadcast.StatusTopic(deliveryID).String()), before)
	})

	t.Run("pickup arrival records a checkpoint", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)

		require.NoError(t, f.advance(t, delivery.AtPickup))

		require.Len(t, f.checkpoints.appended, 1)
		checkpoint := f.checkpoints.appended[0]
		assert.Equal(t, ports.CheckpointPickupArrival, checkpoint.Event)
		assert.True(t, checkpoint.DeliveryID.IsEqual(deliveryID))
		assert.True(t, checkpoint.DriverID.IsEqual(f.driverID))
	})

	t.Run("pickup checkpoint failure does not block the transition", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.acceptDelivery(t)
		f.checkpoints.appendErr = errs.NewPersistenceError("append", nil)

		require.NoError(t, f.advance(t, delivery.AtPickup))

		assert.Equal(t, delivery.AtPickup, f.orchestrator.ActiveDelivery().Status())
	})

	t.Run("missing position fix skips the checkpoint but not the move", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)
		f.positions.currentErr = errs.NewPositionUnavailableError(nil)

		require.NoError(t, f.advance(t, delivery.AtPickup))

		assert.Empty(t, f.checkpoints.appended)
		events := f.client.statusEventsOn(t, broadcast.StatusTopic(deliveryID).String())
		last := events[len(events)-1]
		assert.Equal(t, delivery.AtPickup.String(), last.Status)
		assert.Nil(t, last.Latitude)
		assert.Nil(t, last.Longitude)
	})

	t.Run("advance without an active delivery is rejected", func(t *testing.T) {
		f := newOrchestratorFixture(t)

		err := f.advance(t, delivery.HeadingToPickup)

		assert.ErrorIs(t, err, ErrNoActiveDelivery)
	})
}

func TestOrchestrator_TerminalStatuses(t *testing.T) {
	progressToAtDropoff := func(t *testing.T, f *orchestratorFixture) {
		t.Helper()
		for _, next := range []delivery.Status{
			delivery.AtPickup, delivery.Collected,
			delivery.HeadingToDropoff, delivery.AtDropoff,
		} {
			require.NoError(t, f.advance(t, next))
		}
	}

	t.Run("delivered persists the final row and the completion checkpoint atomically", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)
		progressToAtDropoff(t, f)
		commitsBefore := f.uow.commits

		require.NoError(t, f.advance(t, delivery.Delivered))

		require.Len(t, f.repo.finalWrites, 1)
		final := f.repo.finalWrites[0]
		assert.Equal(t, delivery.Delivered, final.Status())
		assert.True(t, final.ID().IsEqual(deliveryID))
		assert.NotNil(t, final.CompletedAt())

		var completion []ports.Checkpoint
		for _, checkpoint := range f.checkpoints.appended {
			if checkpoint.Event == ports.CheckpointDeliveryCompleted {
				completion = append(completion, checkpoint)
			}
		}
		require.Len(t, completion, 1)
		assert.Equal(t, commitsBefore+1, f.uow.commits, "final row and checkpoint share one transaction")
	})

	t.Run("terminal status tears down the per-delivery resources", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)
		progressToAtDropoff(t, f)

		require.NoError(t, f.advance(t, delivery.Delivered))

		assert.Nil(t, f.orchestrator.ActiveDelivery())
		assert.Nil(t, f.broadcaster.ActiveDelivery())
		assert.False(t, f.leases.Held(broadcast.StatusTopic(deliveryID)))
		assert.False(t, f.leases.Held(broadcast.LocationTopic(deliveryID)))
	})

	t.Run("failed terminal write surfaces and can be retried", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)
		progressToAtDropoff(t, f)
		f.repo.updateFinalErr = errs.NewPersistenceError("update", nil)

		err := f.advance(t, delivery.Delivered)

		assert.ErrorIs(t, err, errs.ErrPersistence)
		assert.Equal(t, delivery.AtDropoff, f.orchestrator.ActiveDelivery().Status(),
			"in-memory status unchanged after a failed terminal write")
		assert.True(t, f.leases.Held(broadcast.StatusTopic(deliveryID)))

		f.repo.updateFinalErr = nil
		require.NoError(t, f.advance(t, delivery.Delivered))
		assert.Nil(t, f.orchestrator.ActiveDelivery())
	})

	t.Run("cancellation is reachable from any intermediate status", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.acceptDelivery(t)

		require.NoError(t, f.advance(t, delivery.Cancelled))

		require.Len(t, f.repo.finalWrites, 1)
		assert.Equal(t, delivery.Cancelled, f.repo.finalWrites[0].Status())
		assert.Empty(t, f.checkpoints.appended, "no completion checkpoint for a cancelled delivery")
		assert.Nil(t, f.orchestrator.ActiveDelivery())
	})

	t.Run("terminal statuses are absorbing", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.acceptDelivery(t)
		require.NoError(t, f.advance(t, delivery.Cancelled))

		err := f.advance(t, delivery.HeadingToPickup)

		assert.ErrorIs(t, err, ErrNoActiveDelivery)
	})
}

func TestOrchestrator_OnlineOffline(t *testing.T) {
	t.Run("going offline clears the presence record", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		require.NoError(t, f.orchestrator.GoOnline(context.Background()))

		require.NoError(t, f.orchestrator.GoOffline(context.Background()))

		assert.Equal(t, 1, f.presence.cleared)
		state := f.orchestrator.State()
		assert.False(t, state.Online)
		assert.False(t, state.Tracking)
	})

	t.Run("state reflects the active delivery", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := f.acceptDelivery(t)

		state := f.orchestrator.State()

		assert.True(t, state.Online)
		assert.Equal(t, driver.ActivityDelivering, state.Activity)
		require.NotNil(t, state.ActiveDeliveryID)
		assert.True(t, state.ActiveDeliveryID.IsEqual(deliveryID))
		require.NotNil(t, state.ActiveStatus)
		assert.Equal(t, delivery.HeadingToPickup, *state.ActiveStatus)
	})
}

func TestOrchestrator_RestoreActiveDelivery(t *testing.T) {
	t.Run("resumes the persisted in-progress delivery after a restart", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		deliveryID := kernel.NewUUID()
		pickup, _ := kernel.NewGeoPoint(55.75, 37.61)
		dropoff, _ := kernel.NewGeoPoint(55.76, 37.62)
		restored, err := delivery.RestoreDelivery(
			deliveryID, delivery.Assigned, &f.driverID, pickup, dropoff,
			12.5, delivery.SourceIndividual, baseTime, &baseTime, nil)
		require.NoError(t, err)
		f.repo.actives = []*delivery.Delivery{restored}

		require.NoError(t, f.orchestrator.RestoreActiveDelivery(context.Background()))

		active := f.orchestrator.ActiveDelivery()
		require.NotNil(t, active)
		assert.True(t, active.ID().IsEqual(deliveryID))
		assert.True(t, f.leases.Held(broadcast.StatusTopic(deliveryID)))
		require.NotNil(t, f.broadcaster.ActiveDelivery())
	})

	t.Run("restored assigned delivery can jump straight to pickup arrival", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		pickup, _ := kernel.NewGeoPoint(55.75, 37.61)
		dropoff, _ := kernel.NewGeoPoint(55.76, 37.62)
		restored, err := delivery.RestoreDelivery(
			kernel.NewUUID(), delivery.Assigned, &f.driverID, pickup, dropoff,
			12.5, delivery.SourceIndividual, baseTime, &baseTime, nil)
		require.NoError(t, err)
		f.repo.actives = []*delivery.Delivery{restored}
		require.NoError(t, f.orchestrator.RestoreActiveDelivery(context.Background()))

		require.NoError(t, f.advance(t, delivery.AtPickup))

		assert.Equal(t, delivery.AtPickup, f.orchestrator.ActiveDelivery().Status())
	})

	t.Run("nothing to restore leaves the orchestrator idle", func(t *testing.T) {
		f := newOrchestratorFixture(t)

		require.NoError(t, f.orchestrator.RestoreActiveDelivery(context.Background()))

		assert.Nil(t, f.orchestrator.ActiveDelivery())
	})
}
