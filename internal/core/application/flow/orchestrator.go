package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/application/broadcast"
	"dispatch/internal/core/application/offers"
	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

var (
	// ErrNoActiveDelivery is returned when advancing and no delivery is active.
	ErrNoActiveDelivery = errors.New("no active delivery")

	// ErrDeliveryInProgress is returned when accepting an offer while another
	// delivery is still active.
	ErrDeliveryInProgress = errors.New("another delivery is in progress")
)

// DriverState is the read-model snapshot behind the driver state endpoint.
type DriverState struct {
	DriverID         kernel.UUID
	Online           bool
	Tracking         bool
	Activity         driver.Activity
	ActiveDeliveryID *kernel.UUID
	ActiveStatus     *delivery.Status
}

// Orchestrator sequences the delivery lifecycle for one driver. It owns the
// active driver and active delivery, validates every move against the
// transition table, and ties status progression to broadcasting, persistence
// and teardown.
//
// Intermediate statuses are broadcast-only. Terminal statuses are persisted
// first and applied in memory only after the commit, so a failed terminal
// write can be retried with the same command.
type Orchestrator struct {
	drv         *driver.Driver
	coordinator *offers.Coordinator
	broadcaster *broadcast.Broadcaster
	publisher   *broadcast.Publisher
	leases      *broadcast.LeaseManager
	uowFactory  ports.UnitOfWorkFactory
	positions   ports.PositionSource
	presence    ports.PresenceStore
	notifier    ports.Notifier
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	active *delivery.Delivery
}

// NewOrchestrator creates the delivery flow orchestrator for one driver.
func NewOrchestrator(
	drv *driver.Driver,
	coordinator *offers.Coordinator,
	broadcaster *broadcast.Broadcaster,
	publisher *broadcast.Publisher,
	leases *broadcast.LeaseManager,
	uowFactory ports.UnitOfWorkFactory,
	positions ports.PositionSource,
	presence ports.PresenceStore,
	notifier ports.Notifier,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if err := drv.Validate(); err != nil {
		return nil, err
	}
	if coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	if broadcaster == nil {
		return nil, errors.New("broadcaster is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if leases == nil {
		return nil, errors.New("lease manager is required")
	}
	if uowFactory == nil {
		return nil, errors.New("unit of work factory is required")
	}
	if positions == nil {
		return nil, errors.New("position source is required")
	}
	if presence == nil {
		return nil, errors.New("presence store is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		drv:         drv,
		coordinator: coordinator,
		broadcaster: broadcaster,
		publisher:   publisher,
		leases:      leases,
		uowFactory:  uowFactory,
		positions:   positions,
		presence:    presence,
		notifier:    notifier,
		logger:      logger.With("component", "orchestrator"),
		now:         time.Now,
	}, nil
}

// GoOnline makes the driver available and starts the broadcast loop.
func (o *Orchestrator) GoOnline(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.drv.GoOnline(); err != nil {
		return err
	}
	if err := o.drv.StartTracking(); err != nil {
		return err
	}

	o.broadcaster.Start(ctx)
	o.logger.Info("driver online", "driver_id", o.drv.ID().String())
	return nil
}

// GoOffline withdraws the driver. The broadcast loop stops and the presence
// record is cleared; an active delivery keeps its leases so the flow can
// resume if the driver comes back.
func (o *Orchestrator) GoOffline(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.drv.GoOffline()
	o.broadcaster.Stop()

	if err := o.presence.Clear(ctx, o.drv.ID()); err != nil {
		o.logger.Warn("presence clear failed", "error", err)
	}

	o.logger.Info("driver offline", "driver_id", o.drv.ID().String())
	return nil
}

// State returns a snapshot of the driver and the active delivery.
func (o *Orchestrator) State() DriverState {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := DriverState{
		DriverID: o.drv.ID(),
		Online:   o.drv.IsOnline(),
		Tracking: o.drv.IsTracking(),
		Activity: driver.DeriveActivity(o.drv, o.active != nil),
	}
	if o.active != nil {
		id := o.active.ID()
		status := o.active.Status()
		state.ActiveDeliveryID = &id
		state.ActiveStatus = &status
	}
	return state
}

// ActiveDelivery returns the in-progress delivery, or nil when idle.
func (o *Orchestrator) ActiveDelivery() *delivery.Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.active
}

// AcceptOffer claims the offered delivery and, on a won claim, promotes it to
// the active delivery: status and location leases are acquired, the scheduler
// switches to active cadence, the Assigned status is broadcast and the
// delivery immediately heads to pickup, broadcast as a second status update.
func (o *Orchestrator) AcceptOffer(ctx context.Context, command offers.AcceptOfferCommand) (*delivery.Delivery, error) {
	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrDeliveryInProgress
	}
	if !o.drv.IsOnline() {
		o.mu.Unlock()
		return nil, driver.ErrDriverIsOffline
	}
	o.mu.Unlock()

	claimed, err := o.coordinator.Accept(ctx, command)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.active = claimed
	o.mu.Unlock()

	deliveryID := claimed.ID()
	o.leases.Acquire(broadcast.StatusTopic(deliveryID))
	o.leases.Acquire(broadcast.LocationTopic(deliveryID))
	o.broadcaster.SetActiveDelivery(&deliveryID)

	sample := o.bestEffortPosition(ctx)
	o.publishStatus(ctx, claimed, sample)

	// A won claim starts moving right away. Observers see the claim first,
	// then the heading update.
	if err := claimed.Advance(delivery.HeadingToPickup, o.now()); err != nil {
		o.logger.Error("could not head to pickup after claim",
			"delivery_id", deliveryID.String(), "error", err)
	} else {
		o.publishStatus(ctx, claimed, sample)
	}
	o.notifier.StatusChanged(deliveryID, claimed.Status())

	o.logger.Info("delivery accepted", "delivery_id", deliveryID.String())
	return claimed, nil
}

// DeclineOffer refuses the offered delivery.
func (o *Orchestrator) DeclineOffer(ctx context.Context, command offers.DeclineOfferCommand) error {
	return o.coordinator.Decline(ctx, command)
}

// Advance moves the active delivery to the requested next status.
//
// Intermediate moves mutate in memory, broadcast, and for pickup arrival
// append a best-effort checkpoint. Terminal moves persist the final row and
// the completion checkpoint in one transaction before anything else; a failed
// commit surfaces as a PersistenceError with the in-memory status unchanged.
// After a terminal move the per-delivery resources are torn down.
func (o *Orchestrator) Advance(ctx context.Context, command AdvanceDeliveryCommand) error {
	if err := command.Validate(); err != nil {
		return err
	}
	next := command.Next()

	o.mu.Lock()
	active := o.active
	o.mu.Unlock()
	if active == nil {
		return ErrNoActiveDelivery
	}

	sample := o.bestEffortPosition(ctx)
	at := o.now()

	if next.IsTerminal() {
		return o.finishDelivery(ctx, active, next, sample, at)
	}

	if err := active.Advance(next, at); err != nil {
		return err
	}

	o.publishStatus(ctx, active, sample)

	if next == delivery.AtPickup {
		o.appendCheckpoint(ctx, active, ports.CheckpointPickupArrival, sample, at)
	}

	o.notifier.StatusChanged(active.ID(), next)
	o.logger.Info("delivery advanced",
		"delivery_id", active.ID().String(), "status", next.String())
	return nil
}

// finishDelivery runs the terminal path: validate, persist atomically, apply
// in memory, broadcast, tear down, notify.
func (o *Orchestrator) finishDelivery(
	ctx context.Context,
	active *delivery.Delivery,
	next delivery.Status,
	sample *kernel.LocationSample,
	at time.Time,
) error {
	if _, err := active.Status().Transition(next); err != nil {
		return err
	}

	final, err := delivery.RestoreDelivery(
		active.ID(), next, active.Driver(),
		active.Pickup(), active.Dropoff(), active.Price(), active.Source(),
		active.CreatedAt(), active.AssignedAt(), &at)
	if err != nil {
		return err
	}

	if err := o.persistFinal(ctx, final, sample, at); err != nil {
		return err
	}

	if err := active.Advance(next, at); err != nil {
		return err
	}

	o.publishStatus(ctx, active, sample)
	o.teardown(active.ID())

	o.notifier.StatusChanged(active.ID(), next)
	o.logger.Info("delivery finished",
		"delivery_id", active.ID().String(), "status", next.String())
	return nil
}

// persistFinal writes the terminal row and, for a completed delivery with a
// known position, the completion checkpoint in one transaction.
func (o *Orchestrator) persistFinal(
	ctx context.Context,
	final *delivery.Delivery,
	sample *kernel.LocationSample,
	at time.Time,
) error {
	uow := o.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return errs.NewPersistenceError("begin", err)
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err := uow.DeliveryRepository().UpdateFinal(ctx, final); err != nil {
		return err
	}

	if final.Status() == delivery.Delivered && sample != nil {
		checkpoint := ports.Checkpoint{
			ID:         kernel.NewUUID(),
			DeliveryID: final.ID(),
			DriverID:   o.drv.ID(),
			Event:      ports.CheckpointDeliveryCompleted,
			Sample:     *sample,
			RecordedAt: at,
		}
		if err := uow.CheckpointRepository().Append(ctx, checkpoint); err != nil {
			return err
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return errs.NewPersistenceError("commit", err)
	}

	return nil
}

// teardown releases every per-delivery resource. The active reference is
// nulled before the scheduler and the leases are touched, so a late timer or
// sample finds nothing to act on.
func (o *Orchestrator) teardown(deliveryID kernel.UUID) {
	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()

	o.broadcaster.SetActiveDelivery(nil)
	o.leases.ReleaseAllMatching(deliveryID.String())
}

// bestEffortPosition returns the current position fix, or nil when the
// source cannot produce one. A missing fix never blocks a transition.
func (o *Orchestrator) bestEffortPosition(ctx context.Context) *kernel.LocationSample {
	sample, err := o.positions.Current(ctx)
	if err != nil {
		o.logger.Warn("position unavailable, proceeding without coordinates", "error", err)
		return nil
	}

	o.mu.Lock()
	if err := o.drv.RecordPosition(sample); err != nil {
		o.logger.Warn("dropping invalid position sample", "error", err)
	}
	o.mu.Unlock()

	return &sample
}

// publishStatus broadcasts the delivery's current status. Failures are
// absorbed by the circuit breaker and never block the transition.
func (o *Orchestrator) publishStatus(ctx context.Context, d *delivery.Delivery, sample *kernel.LocationSample) {
	event := broadcast.NewStatusEvent(d, sample, o.now())
	if err := o.publisher.Publish(ctx, broadcast.StatusTopic(d.ID()), event); err != nil {
		if !errors.Is(err, broadcast.ErrCircuitOpen) {
			o.logger.Warn("status publish failed",
				"delivery_id", d.ID().String(), "error", err)
		}
	}
}

// appendCheckpoint durably records a milestone sample. Best-effort: a failure
// or a missing fix is logged and the transition proceeds.
func (o *Orchestrator) appendCheckpoint(
	ctx context.Context,
	d *delivery.Delivery,
	event ports.CheckpointEvent,
	sample *kernel.LocationSample,
	at time.Time,
) {
	if sample == nil {
		o.logger.Warn("skipping checkpoint, no position fix",
			"delivery_id", d.ID().String(), "event", string(event))
		return
	}

	uow := o.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		o.logger.Warn("checkpoint write failed", "event", string(event), "error", err)
		return
	}

	checkpoint := ports.Checkpoint{
		ID:         kernel.NewUUID(),
		DeliveryID: d.ID(),
		DriverID:   o.drv.ID(),
		Event:      event,
		Sample:     *sample,
		RecordedAt: at,
	}
	if err := uow.CheckpointRepository().Append(ctx, checkpoint); err != nil {
		_ = uow.Rollback(ctx)
		o.logger.Warn("checkpoint write failed", "event", string(event), "error", err)
		return
	}
	if err := uow.Commit(ctx); err != nil {
		o.logger.Warn("checkpoint commit failed", "event", string(event), "error", err)
	}
}

// RestoreActiveDelivery reloads this driver's in-progress delivery from the
// remote store after a restart and rewires the per-delivery resources. The
// intermediate progress made before the restart is not recoverable; the
// delivery resumes from its last persisted non-terminal row.
func (o *Orchestrator) RestoreActiveDelivery(ctx context.Context) error {
	uow := o.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	actives, err := uow.DeliveryRepository().GetAllActiveForDriver(ctx, o.drv.ID())
	if err != nil {
		return err
	}
	if len(actives) == 0 {
		return nil
	}

	restored := actives[0]
	if len(actives) > 1 {
		o.logger.Warn("multiple active deliveries found, resuming the first",
			"count", len(actives))
	}

	o.mu.Lock()
	o.active = restored
	o.mu.Unlock()

	deliveryID := restored.ID()
	o.leases.Acquire(broadcast.StatusTopic(deliveryID))
	o.leases.Acquire(broadcast.LocationTopic(deliveryID))
	o.broadcaster.SetActiveDelivery(&deliveryID)

	o.logger.Info("active delivery restored",
		"delivery_id", deliveryID.String(), "status", restored.Status().String())
	return nil
}
