package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// Event kinds carried on the wire envelope.
const (
	eventKindStatus   = "status"
	eventKindLocation = "location"
	eventKindOffer    = "offer"
)

// Event is the decoded form of one inbound or outbound payload.
// It is a closed sum: StatusEvent, LocationEvent or OfferEvent.
type Event interface {
	isEvent()
}

// StatusEvent announces a status transition for a delivery. Coordinates are
// optional: a transition proceeds without them when no position fix was
// available. Observers must treat it as latest-wins, not as an append log.
type StatusEvent struct {
	DeliveryID string    `json:"delivery_id"`
	DriverID   string    `json:"driver_id"`
	Status     string    `json:"status"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	At         time.Time `json:"at"`
}

func (StatusEvent) isEvent() {}

// LocationEvent carries one position sample for an active delivery.
type LocationEvent struct {
	DeliveryID string    `json:"delivery_id"`
	DriverID   string    `json:"driver_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	SpeedKmh   float64   `json:"speed_kmh"`
	HeadingDeg float64   `json:"heading_deg"`
	AccuracyM  float64   `json:"accuracy_m"`
	At         time.Time `json:"at"`
}

func (LocationEvent) isEvent() {}

// OfferEvent announces a delivery addressed to a driver, pending
// accept/decline.
type OfferEvent struct {
	DeliveryID string    `json:"delivery_id"`
	DriverID   string    `json:"driver_id"`
	Status     string    `json:"status"`
	PickupLat  float64   `json:"pickup_lat"`
	PickupLon  float64   `json:"pickup_lon"`
	DropoffLat float64   `json:"dropoff_lat"`
	DropoffLon float64   `json:"dropoff_lon"`
	Price      float64   `json:"price"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

func (OfferEvent) isEvent() {}

// envelope is the wire frame around every payload.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Encode frames an event into its wire form.
func Encode(event Event) ([]byte, error) {
	var kind string
	switch event.(type) {
	case StatusEvent, *StatusEvent:
		kind = eventKindStatus
	case LocationEvent, *LocationEvent:
		kind = eventKindLocation
	case OfferEvent, *OfferEvent:
		kind = eventKindOffer
	default:
		return nil, errs.NewValueIsInvalidErrorWithCause("event",
			fmt.Errorf("unsupported event type %T", event))
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return json.Marshal(envelope{Kind: kind, Data: data})
}

// Decode parses one raw payload into its typed event. Decoding happens
// exactly once, here; nothing downstream touches raw bytes.
func Decode(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("payload", err)
	}

	switch env.Kind {
	case eventKindStatus:
		var event StatusEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			return nil, errs.NewValueIsInvalidErrorWithCause("status event", err)
		}
		return event, nil
	case eventKindLocation:
		var event LocationEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			return nil, errs.NewValueIsInvalidErrorWithCause("location event", err)
		}
		return event, nil
	case eventKindOffer:
		var event OfferEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			return nil, errs.NewValueIsInvalidErrorWithCause("offer event", err)
		}
		return event, nil
	default:
		return nil, errs.NewValueIsInvalidErrorWithCause("payload",
			fmt.Errorf("unknown event kind %q", env.Kind))
	}
}

// NewStatusEvent builds a StatusEvent from domain state. The sample is
// optional; when nil the event carries no coordinates.
func NewStatusEvent(d *delivery.Delivery, sample *kernel.LocationSample, at time.Time) StatusEvent {
	event := StatusEvent{
		DeliveryID: d.ID().String(),
		Status:     d.Status().String(),
		At:         at,
	}
	if driverID := d.Driver(); driverID != nil {
		event.DriverID = driverID.String()
	}
	if sample != nil {
		lat := sample.Point().Latitude()
		lon := sample.Point().Longitude()
		event.Latitude = &lat
		event.Longitude = &lon
	}
	return event
}

// NewLocationEvent builds a LocationEvent from a position sample.
func NewLocationEvent(deliveryID kernel.UUID, driverID kernel.UUID, sample kernel.LocationSample) LocationEvent {
	return LocationEvent{
		DeliveryID: deliveryID.String(),
		DriverID:   driverID.String(),
		Latitude:   sample.Point().Latitude(),
		Longitude:  sample.Point().Longitude(),
		SpeedKmh:   sample.SpeedKmh(),
		HeadingDeg: sample.HeadingDeg(),
		AccuracyM:  sample.AccuracyM(),
		At:         sample.TakenAt(),
	}
}

// DeliveryFromOfferEvent reconstructs the offered delivery aggregate from an
// inbound offer event.
func DeliveryFromOfferEvent(event OfferEvent) (*delivery.Delivery, error) {
	id, err := kernel.UUIDFromString(event.DeliveryID)
	if err != nil {
		return nil, err
	}
	driverID, err := kernel.UUIDFromString(event.DriverID)
	if err != nil {
		return nil, err
	}
	pickup, err := kernel.NewGeoPoint(event.PickupLat, event.PickupLon)
	if err != nil {
		return nil, err
	}
	dropoff, err := kernel.NewGeoPoint(event.DropoffLat, event.DropoffLon)
	if err != nil {
		return nil, err
	}
	status, err := delivery.StatusFromString(event.Status)
	if err != nil {
		return nil, err
	}

	var source delivery.AssignmentSource
	switch event.Source {
	case delivery.SourceFleet.String():
		source = delivery.SourceFleet
	default:
		source = delivery.SourceIndividual
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return delivery.RestoreDelivery(
		id, status, &driverID, pickup, dropoff, event.Price, source, createdAt, nil, nil)
}
