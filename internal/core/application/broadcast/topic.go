package broadcast

import (
	"fmt"

	"dispatch/internal/core/domain/model/kernel"
)

// TopicKind identifies the class of a broadcast topic.
type TopicKind string

const (
	// KindDeliveryStatus carries status transitions for one delivery.
	KindDeliveryStatus TopicKind = "delivery.status"
	// KindDeliveryLocation carries position samples for one delivery.
	KindDeliveryLocation TopicKind = "delivery.location"
	// KindDriverOffers carries inbound offer events for one driver.
	KindDriverOffers TopicKind = "driver.offers"
)

// TopicKey identifies one broadcast topic by kind and subject id.
// Its string form doubles as the transport routing key and the lease table
// key, e.g. "delivery.status.550e8400-e29b-41d4-a716-446655440000".
type TopicKey struct {
	Kind TopicKind
	ID   kernel.UUID
}

// String returns the routing-key form of the topic.
func (k TopicKey) String() string {
	return fmt.Sprintf("%s.%s", k.Kind, k.ID)
}

// StatusTopic returns the status topic for a delivery.
func StatusTopic(deliveryID kernel.UUID) TopicKey {
	return TopicKey{Kind: KindDeliveryStatus, ID: deliveryID}
}

// LocationTopic returns the location topic for a delivery.
func LocationTopic(deliveryID kernel.UUID) TopicKey {
	return TopicKey{Kind: KindDeliveryLocation, ID: deliveryID}
}

// OffersTopic returns the offers topic for a driver.
func OffersTopic(driverID kernel.UUID) TopicKey {
	return TopicKey{Kind: KindDriverOffers, ID: driverID}
}
