package engine

import (
	"errors"
	"fmt"

	"trackcore/geo"
	"trackcore/lifecycle"
	"trackcore/store"
	"trackcore/tracking"
)

// statusEmitter bridges the lifecycle machine's emitter interface to the EventBus.
type statusEmitter struct {
	bus *EventBus
}

func (e *statusEmitter) EmitStatusChanged(orderID int64, oldStatus, newStatus string, actor lifecycle.Actor) {
	e.bus.Emit(Event{Type: EventOrderStatusChanged, Payload: OrderStatusChangedEvent{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
	}})

	switch newStatus {
	case lifecycle.StatusDelivered:
		e.bus.Emit(Event{Type: EventOrderDelivered, Payload: OrderDeliveredEvent{
			OrderID: orderID,
			AgentID: actor.ID,
		}})
	case lifecycle.StatusCancelled:
		e.bus.Emit(Event{Type: EventOrderCancelled, Payload: OrderCancelledEvent{
			OrderID:   orderID,
			ActorRole: actor.Role,
			ActorID:   actor.ID,
		}})
	}
}

// orderSource exposes order metadata to the tracking layer. Delivery
// destination is the customer's address coordinates.
type orderSource struct {
	db *store.DB
}

func (s *orderSource) TrackingMeta(orderID int64) (tracking.OrderMeta, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tracking.OrderMeta{}, fmt.Errorf("order %d: %w", orderID, tracking.ErrUnknownOrder)
		}
		return tracking.OrderMeta{}, err
	}
	return tracking.OrderMeta{
		Destination: geo.Point{Lat: order.CustomerLat, Lon: order.CustomerLon},
		Status:      order.Status,
		AgentID:     order.AgentID,
	}, nil
}

// sampleSink persists the latest accepted sample per order.
type sampleSink struct {
	db *store.DB
}

func (s *sampleSink) PersistSample(orderID int64, sample tracking.Sample) error {
	return s.db.UpsertLocationSample(&store.LocationSample{
		OrderID:        orderID,
		Latitude:       sample.Lat,
		Longitude:      sample.Lon,
		SpeedKmh:       sample.SpeedKmh,
		HeadingDegrees: sample.HeadingDegrees,
		CapturedAt:     sample.CapturedAt,
	})
}
