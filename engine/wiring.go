package engine

import (
	"time"

	"trackcore/protocol"
)

func (e *Engine) wireEventHandlers() {
	// Every committed transition is mirrored into the live session and
	// queued for the status event stream.
	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(OrderStatusChangedEvent)
		e.logFn("engine: order %d %s -> %s by %s", ev.OrderID, ev.OldStatus, ev.NewStatus, ev.ActorRole)
		e.broker.OnStatusChange(ev.OrderID, ev.NewStatus)
		e.enqueueStatusEvent(ev)
	}, EventOrderStatusChanged)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(OrderDeliveredEvent)
		e.logFn("engine: order %d delivered by agent %s", ev.OrderID, ev.AgentID)
	}, EventOrderDelivered)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(OrderCancelledEvent)
		e.logFn("engine: order %d cancelled by %s", ev.OrderID, ev.ActorRole)
	}, EventOrderCancelled)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s", ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}

// enqueueStatusEvent writes the transition to the outbox; the drainer
// publishes it to Kafka when the broker is reachable.
func (e *Engine) enqueueStatusEvent(ev OrderStatusChangedEvent) {
	if e.msgClient == nil {
		return
	}

	env, err := protocol.NewEnvelope(protocol.TypeStatusChanged,
		protocol.Address{Role: protocol.RoleCore, Node: e.cfg.Messaging.MQTT.ClientID},
		protocol.Address{},
		&protocol.StatusChanged{
			OrderID:    ev.OrderID,
			From:       ev.OldStatus,
			To:         ev.NewStatus,
			ActorRole:  ev.ActorRole,
			ActorID:    ev.ActorID,
			OccurredAt: time.Now().UTC(),
		})
	if err != nil {
		e.logFn("engine: status event for order %d: %v", ev.OrderID, err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode status event for order %d: %v", ev.OrderID, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.StatusEventsTopic, data, protocol.TypeStatusChanged, ev.OrderID); err != nil {
		e.logFn("engine: enqueue status event for order %d: %v", ev.OrderID, err)
	}
}
