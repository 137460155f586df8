package engine

import (
	"sync"
	"time"
)

type EventType int

type SubscriberID int

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type handlerEntry struct {
	fn    func(Event)
	types map[EventType]struct{} // nil matches every type
}

// EventBus is the in-process fan-out between the lifecycle machine and
// everything that reacts to transitions. Handlers run synchronously on
// the emitting goroutine, in subscription order.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[SubscriberID]handlerEntry
	order    []SubscriberID
	nextID   SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[SubscriberID]handlerEntry)}
}

// Subscribe registers a handler for the listed event types. With no
// types given the handler receives every event.
func (eb *EventBus) Subscribe(fn func(Event), types ...EventType) SubscriberID {
	var filter map[EventType]struct{}
	if len(types) > 0 {
		filter = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.handlers[id] = handlerEntry{fn: fn, types: filter}
	eb.order = append(eb.order, id)
	return id
}

// Unsubscribe removes a handler by ID.
func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if _, ok := eb.handlers[id]; !ok {
		return
	}
	delete(eb.handlers, id)
	for i, hid := range eb.order {
		if hid == id {
			eb.order = append(eb.order[:i], eb.order[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to every matching handler. The matching set
// is collected under the read lock and invoked outside it, so a
// handler may subscribe or unsubscribe without deadlocking.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	eb.mu.RLock()
	fns := make([]func(Event), 0, len(eb.order))
	for _, id := range eb.order {
		h, ok := eb.handlers[id]
		if !ok {
			continue
		}
		if h.types != nil {
			if _, matched := h.types[evt.Type]; !matched {
				continue
			}
		}
		fns = append(fns, h.fn)
	}
	eb.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}
