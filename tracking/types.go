package tracking

import (
	"errors"
	"time"

	"trackcore/eta"
	"trackcore/geo"
)

var (
	// ErrStaleSample means the sample is older than the one already held.
	// Routine over unreliable transports; dropped, never user-facing.
	ErrStaleSample = errors.New("stale location sample")

	// ErrSessionTerminated means the order already reached a terminal
	// status and the session no longer accepts activity.
	ErrSessionTerminated = errors.New("tracking session terminated")

	// ErrUnknownOrder means the order id is not present in the order store.
	ErrUnknownOrder = errors.New("unknown order")
)

// Sample is one location report from the delivery agent's device.
type Sample struct {
	Lat            float64   `json:"latitude"`
	Lon            float64   `json:"longitude"`
	SpeedKmh       float64   `json:"speed_kmh"`
	HeadingDegrees float64   `json:"heading_degrees"`
	CapturedAt     time.Time `json:"captured_at"`
}

func (s Sample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

func (s Sample) fix() eta.Fix {
	return eta.Fix{Point: s.Point(), SpeedKmh: s.SpeedKmh, CapturedAt: s.CapturedAt}
}

// Update kinds fanned out to subscribers.
const (
	UpdateSnapshot = "tracking_snapshot"
	UpdateLocation = "location_update"
	UpdateETA      = "eta_update"
	UpdateStatus   = "status_update"
)

// Update is one event delivered to a session's subscribers.
type Update struct {
	Kind      string        `json:"kind"`
	OrderID   int64         `json:"order_id"`
	Status    string        `json:"status"`
	Sample    *Sample       `json:"sample,omitempty"`
	Estimate  *eta.Estimate `json:"estimate,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Snapshot is the full current state of one order's tracking session,
// sent on join and served on the REST read path.
type Snapshot struct {
	OrderID   int64         `json:"order_id"`
	Status    string        `json:"status"`
	Sample    *Sample       `json:"sample,omitempty"`
	Estimate  *eta.Estimate `json:"estimate,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Subscriber is an opaque sink for a session's updates. Send must not
// block: implementations buffer and report failure when the buffer is
// full or the connection is gone, at which point the session drops the
// subscriber. Disconnection is signaled by the gateway via Leave, not
// owned by the session.
type Subscriber interface {
	ID() string
	Send(Update) error
}

// OrderMeta is the seed data fetched from the order store when a
// session is created.
type OrderMeta struct {
	Destination geo.Point
	Status      string
	AgentID     string
}

// OrderSource is the order-store collaborator.
type OrderSource interface {
	TrackingMeta(orderID int64) (OrderMeta, error)
}

// SampleSink persists the latest location sample per order.
// Failures are logged, never surfaced to the reporting agent.
type SampleSink interface {
	PersistSample(orderID int64, s Sample) error
}

// SnapshotMirror is a read-through/write-through snapshot cache so REST
// polling and rejoin-after-eviction serve a consistent view.
type SnapshotMirror interface {
	WriteSnapshot(snap Snapshot) error
	ReadSnapshot(orderID int64) (*Snapshot, error)
}
