package protocol

import "time"

// --- Agent -> Core payloads ---

// AgentLocation is one position fix from a delivery agent's device.
type AgentLocation struct {
	OrderID        int64     `json:"order_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	SpeedKmh       float64   `json:"speed_kmh,omitempty"`
	HeadingDegrees float64   `json:"heading_degrees,omitempty"`
	CapturedAt     time.Time `json:"captured_at"`
}

// AgentHeartbeat is sent periodically by an agent device.
type AgentHeartbeat struct {
	AgentID      string `json:"agent_id"`
	UptimeS      int64  `json:"uptime_s"`
	ActiveOrders int    `json:"active_orders"`
}

// --- Client -> Gateway payloads ---

// TrackingJoin subscribes the connection to an order's updates.
type TrackingJoin struct {
	OrderID int64 `json:"order_id"`
}

// TrackingLeave detaches the connection from an order.
type TrackingLeave struct {
	OrderID int64 `json:"order_id"`
}

// StatusRequest asks the core to move an order to a new status. The
// requesting actor is taken from the envelope source address.
type StatusRequest struct {
	OrderID      int64  `json:"order_id"`
	TargetStatus string `json:"target_status"`
}

// --- Gateway -> Client payloads ---

// LocationFix is the wire form of a held location sample.
type LocationFix struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	SpeedKmh       float64   `json:"speed_kmh"`
	HeadingDegrees float64   `json:"heading_degrees"`
	CapturedAt     time.Time `json:"captured_at"`
}

// ETAInfo is the wire form of an arrival estimate. Indeterminate means
// no usable speed yet; ETA is zero in that case.
type ETAInfo struct {
	DistanceRemainingKm float64   `json:"distance_remaining_km"`
	SpeedKmh            float64   `json:"speed_kmh"`
	ETA                 time.Time `json:"eta,omitempty"`
	Indeterminate       bool      `json:"indeterminate"`
}

// TrackingSnapshot is the full session state sent on join.
type TrackingSnapshot struct {
	OrderID   int64        `json:"order_id"`
	Status    string       `json:"status"`
	Location  *LocationFix `json:"location,omitempty"`
	ETA       *ETAInfo     `json:"eta,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TrackingLocation pushes a fresh agent position.
type TrackingLocation struct {
	OrderID  int64       `json:"order_id"`
	Status   string      `json:"status"`
	Location LocationFix `json:"location"`
}

// TrackingETA pushes a recomputed arrival estimate.
type TrackingETA struct {
	OrderID int64   `json:"order_id"`
	Status  string  `json:"status"`
	ETA     ETAInfo `json:"eta"`
}

// TrackingStatus pushes a lifecycle transition.
type TrackingStatus struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// TrackingError reports a rejected client request.
type TrackingError struct {
	OrderID int64  `json:"order_id,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
}

// --- Core -> downstream payloads ---

// StatusChanged is the event published for every committed transition.
type StatusChanged struct {
	OrderID    int64     `json:"order_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorRole  string    `json:"actor_role"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
