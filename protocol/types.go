package protocol

// Message type constants for the unified protocol.
const (
	// Agent -> Core (published on the location uplink)
	TypeAgentLocation  = "agent.location"
	TypeAgentHeartbeat = "agent.heartbeat"

	// Client -> Gateway (WebSocket)
	TypeTrackingJoin  = "tracking.join"
	TypeTrackingLeave = "tracking.leave"
	TypeStatusRequest = "tracking.status_request"

	// Gateway -> Client (WebSocket)
	TypeTrackingSnapshot = "tracking.snapshot"
	TypeTrackingLocation = "tracking.location"
	TypeTrackingETA      = "tracking.eta"
	TypeTrackingStatus   = "tracking.status"
	TypeTrackingError    = "tracking.error"

	// Core -> downstream consumers (status event stream)
	TypeStatusChanged = "order.status_changed"
)

// Roles for Address.Role.
const (
	RoleAgent  = "agent"
	RoleClient = "client"
	RoleCore   = "core"
)

// Error codes carried by TrackingError payloads.
const (
	CodeUnknownOrder      = "unknown_order"
	CodeInvalidTransition = "invalid_transition"
	CodeUnauthorized      = "unauthorized"
	CodeSessionTerminated = "session_terminated"
	CodeBadRequest        = "bad_request"
)

// Protocol version.
const Version = 1
