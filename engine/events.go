package engine

const (
	EventOrderStatusChanged EventType = iota + 1
	EventOrderDelivered
	EventOrderCancelled
	EventMessagingConnected
	EventMessagingDisconnected
	EventRedisConnected
	EventRedisDisconnected
)

// --- Event payloads ---

type OrderStatusChangedEvent struct {
	OrderID   int64
	OldStatus string
	NewStatus string
	ActorRole string
	ActorID   string
}

type OrderDeliveredEvent struct {
	OrderID int64
	AgentID string
}

type OrderCancelledEvent struct {
	OrderID   int64
	ActorRole string
	ActorID   string
}

type ConnectionEvent struct {
	Detail string
}
