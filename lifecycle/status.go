package lifecycle

// Order statuses, in happy-path order.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusPickedUp  = "picked_up"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Actor roles.
const (
	RoleRestaurant = "restaurant"
	RoleAgent      = "delivery_agent"
	RoleCustomer   = "customer"
	RoleSystem     = "system"
)

// Actor identifies who is requesting a transition.
type Actor struct {
	Role string `json:"role"`
	ID   string `json:"id"`
}

// IsTerminal reports whether a status ends the order's lifecycle.
func IsTerminal(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusPickedUp, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}
