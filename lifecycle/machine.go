package lifecycle

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"trackcore/store"
)

var (
	// ErrInvalidTransition means the requested edge is not in the table,
	// or the order has already reached a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized means the actor's role may not perform this edge.
	ErrUnauthorized = errors.New("actor not authorized for transition")
)

// Emitter receives status-change events after a successful transition.
type Emitter interface {
	EmitStatusChanged(orderID int64, oldStatus, newStatus string, actor Actor)
}

// transitions maps each edge to the roles allowed to request it.
// Customer and system may only cancel, and only while the restaurant
// has not started preparing; the restaurant may cancel any non-terminal
// order.
var transitions = map[string]map[string][]string{
	StatusPending: {
		StatusConfirmed: {RoleRestaurant},
		StatusCancelled: {RoleCustomer, RoleSystem, RoleRestaurant},
	},
	StatusConfirmed: {
		StatusPreparing: {RoleRestaurant},
		StatusCancelled: {RoleCustomer, RoleSystem, RoleRestaurant},
	},
	StatusPreparing: {
		StatusReady:     {RoleRestaurant},
		StatusCancelled: {RoleRestaurant},
	},
	StatusReady: {
		StatusPickedUp:  {RoleAgent},
		StatusCancelled: {RoleRestaurant},
	},
	StatusPickedUp: {
		StatusDelivered: {RoleAgent},
		StatusCancelled: {RoleRestaurant},
	},
}

const lockStripes = 64

// Machine validates and applies order status transitions.
type Machine struct {
	db      *store.DB
	emitter Emitter
	locks   [lockStripes]sync.Mutex
}

// NewMachine creates a state machine backed by the given order store.
func NewMachine(db *store.DB, emitter Emitter) *Machine {
	return &Machine{db: db, emitter: emitter}
}

// lockFor serializes transitions per order while letting different
// orders proceed in parallel.
func (m *Machine) lockFor(orderID int64) *sync.Mutex {
	return &m.locks[uint64(orderID)%lockStripes]
}

// Transition applies targetStatus to the order if the edge is legal and
// the actor is authorized. On success the order is persisted with a new
// transition timestamp, history is appended, and a status-change event
// is emitted. On failure the order is unchanged.
func (m *Machine) Transition(orderID int64, targetStatus string, actor Actor) (*store.Order, error) {
	if !ValidStatus(targetStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, targetStatus)
	}

	mu := m.lockFor(orderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := m.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	if IsTerminal(order.Status) {
		return nil, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, orderID, order.Status)
	}

	edges, ok := transitions[order.Status]
	if !ok {
		return nil, fmt.Errorf("%w: no edges from %q", ErrInvalidTransition, order.Status)
	}
	roles, ok := edges[targetStatus]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, targetStatus)
	}

	if !roleAllowed(roles, actor.Role) {
		log.Printf("lifecycle: unauthorized transition %s -> %s on order %d by %s/%s",
			order.Status, targetStatus, orderID, actor.Role, actor.ID)
		return nil, fmt.Errorf("%w: role %s may not move %s -> %s",
			ErrUnauthorized, actor.Role, order.Status, targetStatus)
	}

	// Agent edges require the actor to be the assigned agent.
	if actor.Role == RoleAgent {
		if order.AgentID == "" {
			return nil, fmt.Errorf("%w: order %d has no assigned agent", ErrInvalidTransition, orderID)
		}
		if actor.ID != order.AgentID {
			log.Printf("lifecycle: agent %s is not assigned to order %d (assigned: %s)",
				actor.ID, orderID, order.AgentID)
			return nil, fmt.Errorf("%w: agent %s is not assigned to order %d",
				ErrUnauthorized, actor.ID, orderID)
		}
	}

	oldStatus := order.Status
	detail := fmt.Sprintf("%s by %s", targetStatus, actor.Role)
	if err := m.db.UpdateOrderStatus(orderID, targetStatus, detail); err != nil {
		return nil, fmt.Errorf("persist status: %w", err)
	}
	if err := m.db.AppendOrderHistory(orderID, oldStatus, targetStatus, actor.Role, actor.ID, detail); err != nil {
		log.Printf("lifecycle: append history for order %d: %v", orderID, err)
	}
	if targetStatus == StatusDelivered {
		if err := m.db.SetDeliveredAt(orderID); err != nil {
			log.Printf("lifecycle: set delivered_at for order %d: %v", orderID, err)
		}
	}

	order.Status = targetStatus
	if m.emitter != nil {
		m.emitter.EmitStatusChanged(orderID, oldStatus, targetStatus, actor)
	}
	return order, nil
}

func roleAllowed(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
