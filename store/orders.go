package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Order struct {
	ID            int64      `json:"id"`
	CustomerID    string     `json:"customer_id"`
	RestaurantID  string     `json:"restaurant_id"`
	Status        string     `json:"status"`
	RestaurantLat float64    `json:"restaurant_lat"`
	RestaurantLon float64    `json:"restaurant_lon"`
	CustomerLat   float64    `json:"customer_lat"`
	CustomerLon   float64    `json:"customer_lon"`
	AgentID       string     `json:"agent_id"`
	Detail        string     `json:"detail"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

type OrderHistory struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorRole  string    `json:"actor_role"`
	ActorID    string    `json:"actor_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

const orderSelectCols = `id, customer_id, restaurant_id, status, restaurant_lat, restaurant_lon, customer_lat, customer_lon, agent_id, detail, created_at, updated_at, delivered_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	var createdAt, updatedAt, deliveredAt any

	err := row.Scan(&o.ID, &o.CustomerID, &o.RestaurantID, &o.Status,
		&o.RestaurantLat, &o.RestaurantLon, &o.CustomerLat, &o.CustomerLon,
		&o.AgentID, &o.Detail, &createdAt, &updatedAt, &deliveredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order: %w", ErrNotFound)
		}
		return nil, err
	}
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	o.DeliveredAt = parseTimePtr(deliveredAt)
	return &o, nil
}

func (db *DB) CreateOrder(o *Order) error {
	if o.Status == "" {
		o.Status = "pending"
	}
	query := db.Q(`INSERT INTO orders (customer_id, restaurant_id, status, restaurant_lat, restaurant_lon, customer_lat, customer_lon, agent_id, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	args := []any{
		o.CustomerID, o.RestaurantID, o.Status,
		o.RestaurantLat, o.RestaurantLon, o.CustomerLat, o.CustomerLon,
		o.AgentID, o.Detail,
	}

	// pgx does not support LastInsertId.
	if db.driver == "postgres" {
		if err := db.QueryRow(query+" RETURNING id", args...).Scan(&o.ID); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create order last id: %w", err)
	}
	o.ID = id
	return nil
}

func (db *DB) GetOrder(id int64) (*Order, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM orders WHERE id=?`, orderSelectCols)), id)
	return scanOrder(row)
}

func (db *DB) UpdateOrderStatus(id int64, status, detail string) error {
	_, err := db.Exec(db.Q(`UPDATE orders SET status=?, detail=?, updated_at=datetime('now','localtime') WHERE id=?`),
		status, detail, id)
	return err
}

func (db *DB) SetDeliveredAt(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE orders SET delivered_at=datetime('now','localtime'), updated_at=datetime('now','localtime') WHERE id=?`), id)
	return err
}

func (db *DB) AssignAgent(id int64, agentID string) error {
	_, err := db.Exec(db.Q(`UPDATE orders SET agent_id=?, updated_at=datetime('now','localtime') WHERE id=?`),
		agentID, id)
	return err
}

func (db *DB) AppendOrderHistory(orderID int64, fromStatus, toStatus, actorRole, actorID, detail string) error {
	_, err := db.Exec(db.Q(`INSERT INTO order_history (order_id, from_status, to_status, actor_role, actor_id, detail) VALUES (?, ?, ?, ?, ?, ?)`),
		orderID, fromStatus, toStatus, actorRole, actorID, detail)
	return err
}

func (db *DB) ListOrderHistory(orderID int64) ([]*OrderHistory, error) {
	rows, err := db.Query(db.Q(`SELECT id, order_id, from_status, to_status, actor_role, actor_id, detail, created_at FROM order_history WHERE order_id=? ORDER BY id`), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []*OrderHistory
	for rows.Next() {
		var h OrderHistory
		var createdAt any
		if err := rows.Scan(&h.ID, &h.OrderID, &h.FromStatus, &h.ToStatus, &h.ActorRole, &h.ActorID, &h.Detail, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		history = append(history, &h)
	}
	return history, rows.Err()
}

// ListActiveOrders returns orders that have not reached a terminal status.
func (db *DB) ListActiveOrders() ([]*Order, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM orders WHERE status NOT IN ('delivered', 'cancelled') ORDER BY id`, orderSelectCols)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
