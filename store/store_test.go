package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"trackcore/config"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testOrder(t *testing.T, db *DB, status string) *Order {
	t.Helper()
	o := &Order{
		CustomerID: "cust-1", RestaurantID: "rest-1", Status: status,
		RestaurantLat: 12.9716, RestaurantLon: 77.5946,
		CustomerLat: 12.90, CustomerLon: 77.50,
	}
	if err := db.CreateOrder(o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestOrderRoundTrip(t *testing.T) {
	db := testDB(t)
	o := testOrder(t, db, "pending")
	if o.ID == 0 {
		t.Fatal("CreateOrder did not set the id")
	}

	got, err := db.GetOrder(o.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.CustomerID != "cust-1" || got.Status != "pending" {
		t.Errorf("order = %+v", got)
	}
	if got.DeliveredAt != nil {
		t.Error("delivered_at should start empty")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not populated")
	}

	if _, err := db.GetOrder(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing order: %v, want ErrNotFound", err)
	}
}

func TestUpdateOrderStatusAndDeliveredAt(t *testing.T) {
	db := testDB(t)
	o := testOrder(t, db, "picked_up")

	if err := db.UpdateOrderStatus(o.ID, "delivered", ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := db.SetDeliveredAt(o.ID); err != nil {
		t.Fatalf("set delivered_at: %v", err)
	}

	got, err := db.GetOrder(o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "delivered" {
		t.Errorf("status = %q", got.Status)
	}
	if got.DeliveredAt == nil {
		t.Fatal("delivered_at not set")
	}
}

func TestAssignAgent(t *testing.T) {
	db := testDB(t)
	o := testOrder(t, db, "ready")

	if err := db.AssignAgent(o.ID, "agent-9"); err != nil {
		t.Fatalf("assign agent: %v", err)
	}
	got, _ := db.GetOrder(o.ID)
	if got.AgentID != "agent-9" {
		t.Errorf("agent = %q", got.AgentID)
	}
}

func TestListActiveOrdersSkipsTerminal(t *testing.T) {
	db := testDB(t)
	testOrder(t, db, "pending")
	testOrder(t, db, "picked_up")
	testOrder(t, db, "delivered")
	testOrder(t, db, "cancelled")

	active, err := db.ListActiveOrders()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active orders = %d, want 2", len(active))
	}
	for _, o := range active {
		if o.Status == "delivered" || o.Status == "cancelled" {
			t.Errorf("terminal order %d in active list", o.ID)
		}
	}
}

func TestOrderHistory(t *testing.T) {
	db := testDB(t)
	o := testOrder(t, db, "pending")

	if err := db.AppendOrderHistory(o.ID, "pending", "confirmed", "restaurant", "rest-1", ""); err != nil {
		t.Fatalf("append history: %v", err)
	}
	if err := db.AppendOrderHistory(o.ID, "confirmed", "preparing", "restaurant", "rest-1", ""); err != nil {
		t.Fatal(err)
	}

	history, err := db.ListOrderHistory(o.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].ToStatus != "confirmed" || history[1].ToStatus != "preparing" {
		t.Errorf("history order wrong: %+v", history)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)
	o := testOrder(t, db, "pending")

	if err := db.EnqueueOutbox("orders.status", []byte(`{"a":1}`), "order.status_changed", o.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.EnqueueOutbox("orders.status", []byte(`{"b":2}`), "order.status_changed", o.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if err := db.IncrementOutboxRetries(pending[0].ID); err != nil {
		t.Fatalf("increment retries: %v", err)
	}
	if err := db.AckOutbox(pending[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	pending, err = db.ListPendingOutbox(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending after ack = %d, want 1", len(pending))
	}
}

func TestLocationSampleUpsert(t *testing.T) {
	db := testDB(t)
	o := testOrder(t, db, "picked_up")

	first := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	if err := db.UpsertLocationSample(&LocationSample{
		OrderID: o.ID, Latitude: 12.91, Longitude: 77.51, SpeedKmh: 10, CapturedAt: first,
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := time.Now().UTC().Truncate(time.Millisecond)
	if err := db.UpsertLocationSample(&LocationSample{
		OrderID: o.ID, Latitude: 12.94, Longitude: 77.55, SpeedKmh: 25, CapturedAt: second,
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.GetLocationSample(o.ID)
	if err != nil {
		t.Fatalf("get sample: %v", err)
	}
	if got.Latitude != 12.94 || got.SpeedKmh != 25 {
		t.Errorf("sample = %+v, want the newer fix", got)
	}
	if !got.CapturedAt.Equal(second) {
		t.Errorf("captured_at = %v, want %v", got.CapturedAt, second)
	}

	if _, err := db.GetLocationSample(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing sample: %v, want ErrNotFound", err)
	}
}

func TestRebind(t *testing.T) {
	q := Rebind("SELECT * FROM orders WHERE id=? AND status=?")
	want := "SELECT * FROM orders WHERE id=$1 AND status=$2"
	if q != want {
		t.Errorf("Rebind = %q, want %q", q, want)
	}

	db := &DB{driver: "postgres"}
	got := db.Q("UPDATE orders SET updated_at=datetime('now','localtime') WHERE id=?")
	want = "UPDATE orders SET updated_at=NOW() WHERE id=$1"
	if got != want {
		t.Errorf("Q = %q, want %q", got, want)
	}
}
