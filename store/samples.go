package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LocationSample is the most recent agent position persisted per order.
// Only the latest sample is kept; the stream itself is ephemeral.
type LocationSample struct {
	OrderID        int64     `json:"order_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	SpeedKmh       float64   `json:"speed_kmh"`
	HeadingDegrees float64   `json:"heading_degrees"`
	CapturedAt     time.Time `json:"captured_at"`
}

func (db *DB) UpsertLocationSample(s *LocationSample) error {
	_, err := db.Exec(db.Q(`INSERT INTO location_samples (order_id, latitude, longitude, speed_kmh, heading_degrees, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO UPDATE SET
			latitude=excluded.latitude,
			longitude=excluded.longitude,
			speed_kmh=excluded.speed_kmh,
			heading_degrees=excluded.heading_degrees,
			captured_at=excluded.captured_at,
			updated_at=datetime('now','localtime')`),
		s.OrderID, s.Latitude, s.Longitude, s.SpeedKmh, s.HeadingDegrees,
		s.CapturedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (db *DB) GetLocationSample(orderID int64) (*LocationSample, error) {
	row := db.QueryRow(db.Q(`SELECT order_id, latitude, longitude, speed_kmh, heading_degrees, captured_at FROM location_samples WHERE order_id=?`), orderID)
	var s LocationSample
	var capturedAt any
	err := row.Scan(&s.OrderID, &s.Latitude, &s.Longitude, &s.SpeedKmh, &s.HeadingDegrees, &capturedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("location sample: %w", ErrNotFound)
		}
		return nil, err
	}
	s.CapturedAt = parseTime(capturedAt)
	return &s, nil
}
