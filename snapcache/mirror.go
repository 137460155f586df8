package snapcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trackcore/store"
	"trackcore/tracking"
)

// Mirror is the write-through snapshot cache: Redis first, SQL
// fallback. It keeps the REST read path and rejoin-after-eviction off
// the session registry's hot path. Snapshots expire with the session
// idle timeout; the durable copy lives in location_samples.
type Mirror struct {
	db     *store.DB
	client *redis.Client
	ttl    time.Duration
}

func NewMirror(db *store.DB, client *redis.Client, ttl time.Duration) *Mirror {
	return &Mirror{db: db, client: client, ttl: ttl}
}

func snapshotKey(orderID int64) string {
	return fmt.Sprintf("trackcore:order:%d:snapshot", orderID)
}

// WriteSnapshot caches the session snapshot with the mirror TTL. With
// no Redis attached this is a no-op; the sample sink already persists
// the durable copy.
func (m *Mirror) WriteSnapshot(snap tracking.Snapshot) error {
	if m.client == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return m.client.Set(context.Background(), snapshotKey(snap.OrderID), data, m.ttl).Err()
}

// ReadSnapshot returns the cached snapshot, falling back to the
// persisted location sample when Redis misses or is absent. A nil
// snapshot with nil error means nothing is known for the order yet.
func (m *Mirror) ReadSnapshot(orderID int64) (*tracking.Snapshot, error) {
	if m.client != nil {
		data, err := m.client.Get(context.Background(), snapshotKey(orderID)).Bytes()
		if err == nil {
			var snap tracking.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("snapcache: decode order %d: %w", orderID, err)
			}
			return &snap, nil
		}
		if err != redis.Nil {
			return nil, err
		}
	}
	return m.readFromSQL(orderID)
}

// Invalidate drops the cached snapshot for an order.
func (m *Mirror) Invalidate(orderID int64) error {
	if m.client == nil {
		return nil
	}
	return m.client.Del(context.Background(), snapshotKey(orderID)).Err()
}

func (m *Mirror) readFromSQL(orderID int64) (*tracking.Snapshot, error) {
	sample, err := m.db.GetLocationSample(orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tracking.Snapshot{
		OrderID: orderID,
		Sample: &tracking.Sample{
			Lat:            sample.Latitude,
			Lon:            sample.Longitude,
			SpeedKmh:       sample.SpeedKmh,
			HeadingDegrees: sample.HeadingDegrees,
			CapturedAt:     sample.CapturedAt,
		},
		UpdatedAt: sample.CapturedAt,
	}, nil
}

var _ tracking.SnapshotMirror = (*Mirror)(nil)
