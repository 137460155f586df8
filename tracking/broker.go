package tracking

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"trackcore/eta"
	"trackcore/lifecycle"
)

// Broker owns the registry of live tracking sessions. Registry lookups
// take a read lock so sessions for different orders progress in
// parallel; only create and evict take the write lock.
type Broker struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	source    OrderSource
	sink      SampleSink
	mirror    SnapshotMirror
	estimator *eta.Estimator

	idleTimeout   time.Duration
	sweepInterval time.Duration

	stopChan chan struct{}
	running  bool
}

func NewBroker(source OrderSource, sink SampleSink, mirror SnapshotMirror, estimator *eta.Estimator, idleTimeout, sweepInterval time.Duration) *Broker {
	return &Broker{
		sessions:      make(map[int64]*Session),
		source:        source,
		sink:          sink,
		mirror:        mirror,
		estimator:     estimator,
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (b *Broker) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.sweepLoop()
	log.Printf("broker: started, sweep every %s, idle timeout %s", b.sweepInterval, b.idleTimeout)
}

// Stop halts the sweep loop. Live sessions are left in place.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.stopChan)
}

func (b *Broker) sweepLoop() {
	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := b.Sweep(time.Now()); n > 0 {
				log.Printf("broker: swept %d session(s)", n)
			}
		case <-b.stopChan:
			return
		}
	}
}

func (b *Broker) session(orderID int64) *Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sessions[orderID]
}

// GetOrCreateSession returns the live session for an order, creating it
// from order-store metadata when absent. Unknown orders never get a
// session. Recreated sessions are seeded from the snapshot mirror so a
// sample accepted before eviction still fences out older ones after.
func (b *Broker) GetOrCreateSession(orderID int64) (*Session, error) {
	if sess := b.session(orderID); sess != nil {
		return sess, nil
	}

	meta, err := b.source.TrackingMeta(orderID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if sess, ok := b.sessions[orderID]; ok {
		return sess, nil
	}

	sess := NewSession(orderID, meta, b.estimator, time.Now())
	if b.mirror != nil {
		if snap, err := b.mirror.ReadSnapshot(orderID); err != nil {
			log.Printf("broker: mirror read for order %d: %v", orderID, err)
		} else if snap != nil {
			sess.seed(snap.Sample, snap.Estimate)
		}
	}
	b.sessions[orderID] = sess
	return sess, nil
}

// ReportLocation applies a location report on behalf of a named agent.
// Only the order's assigned agent may report: an unassigned order
// rejects every reporter. The check runs before any session is created
// so rejected reports leave no state behind. When a live session
// predates the assignment the agent is re-read from the order store.
func (b *Broker) ReportLocation(orderID int64, agentID string, sample Sample) error {
	var assigned string
	if sess := b.session(orderID); sess != nil {
		assigned = sess.AgentID()
	}
	if assigned == "" {
		meta, err := b.source.TrackingMeta(orderID)
		if err != nil {
			return err
		}
		assigned = meta.AgentID
		if assigned != "" {
			if sess := b.session(orderID); sess != nil {
				sess.SetAgent(assigned)
			}
		}
	}
	if assigned == "" {
		return fmt.Errorf("order %d has no assigned agent: %w", orderID, lifecycle.ErrUnauthorized)
	}
	if agentID != assigned {
		return fmt.Errorf("order %d: agent %s is not the assigned agent: %w",
			orderID, agentID, lifecycle.ErrUnauthorized)
	}

	return b.OnLocation(orderID, sample)
}

// OnLocation routes an agent location report into the order's session.
// Coordinates are validated before they touch session state. Stale
// samples are logged and swallowed so flaky uplinks don't surface as
// client errors; every other failure is returned.
func (b *Broker) OnLocation(orderID int64, sample Sample) error {
	if err := sample.Point().Validate(); err != nil {
		return fmt.Errorf("order %d: %w", orderID, err)
	}

	sess, err := b.GetOrCreateSession(orderID)
	if err != nil {
		return err
	}

	if _, err := sess.ApplyLocation(sample, time.Now()); err != nil {
		if errors.Is(err, ErrStaleSample) {
			log.Printf("broker: %v", err)
			return nil
		}
		return err
	}

	b.mirrorSnapshot(sess)
	if b.sink != nil {
		if err := b.sink.PersistSample(orderID, sample); err != nil {
			log.Printf("broker: persist sample for order %d: %v", orderID, err)
		}
	}
	return nil
}

// OnStatusChange mirrors a committed status transition into the live
// session, if one exists. Nobody watching means nothing to update; the
// next join reads the store. A terminal status with no subscribers
// evicts the session immediately.
func (b *Broker) OnStatusChange(orderID int64, status string) {
	sess := b.session(orderID)
	if sess == nil {
		return
	}
	if err := sess.ApplyStatus(status, time.Now()); err != nil {
		log.Printf("broker: status %s for order %d: %v", status, orderID, err)
		return
	}
	b.mirrorSnapshot(sess)

	if lifecycle.IsTerminal(status) && sess.SubscriberCount() == 0 {
		b.evict(orderID)
	}
}

// Join subscribes a client to an order's session, creating the session
// on first interest. The subscriber receives a snapshot immediately.
func (b *Broker) Join(orderID int64, sub Subscriber) error {
	sess, err := b.GetOrCreateSession(orderID)
	if err != nil {
		return err
	}
	sess.Subscribe(sub)
	return nil
}

// Leave detaches a subscriber. Unknown orders and absent subscribers
// are no-ops; the client is gone either way.
func (b *Broker) Leave(orderID int64, subscriberID string) {
	if sess := b.session(orderID); sess != nil {
		sess.Unsubscribe(subscriberID)
	}
}

// Snapshot serves the point-in-time read path: live session first, then
// the snapshot mirror, then bare order metadata from the store.
func (b *Broker) Snapshot(orderID int64) (Snapshot, error) {
	if sess := b.session(orderID); sess != nil {
		return sess.Snapshot(), nil
	}

	meta, err := b.source.TrackingMeta(orderID)
	if err != nil {
		return Snapshot{}, err
	}

	if b.mirror != nil {
		if snap, err := b.mirror.ReadSnapshot(orderID); err != nil {
			log.Printf("broker: mirror read for order %d: %v", orderID, err)
		} else if snap != nil {
			snap.Status = meta.Status
			return *snap, nil
		}
	}
	return Snapshot{OrderID: orderID, Status: meta.Status}, nil
}

// Sweep evicts sessions that are terminal or idle with no subscribers
// and returns how many were removed.
func (b *Broker) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var evicted int
	for id, sess := range b.sessions {
		if sess.evictable(now, b.idleTimeout) {
			delete(b.sessions, id)
			evicted++
		}
	}
	return evicted
}

// ActiveSessions reports the registry size, for the health endpoint.
func (b *Broker) ActiveSessions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

func (b *Broker) evict(orderID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, orderID)
}

func (b *Broker) mirrorSnapshot(sess *Session) {
	if b.mirror == nil {
		return
	}
	if err := b.mirror.WriteSnapshot(sess.Snapshot()); err != nil {
		log.Printf("broker: mirror write for order %d: %v", sess.OrderID(), err)
	}
}
