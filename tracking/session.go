package tracking

import (
	"fmt"
	"log"
	"sync"
	"time"

	"trackcore/eta"
	"trackcore/geo"
	"trackcore/lifecycle"
)

// Session owns the live tracking state for one order. All mutations are
// serialized by the session's own mutex; sessions for different orders
// never contend. Fan-out happens inside the same critical section as
// the state change so subscribers observe updates in application order;
// this is safe because Subscriber.Send never blocks.
type Session struct {
	mu             sync.Mutex
	orderID        int64
	destination    geo.Point
	status         string
	agentID        string
	latestSample   *Sample
	latestEstimate *eta.Estimate
	subscribers    map[string]Subscriber
	lastActivity   time.Time
	estimator      *eta.Estimator
}

func NewSession(orderID int64, meta OrderMeta, estimator *eta.Estimator, now time.Time) *Session {
	return &Session{
		orderID:      orderID,
		destination:  meta.Destination,
		status:       meta.Status,
		agentID:      meta.AgentID,
		subscribers:  make(map[string]Subscriber),
		lastActivity: now,
		estimator:    estimator,
	}
}

func (s *Session) OrderID() int64 { return s.orderID }

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) AgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentID
}

// SetAgent records the assigned agent once it becomes known. Assignment
// can happen after a customer's session already exists.
func (s *Session) SetAgent(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentID = agentID
}

// seed restores sample and estimate state, used when a session is
// recreated after eviction so capture-time monotonicity survives.
func (s *Session) seed(sample *Sample, estimate *eta.Estimate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestSample == nil {
		s.latestSample = sample
		s.latestEstimate = estimate
	}
}

// ApplyLocation validates ordering, updates the held sample, recomputes
// the estimate, and fans out location and ETA updates. Out-of-order
// samples are rejected with ErrStaleSample and leave state unchanged.
func (s *Session) ApplyLocation(sample Sample, now time.Time) (eta.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lifecycle.IsTerminal(s.status) {
		return eta.Estimate{}, fmt.Errorf("order %d: %w", s.orderID, ErrSessionTerminated)
	}
	if s.latestSample != nil && sample.CapturedAt.Before(s.latestSample.CapturedAt) {
		return eta.Estimate{}, fmt.Errorf("order %d: sample at %s older than %s: %w",
			s.orderID, sample.CapturedAt.Format(time.RFC3339),
			s.latestSample.CapturedAt.Format(time.RFC3339), ErrStaleSample)
	}

	var prev *eta.Fix
	if s.latestSample != nil {
		f := s.latestSample.fix()
		prev = &f
	}
	est := s.estimator.Compute(prev, s.latestEstimate, sample.fix(), s.destination, now)

	s.latestSample = &sample
	s.latestEstimate = &est
	s.lastActivity = now

	s.publishLocked(Update{
		Kind: UpdateLocation, OrderID: s.orderID, Status: s.status,
		Sample: &sample, Timestamp: now,
	})
	s.publishLocked(Update{
		Kind: UpdateETA, OrderID: s.orderID, Status: s.status,
		Estimate: &est, Timestamp: now,
	})
	return est, nil
}

// ApplyStatus mirrors the order's status for fast reads and fans out a
// status update. Legality is the state machine's job; this is a cache
// update only. A session already terminal rejects further changes.
func (s *Session) ApplyStatus(status string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lifecycle.IsTerminal(s.status) {
		return fmt.Errorf("order %d: %w", s.orderID, ErrSessionTerminated)
	}
	s.status = status
	s.publishLocked(Update{
		Kind: UpdateStatus, OrderID: s.orderID, Status: status, Timestamp: now,
	})
	return nil
}

// Subscribe registers a subscriber and immediately sends it a snapshot,
// so a newly joined client is never blank until the next update.
// Subscribing the same handle twice has no additional effect.
func (s *Session) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscribers[sub.ID()]; !exists {
		s.subscribers[sub.ID()] = sub
	}

	snap := s.snapshotLocked()
	if err := sub.Send(Update{
		Kind: UpdateSnapshot, OrderID: s.orderID, Status: snap.Status,
		Sample: snap.Sample, Estimate: snap.Estimate, Timestamp: time.Now(),
	}); err != nil {
		log.Printf("session: snapshot send to %s on order %d: %v", sub.ID(), s.orderID, err)
		delete(s.subscribers, sub.ID())
	}
}

// Unsubscribe removes a subscriber by id; absent handles are a no-op.
func (s *Session) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, id)
}

func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// IsIdle reports whether the session has no subscribers and no location
// activity within the timeout.
func (s *Session) IsIdle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && now.Sub(s.lastActivity) > timeout
}

// evictable is true for idle sessions and for terminal sessions nobody
// is watching anymore.
func (s *Session) evictable(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subscribers) > 0 {
		return false
	}
	if lifecycle.IsTerminal(s.status) {
		return true
	}
	return now.Sub(s.lastActivity) > timeout
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		OrderID:   s.orderID,
		Status:    s.status,
		UpdatedAt: s.lastActivity,
	}
	if s.latestSample != nil {
		c := *s.latestSample
		snap.Sample = &c
	}
	if s.latestEstimate != nil {
		c := *s.latestEstimate
		snap.Estimate = &c
	}
	return snap
}

// publishLocked fans an update out to every subscriber. A failed send
// drops that subscriber only; the rest are unaffected.
func (s *Session) publishLocked(update Update) {
	for id, sub := range s.subscribers {
		if err := sub.Send(update); err != nil {
			log.Printf("session: dropping subscriber %s on order %d: %v", id, s.orderID, err)
			delete(s.subscribers, id)
		}
	}
}
