package messaging

import (
	"testing"
	"time"

	"trackcore/protocol"
	"trackcore/tracking"
)

type fakeRouter struct {
	orderID int64
	agentID string
	sample  tracking.Sample
	calls   int
	err     error
}

func (r *fakeRouter) ReportLocation(orderID int64, agentID string, sample tracking.Sample) error {
	r.orderID = orderID
	r.agentID = agentID
	r.sample = sample
	r.calls++
	return r.err
}

func uplinkEnvelope(t *testing.T, p *protocol.AgentLocation) []byte {
	t.Helper()
	env, err := protocol.NewEnvelope(protocol.TypeAgentLocation,
		protocol.Address{Role: protocol.RoleAgent, Node: "agent-17"},
		protocol.Address{Role: protocol.RoleCore}, p)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestUplinkLocationRouting(t *testing.T) {
	router := &fakeRouter{}
	ingestor := protocol.NewIngestor(&uplinkHandler{router: router}, nil)

	capturedAt := time.Now().UTC().Truncate(time.Second)
	ingestor.HandleRaw(uplinkEnvelope(t, &protocol.AgentLocation{
		OrderID:    42,
		Latitude:   12.9352,
		Longitude:  77.6245,
		SpeedKmh:   24,
		CapturedAt: capturedAt,
	}))

	if router.calls != 1 {
		t.Fatalf("router calls = %d, want 1", router.calls)
	}
	if router.orderID != 42 {
		t.Errorf("order id = %d, want 42", router.orderID)
	}
	if router.agentID != "agent-17" {
		t.Errorf("agent id = %q, want agent-17", router.agentID)
	}
	if router.sample.Lat != 12.9352 || router.sample.SpeedKmh != 24 {
		t.Errorf("sample = %+v", router.sample)
	}
	if !router.sample.CapturedAt.Equal(capturedAt) {
		t.Errorf("captured_at = %v, want %v", router.sample.CapturedAt, capturedAt)
	}
}

func TestUplinkRouterErrorIsSwallowed(t *testing.T) {
	router := &fakeRouter{err: tracking.ErrUnknownOrder}
	ingestor := protocol.NewIngestor(&uplinkHandler{router: router}, nil)

	// A bad order id must not panic or halt the uplink.
	ingestor.HandleRaw(uplinkEnvelope(t, &protocol.AgentLocation{OrderID: 99}))
	if router.calls != 1 {
		t.Fatalf("router calls = %d, want 1", router.calls)
	}
}

func TestUplinkIgnoresForeignMessageTypes(t *testing.T) {
	router := &fakeRouter{}
	ingestor := protocol.NewIngestor(&uplinkHandler{router: router}, nil)

	env, err := protocol.NewEnvelope(protocol.TypeTrackingJoin,
		protocol.Address{Role: protocol.RoleClient, Node: "client-1"},
		protocol.Address{Role: protocol.RoleCore},
		&protocol.TrackingJoin{OrderID: 7})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := env.Encode()
	ingestor.HandleRaw(data)

	if router.calls != 0 {
		t.Fatalf("join message must not reach the location router, calls = %d", router.calls)
	}
}
