package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	src := Address{Role: RoleAgent, Node: "agent-17", City: "blr"}
	dst := Address{Role: RoleCore}

	env, err := NewEnvelope(TypeAgentLocation, src, dst, &AgentLocation{
		OrderID:   42,
		Latitude:  12.9352,
		Longitude: 77.6245,
		SpeedKmh:  24,
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	if env.Version != Version {
		t.Errorf("version = %d, want %d", env.Version, Version)
	}
	if env.Type != TypeAgentLocation {
		t.Errorf("type = %q, want %q", env.Type, TypeAgentLocation)
	}
	if env.Src != src {
		t.Errorf("src = %+v, want %+v", env.Src, src)
	}
	if env.ID == "" {
		t.Error("ID should not be empty")
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Type != TypeAgentLocation {
		t.Errorf("decoded type = %q, want %q", decoded.Type, TypeAgentLocation)
	}
	if decoded.ID != env.ID {
		t.Errorf("decoded id = %q, want %q", decoded.ID, env.ID)
	}

	var loc AgentLocation
	if err := decoded.DecodePayload(&loc); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if loc.OrderID != 42 {
		t.Errorf("order_id = %d, want 42", loc.OrderID)
	}
	if loc.SpeedKmh != 24 {
		t.Errorf("speed_kmh = %f, want 24", loc.SpeedKmh)
	}
}

func TestNewReply(t *testing.T) {
	reply, err := NewReply(TypeTrackingError,
		Address{Role: RoleCore},
		Address{Role: RoleClient, Node: "client-9"},
		"orig-msg-id",
		&TrackingError{OrderID: 7, Code: CodeUnknownOrder, Detail: "order 7 not found"},
	)
	if err != nil {
		t.Fatalf("NewReply: %v", err)
	}
	if reply.CorID != "orig-msg-id" {
		t.Errorf("cor = %q, want %q", reply.CorID, "orig-msg-id")
	}
	if reply.Type != TypeTrackingError {
		t.Errorf("type = %q, want %q", reply.Type, TypeTrackingError)
	}
}

func TestExpiry(t *testing.T) {
	env := &Envelope{ExpiresAt: time.Now().UTC().Add(-1 * time.Minute)}
	if !IsExpired(env) {
		t.Error("expected expired envelope to be detected")
	}

	env.ExpiresAt = time.Now().UTC().Add(10 * time.Minute)
	if IsExpired(env) {
		t.Error("expected future-expiry envelope to not be expired")
	}

	env.ExpiresAt = time.Time{}
	if IsExpired(env) {
		t.Error("expected zero-expiry envelope to not be expired")
	}
}

func TestDefaultTTLFor(t *testing.T) {
	if ttl := DefaultTTLFor(TypeAgentHeartbeat); ttl != 90*time.Second {
		t.Errorf("heartbeat TTL = %v, want 90s", ttl)
	}
	if ttl := DefaultTTLFor(TypeStatusChanged); ttl != 30*time.Minute {
		t.Errorf("status changed TTL = %v, want 30m", ttl)
	}
	if ttl := DefaultTTLFor("unknown.type"); ttl != FallbackTTL {
		t.Errorf("unknown TTL = %v, want %v", ttl, FallbackTTL)
	}
}

func TestIngestorDispatch(t *testing.T) {
	handler := &testHandler{}
	ingestor := NewIngestor(handler, nil)

	env, _ := NewEnvelope(TypeAgentLocation,
		Address{Role: RoleAgent, Node: "agent-17"},
		Address{Role: RoleCore},
		&AgentLocation{OrderID: 42, Latitude: 12.9, Longitude: 77.6},
	)
	data, _ := env.Encode()

	ingestor.HandleRaw(data)

	if !handler.locationCalled {
		t.Error("expected HandleAgentLocation to be called")
	}
	if handler.locationPayload.OrderID != 42 {
		t.Errorf("order_id = %d, want 42", handler.locationPayload.OrderID)
	}
}

func TestIngestorFilter(t *testing.T) {
	handler := &testHandler{}
	ingestor := NewIngestor(handler, func(_ *RawHeader) bool { return false })

	env, _ := NewEnvelope(TypeAgentLocation,
		Address{Role: RoleAgent, Node: "agent-17"},
		Address{Role: RoleCore},
		&AgentLocation{OrderID: 42},
	)
	data, _ := env.Encode()

	ingestor.HandleRaw(data)

	if handler.locationCalled {
		t.Error("expected handler to NOT be called when filter rejects")
	}
}

func TestIngestorDropsExpired(t *testing.T) {
	handler := &testHandler{}
	ingestor := NewIngestor(handler, nil)

	env, _ := NewEnvelope(TypeAgentLocation,
		Address{Role: RoleAgent, Node: "agent-17"},
		Address{Role: RoleCore},
		&AgentLocation{OrderID: 42},
	)
	env.ExpiresAt = time.Now().UTC().Add(-1 * time.Minute)
	data, _ := env.Encode()

	ingestor.HandleRaw(data)

	if handler.locationCalled {
		t.Error("expected handler to NOT be called for expired message")
	}
}

func TestWireFormatKeys(t *testing.T) {
	env, _ := NewEnvelope(TypeAgentHeartbeat,
		Address{Role: RoleAgent, Node: "agent-17", City: "blr"},
		Address{Role: RoleCore},
		&AgentHeartbeat{AgentID: "agent-17", UptimeS: 60},
	)
	data, _ := env.Encode()

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	expected := []string{"v", "type", "id", "src", "dst", "ts", "exp", "p"}
	for _, k := range expected {
		if _, ok := m[k]; !ok {
			t.Errorf("expected key %q in wire format", k)
		}
	}
	long := []string{"version", "payload", "timestamp", "expires_at", "source", "destination"}
	for _, k := range long {
		if _, ok := m[k]; ok {
			t.Errorf("unexpected long key %q in wire format", k)
		}
	}
}

// testHandler tracks which methods were called.
type testHandler struct {
	NoOpHandler
	locationCalled  bool
	locationPayload AgentLocation
}

func (h *testHandler) HandleAgentLocation(env *Envelope, p *AgentLocation) {
	h.locationCalled = true
	h.locationPayload = *p
}
