package messaging

import (
	"log"

	"trackcore/protocol"
	"trackcore/tracking"
)

// LocationRouter receives decoded agent location fixes. The agent id
// comes from the envelope source so the uplink and the WebSocket path
// go through the same assignment check.
type LocationRouter interface {
	ReportLocation(orderID int64, agentID string, sample tracking.Sample) error
}

// LocationIngest subscribes to the agent uplink topic filter and routes
// decoded location envelopes into the tracking layer.
type LocationIngest struct {
	client   *Client
	filter   string
	ingestor *protocol.Ingestor
}

func NewLocationIngest(client *Client, filter string, router LocationRouter) *LocationIngest {
	handler := &uplinkHandler{router: router}
	return &LocationIngest{
		client:   client,
		filter:   filter,
		ingestor: protocol.NewIngestor(handler, nil),
	}
}

func (l *LocationIngest) Start() error {
	return l.client.SubscribeMQTT(l.filter, func(_ string, payload []byte) {
		l.ingestor.HandleRaw(payload)
	})
}

// uplinkHandler handles the agent-originated message types; everything
// else on the filter is ignored.
type uplinkHandler struct {
	protocol.NoOpHandler
	router LocationRouter
}

func (h *uplinkHandler) HandleAgentLocation(env *protocol.Envelope, p *protocol.AgentLocation) {
	sample := tracking.Sample{
		Lat:            p.Latitude,
		Lon:            p.Longitude,
		SpeedKmh:       p.SpeedKmh,
		HeadingDegrees: p.HeadingDegrees,
		CapturedAt:     p.CapturedAt,
	}
	if err := h.router.ReportLocation(p.OrderID, env.Src.Node, sample); err != nil {
		log.Printf("ingest: location for order %d from %s: %v", p.OrderID, env.Src.Node, err)
	}
}

func (h *uplinkHandler) HandleAgentHeartbeat(env *protocol.Envelope, p *protocol.AgentHeartbeat) {
	log.Printf("ingest: heartbeat from agent %s (%d active orders)", p.AgentID, p.ActiveOrders)
}
