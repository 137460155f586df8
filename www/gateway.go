package www

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trackcore/eta"
	"trackcore/geo"
	"trackcore/lifecycle"
	"trackcore/protocol"
	"trackcore/store"
	"trackcore/tracking"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from client.
	maxMessageSize = 4096

	// Buffered updates per client before the session drops it.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway owns the live WebSocket connections. Each connection is a
// tracking.Subscriber; the session's fan-out lands in a per-client
// buffered channel and the write loop drains it to the socket.
type Gateway struct {
	broker  *tracking.Broker
	machine *lifecycle.Machine
	mu      sync.Mutex
	clients map[string]*wsClient
}

func NewGateway(broker *tracking.Broker, machine *lifecycle.Machine) *Gateway {
	return &Gateway{
		broker:  broker,
		machine: machine,
		clients: make(map[string]*wsClient),
	}
}

func (g *Gateway) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Shutdown closes every live connection.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	clients := make([]*wsClient, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.teardown()
	}
}

// ServeWS upgrades the connection and runs it until the client goes away.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}

	c := &wsClient{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		broker:  g.broker,
		machine: g.machine,
		joined:  make(map[int64]struct{}),
	}

	g.mu.Lock()
	g.clients[c.id] = c
	g.mu.Unlock()

	go c.writeLoop()
	c.readLoop()

	c.teardown()
	g.mu.Lock()
	delete(g.clients, c.id)
	g.mu.Unlock()
}

type wsClient struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	broker  *tracking.Broker
	machine *lifecycle.Machine
	once    sync.Once

	mu     sync.Mutex
	joined map[int64]struct{}
}

func (c *wsClient) ID() string { return c.id }

// Send implements tracking.Subscriber. It never blocks: a full buffer
// means the client cannot keep up and the session drops it.
func (c *wsClient) Send(u tracking.Update) error {
	env, err := updateEnvelope(c.id, u)
	if err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return fmt.Errorf("client %s: connection closed", c.id)
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("client %s: send buffer full", c.id)
	}
}

// teardown detaches the client from every joined session and closes
// the socket. Safe to call more than once.
func (c *wsClient) teardown() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		orders := make([]int64, 0, len(c.joined))
		for id := range c.joined {
			orders = append(orders, id)
		}
		c.joined = make(map[int64]struct{})
		c.mu.Unlock()

		for _, orderID := range orders {
			c.broker.Leave(orderID, c.id)
		}
		c.conn.Close()
	})
}

func (c *wsClient) readLoop() {
	ingestor := protocol.NewIngestor(&connHandler{client: c}, nil)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("gateway: client %s: %v", c.id, err)
			}
			return
		}
		ingestor.HandleRaw(msg)
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) sendError(orderID int64, corID string, err error) {
	env, encErr := protocol.NewReply(protocol.TypeTrackingError,
		protocol.Address{Role: protocol.RoleCore},
		protocol.Address{Role: protocol.RoleClient, Node: c.id},
		corID,
		&protocol.TrackingError{OrderID: orderID, Code: errorCode(err), Detail: err.Error()})
	if encErr != nil {
		return
	}
	data, encErr := env.Encode()
	if encErr != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// connHandler routes the client-originated message types for one
// connection; everything else is ignored.
type connHandler struct {
	protocol.NoOpHandler
	client *wsClient
}

func (h *connHandler) HandleTrackingJoin(env *protocol.Envelope, p *protocol.TrackingJoin) {
	c := h.client
	if err := c.broker.Join(p.OrderID, c); err != nil {
		c.sendError(p.OrderID, env.ID, err)
		return
	}
	c.mu.Lock()
	c.joined[p.OrderID] = struct{}{}
	c.mu.Unlock()
}

func (h *connHandler) HandleTrackingLeave(env *protocol.Envelope, p *protocol.TrackingLeave) {
	c := h.client
	c.broker.Leave(p.OrderID, c.id)
	c.mu.Lock()
	delete(c.joined, p.OrderID)
	c.mu.Unlock()
}

func (h *connHandler) HandleAgentLocation(env *protocol.Envelope, p *protocol.AgentLocation) {
	c := h.client
	err := c.broker.ReportLocation(p.OrderID, env.Src.Node, tracking.Sample{
		Lat:            p.Latitude,
		Lon:            p.Longitude,
		SpeedKmh:       p.SpeedKmh,
		HeadingDegrees: p.HeadingDegrees,
		CapturedAt:     p.CapturedAt,
	})
	if err != nil {
		c.sendError(p.OrderID, env.ID, err)
	}
}

func (h *connHandler) HandleStatusRequest(env *protocol.Envelope, p *protocol.StatusRequest) {
	c := h.client
	actor, ok := actorFromAddress(env.Src)
	if !ok {
		c.sendError(p.OrderID, env.ID, fmt.Errorf("source %q: %w", env.Src.Role, lifecycle.ErrUnauthorized))
		return
	}
	if _, err := c.machine.Transition(p.OrderID, p.TargetStatus, actor); err != nil {
		c.sendError(p.OrderID, env.ID, err)
	}
}

// actorFromAddress maps an envelope source onto a lifecycle actor.
// Only agents and customers drive transitions over the socket; the
// restaurant and the system use the REST surface.
func actorFromAddress(src protocol.Address) (lifecycle.Actor, bool) {
	switch src.Role {
	case protocol.RoleAgent:
		return lifecycle.Actor{Role: lifecycle.RoleAgent, ID: src.Node}, src.Node != ""
	case protocol.RoleClient:
		return lifecycle.Actor{Role: lifecycle.RoleCustomer, ID: src.Node}, src.Node != ""
	default:
		return lifecycle.Actor{}, false
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, tracking.ErrUnknownOrder), errors.Is(err, store.ErrNotFound):
		return protocol.CodeUnknownOrder
	case errors.Is(err, tracking.ErrSessionTerminated):
		return protocol.CodeSessionTerminated
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return protocol.CodeInvalidTransition
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return protocol.CodeUnauthorized
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return protocol.CodeBadRequest
	default:
		return protocol.CodeBadRequest
	}
}

// updateEnvelope converts a session update into its wire envelope.
func updateEnvelope(clientID string, u tracking.Update) (*protocol.Envelope, error) {
	src := protocol.Address{Role: protocol.RoleCore}
	dst := protocol.Address{Role: protocol.RoleClient, Node: clientID}

	switch u.Kind {
	case tracking.UpdateSnapshot:
		return protocol.NewEnvelope(protocol.TypeTrackingSnapshot, src, dst, &protocol.TrackingSnapshot{
			OrderID:   u.OrderID,
			Status:    u.Status,
			Location:  fixOf(u.Sample),
			ETA:       etaOf(u.Estimate),
			UpdatedAt: u.Timestamp,
		})
	case tracking.UpdateLocation:
		return protocol.NewEnvelope(protocol.TypeTrackingLocation, src, dst, &protocol.TrackingLocation{
			OrderID:  u.OrderID,
			Status:   u.Status,
			Location: *fixOf(u.Sample),
		})
	case tracking.UpdateETA:
		return protocol.NewEnvelope(protocol.TypeTrackingETA, src, dst, &protocol.TrackingETA{
			OrderID: u.OrderID,
			Status:  u.Status,
			ETA:     *etaOf(u.Estimate),
		})
	case tracking.UpdateStatus:
		return protocol.NewEnvelope(protocol.TypeTrackingStatus, src, dst, &protocol.TrackingStatus{
			OrderID: u.OrderID,
			Status:  u.Status,
		})
	default:
		return nil, fmt.Errorf("unknown update kind %q", u.Kind)
	}
}

func fixOf(s *tracking.Sample) *protocol.LocationFix {
	if s == nil {
		return nil
	}
	return &protocol.LocationFix{
		Latitude:       s.Lat,
		Longitude:      s.Lon,
		SpeedKmh:       s.SpeedKmh,
		HeadingDegrees: s.HeadingDegrees,
		CapturedAt:     s.CapturedAt,
	}
}

func etaOf(e *eta.Estimate) *protocol.ETAInfo {
	if e == nil {
		return nil
	}
	return &protocol.ETAInfo{
		DistanceRemainingKm: e.DistanceRemainingKm,
		SpeedKmh:            e.SpeedKmh,
		ETA:                 e.ETA,
		Indeterminate:       e.Indeterminate,
	}
}
