package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trackcore/engine"
)

type Handlers struct {
	engine  *engine.Engine
	gateway *Gateway
}

// NewRouter builds the HTTP surface: the REST order API, the tracking
// read path, and the WebSocket gateway. The returned func tears down
// the gateway's live connections.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	gateway := NewGateway(eng.Broker(), eng.Machine())

	h := &Handlers{
		engine:  eng,
		gateway: gateway,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// WebSocket gateway
	r.Get("/ws", gateway.ServeWS)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.handleOrderCreate)
		r.Get("/{orderID}", h.handleOrderGet)
		r.Get("/{orderID}/history", h.handleOrderHistory)
		r.Get("/{orderID}/tracking", h.handleTrackingSnapshot)
		r.Put("/{orderID}/status", h.handleStatusUpdate)
		r.Put("/{orderID}/agent", h.handleAgentAssign)
	})

	r.Get("/api/health", h.apiHealthCheck)

	return r, gateway.Shutdown
}
