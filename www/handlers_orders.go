package www

import (
	"encoding/json"
	"net/http"

	"trackcore/geo"
	"trackcore/lifecycle"
	"trackcore/store"
)

type createOrderRequest struct {
	CustomerID    string  `json:"customer_id"`
	RestaurantID  string  `json:"restaurant_id"`
	RestaurantLat float64 `json:"restaurant_lat"`
	RestaurantLon float64 `json:"restaurant_lon"`
	CustomerLat   float64 `json:"customer_lat"`
	CustomerLon   float64 `json:"customer_lon"`
	Detail        string  `json:"detail"`
}

func (h *Handlers) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" || req.RestaurantID == "" {
		h.jsonError(w, "customer_id and restaurant_id are required", http.StatusBadRequest)
		return
	}
	for _, p := range []geo.Point{
		{Lat: req.RestaurantLat, Lon: req.RestaurantLon},
		{Lat: req.CustomerLat, Lon: req.CustomerLon},
	} {
		if err := p.Validate(); err != nil {
			h.domainError(w, err)
			return
		}
	}

	o := &store.Order{
		CustomerID:    req.CustomerID,
		RestaurantID:  req.RestaurantID,
		Status:        lifecycle.StatusPending,
		RestaurantLat: req.RestaurantLat,
		RestaurantLon: req.RestaurantLon,
		CustomerLat:   req.CustomerLat,
		CustomerLon:   req.CustomerLon,
		Detail:        req.Detail,
	}
	if err := h.engine.DB().CreateOrder(o); err != nil {
		h.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	h.jsonOK(w, o)
}

func (h *Handlers) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.jsonError(w, "invalid order id", http.StatusBadRequest)
		return
	}
	order, err := h.engine.DB().GetOrder(id)
	if err != nil {
		h.domainError(w, err)
		return
	}
	h.jsonOK(w, order)
}

func (h *Handlers) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.jsonError(w, "invalid order id", http.StatusBadRequest)
		return
	}
	if _, err := h.engine.DB().GetOrder(id); err != nil {
		h.domainError(w, err)
		return
	}
	history, err := h.engine.DB().ListOrderHistory(id)
	if err != nil {
		h.domainError(w, err)
		return
	}
	h.jsonOK(w, history)
}

type statusUpdateRequest struct {
	TargetStatus string `json:"target_status"`
	Detail       string `json:"detail,omitempty"`
}

func (h *Handlers) handleStatusUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.jsonError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid body", http.StatusBadRequest)
		return
	}

	actor := actorFromRequest(r)
	if actor.Role == "" {
		h.jsonError(w, "missing X-Actor-Role header", http.StatusBadRequest)
		return
	}

	order, err := h.engine.Machine().Transition(id, req.TargetStatus, actor)
	if err != nil {
		h.domainError(w, err)
		return
	}
	h.jsonOK(w, order)
}

type agentAssignRequest struct {
	AgentID string `json:"agent_id"`
}

func (h *Handlers) handleAgentAssign(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.jsonError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req agentAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		h.jsonError(w, "agent_id is required", http.StatusBadRequest)
		return
	}

	order, err := h.engine.DB().GetOrder(id)
	if err != nil {
		h.domainError(w, err)
		return
	}
	if lifecycle.IsTerminal(order.Status) {
		h.jsonError(w, "order already "+order.Status, http.StatusConflict)
		return
	}

	if err := h.engine.DB().AssignAgent(id, req.AgentID); err != nil {
		h.domainError(w, err)
		return
	}
	order.AgentID = req.AgentID
	h.jsonOK(w, order)
}
