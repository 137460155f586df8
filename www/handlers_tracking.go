package www

import (
	"net/http"
)

// handleTrackingSnapshot is the polling read path: live session first,
// falling back to the snapshot mirror and then bare order state.
func (h *Handlers) handleTrackingSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.jsonError(w, "invalid order id", http.StatusBadRequest)
		return
	}
	snap, err := h.engine.Broker().Snapshot(id)
	if err != nil {
		h.domainError(w, err)
		return
	}
	h.jsonOK(w, snap)
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":          "ok",
		"active_sessions": h.engine.Broker().ActiveSessions(),
		"ws_clients":      h.gateway.ClientCount(),
	}
	if mc := h.engine.MsgClient(); mc != nil {
		status["kafka"] = mc.KafkaConnected()
		status["mqtt"] = mc.MQTTConnected()
	}
	h.jsonOK(w, status)
}
