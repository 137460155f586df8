package protocol

import (
	"encoding/json"
	"log"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks for all protocol message types.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	// Agent -> Core
	HandleAgentLocation(env *Envelope, p *AgentLocation)
	HandleAgentHeartbeat(env *Envelope, p *AgentHeartbeat)

	// Client -> Gateway
	HandleTrackingJoin(env *Envelope, p *TrackingJoin)
	HandleTrackingLeave(env *Envelope, p *TrackingLeave)
	HandleStatusRequest(env *Envelope, p *StatusRequest)

	// Gateway -> Client
	HandleTrackingSnapshot(env *Envelope, p *TrackingSnapshot)
	HandleTrackingLocation(env *Envelope, p *TrackingLocation)
	HandleTrackingETA(env *Envelope, p *TrackingETA)
	HandleTrackingStatus(env *Envelope, p *TrackingStatus)
	HandleTrackingError(env *Envelope, p *TrackingError)

	// Core -> downstream
	HandleStatusChanged(env *Envelope, p *StatusChanged)
}

// Ingestor performs two-phase decode and dispatches to a MessageHandler.
type Ingestor struct {
	handler MessageHandler
	filter  FilterFunc
}

// NewIngestor creates an ingestor with the given handler and filter.
func NewIngestor(handler MessageHandler, filter FilterFunc) *Ingestor {
	return &Ingestor{
		handler: handler,
		filter:  filter,
	}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	// Phase 1: decode routing header only
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		log.Printf("protocol: header decode error: %v", err)
		return
	}

	if IsExpiredHeader(&hdr) {
		log.Printf("protocol: dropping expired message %s (type=%s)", hdr.ID, hdr.Type)
		return
	}

	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	// Phase 2: full envelope decode
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("protocol: envelope decode error: %v", err)
		return
	}

	switch env.Type {
	case TypeAgentLocation:
		decodeAndCall(ing.handler.HandleAgentLocation, &env)
	case TypeAgentHeartbeat:
		decodeAndCall(ing.handler.HandleAgentHeartbeat, &env)
	case TypeTrackingJoin:
		decodeAndCall(ing.handler.HandleTrackingJoin, &env)
	case TypeTrackingLeave:
		decodeAndCall(ing.handler.HandleTrackingLeave, &env)
	case TypeStatusRequest:
		decodeAndCall(ing.handler.HandleStatusRequest, &env)
	case TypeTrackingSnapshot:
		decodeAndCall(ing.handler.HandleTrackingSnapshot, &env)
	case TypeTrackingLocation:
		decodeAndCall(ing.handler.HandleTrackingLocation, &env)
	case TypeTrackingETA:
		decodeAndCall(ing.handler.HandleTrackingETA, &env)
	case TypeTrackingStatus:
		decodeAndCall(ing.handler.HandleTrackingStatus, &env)
	case TypeTrackingError:
		decodeAndCall(ing.handler.HandleTrackingError, &env)
	case TypeStatusChanged:
		decodeAndCall(ing.handler.HandleStatusChanged, &env)
	default:
		log.Printf("protocol: unknown message type: %s", env.Type)
	}
}

// decodeAndCall unmarshals the payload and calls the handler method.
func decodeAndCall[T any](fn func(*Envelope, *T), env *Envelope) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Printf("protocol: payload decode error for %s: %v", env.Type, err)
		return
	}
	fn(env, &p)
}
