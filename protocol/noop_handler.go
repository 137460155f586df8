package protocol

// NoOpHandler implements MessageHandler with no-op methods.
// Embed this and override only the methods you need.
type NoOpHandler struct{}

func (NoOpHandler) HandleAgentLocation(*Envelope, *AgentLocation)       {}
func (NoOpHandler) HandleAgentHeartbeat(*Envelope, *AgentHeartbeat)     {}
func (NoOpHandler) HandleTrackingJoin(*Envelope, *TrackingJoin)         {}
func (NoOpHandler) HandleTrackingLeave(*Envelope, *TrackingLeave)       {}
func (NoOpHandler) HandleStatusRequest(*Envelope, *StatusRequest)       {}
func (NoOpHandler) HandleTrackingSnapshot(*Envelope, *TrackingSnapshot) {}
func (NoOpHandler) HandleTrackingLocation(*Envelope, *TrackingLocation) {}
func (NoOpHandler) HandleTrackingETA(*Envelope, *TrackingETA)           {}
func (NoOpHandler) HandleTrackingStatus(*Envelope, *TrackingStatus)     {}
func (NoOpHandler) HandleTrackingError(*Envelope, *TrackingError)       {}
func (NoOpHandler) HandleStatusChanged(*Envelope, *StatusChanged)       {}

// Compile-time check that NoOpHandler implements MessageHandler.
var _ MessageHandler = NoOpHandler{}
