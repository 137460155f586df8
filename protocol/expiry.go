package protocol

import "time"

// Default TTLs by message category. Location fixes age fast; status
// events stay useful long enough to survive a consumer restart.
var defaultTTLs = map[string]time.Duration{
	TypeAgentHeartbeat: 90 * time.Second,
	TypeAgentLocation:  2 * time.Minute,

	TypeTrackingJoin:  time.Minute,
	TypeTrackingLeave: time.Minute,
	TypeStatusRequest: time.Minute,

	TypeTrackingSnapshot: 5 * time.Minute,
	TypeTrackingLocation: 2 * time.Minute,
	TypeTrackingETA:      5 * time.Minute,
	TypeTrackingStatus:   10 * time.Minute,
	TypeTrackingError:    10 * time.Minute,

	TypeStatusChanged: 30 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	if env.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
