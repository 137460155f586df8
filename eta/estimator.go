package eta

import (
	"time"

	"trackcore/geo"
)

// Fix is one positioned observation of the delivery agent.
type Fix struct {
	Point      geo.Point
	SpeedKmh   float64
	CapturedAt time.Time
}

// Estimate is the derived arrival projection for an order.
type Estimate struct {
	DistanceRemainingKm float64   `json:"distance_remaining_km"`
	SpeedKmh            float64   `json:"speed_kmh"`
	ETA                 time.Time `json:"eta"`
	// Indeterminate is set when effective speed is zero; ETA is then
	// meaningless and left at its zero value.
	Indeterminate bool `json:"indeterminate"`
}

// DefaultSmoothingWeight is the EMA weight given to the newest speed
// observation.
const DefaultSmoothingWeight = 0.3

// Estimator derives distance-remaining and ETA from location fixes.
type Estimator struct {
	SmoothingWeight float64
}

func NewEstimator(smoothingWeight float64) *Estimator {
	if smoothingWeight <= 0 || smoothingWeight > 1 {
		smoothingWeight = DefaultSmoothingWeight
	}
	return &Estimator{SmoothingWeight: smoothingWeight}
}

// Compute produces a new estimate from the current fix. prev is the
// previously applied fix (nil for the first), prior the previously
// computed estimate (nil for the first); both feed speed smoothing.
func (e *Estimator) Compute(prev *Fix, prior *Estimate, cur Fix, dest geo.Point, now time.Time) Estimate {
	raw := rawSpeed(prev, cur)

	speed := raw
	if prior != nil {
		w := e.SmoothingWeight
		speed = w*raw + (1-w)*prior.SpeedKmh
	}

	est := Estimate{
		DistanceRemainingKm: geo.DistanceKm(cur.Point, dest),
		SpeedKmh:            speed,
	}
	if speed <= 0 {
		est.Indeterminate = true
		return est
	}
	est.ETA = now.Add(time.Duration(est.DistanceRemainingKm / speed * float64(time.Hour)))
	return est
}

// rawSpeed prefers displacement-derived speed; with no usable previous
// fix it falls back to the device-reported speed, clamped to zero.
func rawSpeed(prev *Fix, cur Fix) float64 {
	if prev == nil || !cur.CapturedAt.After(prev.CapturedAt) {
		if cur.SpeedKmh > 0 {
			return cur.SpeedKmh
		}
		return 0
	}
	elapsed := cur.CapturedAt.Sub(prev.CapturedAt)
	return geo.SpeedKmh(prev.Point, cur.Point, elapsed)
}
