package eta

import (
	"math"
	"testing"
	"time"

	"trackcore/geo"
)

var testDest = geo.Point{Lat: 12.90, Lon: 77.50}

func TestComputeFirstFixUsesDeviceSpeed(t *testing.T) {
	est := NewEstimator(0.3)
	now := time.Now()
	cur := Fix{Point: geo.Point{Lat: 12.97, Lon: 77.59}, SpeedKmh: 25, CapturedAt: now}

	got := est.Compute(nil, nil, cur, testDest, now)
	if got.SpeedKmh != 25 {
		t.Errorf("speed = %v, want 25 (device-reported)", got.SpeedKmh)
	}
	if got.Indeterminate {
		t.Error("estimate should not be indeterminate with positive speed")
	}
	if got.ETA.Before(now) {
		t.Errorf("ETA %v is before now %v", got.ETA, now)
	}
}

func TestComputeFirstFixNegativeDeviceSpeed(t *testing.T) {
	est := NewEstimator(0.3)
	now := time.Now()
	cur := Fix{Point: geo.Point{Lat: 12.97, Lon: 77.59}, SpeedKmh: -4, CapturedAt: now}

	got := est.Compute(nil, nil, cur, testDest, now)
	if got.SpeedKmh != 0 {
		t.Errorf("speed = %v, want 0 for negative device speed", got.SpeedKmh)
	}
	if !got.Indeterminate {
		t.Error("zero speed should yield an indeterminate ETA")
	}
	if !got.ETA.IsZero() {
		t.Errorf("indeterminate ETA should be zero, got %v", got.ETA)
	}
}

func TestComputeDerivedSpeed(t *testing.T) {
	est := NewEstimator(0.3)
	now := time.Now()
	a := geo.Point{Lat: 12.97, Lon: 77.59}
	b := geo.Point{Lat: 12.98, Lon: 77.60}
	prev := &Fix{Point: a, CapturedAt: now.Add(-6 * time.Minute)}
	cur := Fix{Point: b, SpeedKmh: 999, CapturedAt: now} // device speed must be ignored

	got := est.Compute(prev, nil, cur, testDest, now)
	want := geo.DistanceKm(a, b) / 0.1
	if math.Abs(got.SpeedKmh-want) > 1e-9 {
		t.Errorf("derived speed = %v, want %v", got.SpeedKmh, want)
	}
}

func TestComputeSmoothing(t *testing.T) {
	est := NewEstimator(0.3)
	now := time.Now()
	a := geo.Point{Lat: 12.97, Lon: 77.59}
	b := geo.Point{Lat: 12.98, Lon: 77.60}
	prev := &Fix{Point: a, CapturedAt: now.Add(-6 * time.Minute)}
	cur := Fix{Point: b, CapturedAt: now}
	prior := &Estimate{SpeedKmh: 40}

	got := est.Compute(prev, prior, cur, testDest, now)
	raw := geo.DistanceKm(a, b) / 0.1
	want := 0.3*raw + 0.7*40
	if math.Abs(got.SpeedKmh-want) > 1e-9 {
		t.Errorf("smoothed speed = %v, want %v", got.SpeedKmh, want)
	}
}

func TestComputeZeroElapsedFallsBackToDeviceSpeed(t *testing.T) {
	est := NewEstimator(0.3)
	now := time.Now()
	p := geo.Point{Lat: 12.97, Lon: 77.59}
	prev := &Fix{Point: p, CapturedAt: now}
	cur := Fix{Point: p, SpeedKmh: 12, CapturedAt: now}

	got := est.Compute(prev, nil, cur, testDest, now)
	if got.SpeedKmh != 12 {
		t.Errorf("speed = %v, want 12 (device fallback on zero elapsed)", got.SpeedKmh)
	}
}

func TestComputeETAFifteenMinutes(t *testing.T) {
	// Agent 5 km out moving at a steady smoothed 20 km/h: ETA ~15 min.
	est := NewEstimator(0.3)
	now := time.Now()

	// 5 km due north of the destination (1 degree latitude ~ 111.2 km).
	cur := Fix{
		Point:      geo.Point{Lat: testDest.Lat + 5.0/111.2, Lon: testDest.Lon},
		SpeedKmh:   20,
		CapturedAt: now,
	}
	prior := &Estimate{SpeedKmh: 20}
	// Same point previously: derived speed 0 via device fallback; feed
	// device speed 20 with prior 20 so the smoothed value stays 20.
	got := est.Compute(nil, prior, cur, testDest, now)

	if got.Indeterminate {
		t.Fatal("expected a determinate ETA")
	}
	if math.Abs(got.DistanceRemainingKm-5.0) > 0.05 {
		t.Errorf("distance = %v, want ~5 km", got.DistanceRemainingKm)
	}
	mins := got.ETA.Sub(now).Minutes()
	if math.Abs(mins-15) > 1 {
		t.Errorf("ETA in %v minutes, want ~15", mins)
	}
}

func TestComputeConsistency(t *testing.T) {
	est := NewEstimator(0.3)
	now := time.Now()
	fixes := []Fix{
		{Point: geo.Point{Lat: 12.99, Lon: 77.62}, SpeedKmh: 30, CapturedAt: now.Add(-2 * time.Minute)},
		{Point: geo.Point{Lat: 12.95, Lon: 77.55}, SpeedKmh: 0, CapturedAt: now.Add(-time.Minute)},
		{Point: testDest, SpeedKmh: 10, CapturedAt: now},
	}
	var prev *Fix
	var prior *Estimate
	for _, f := range fixes {
		got := est.Compute(prev, prior, f, testDest, now)
		if got.DistanceRemainingKm < 0 {
			t.Errorf("negative distance remaining: %v", got.DistanceRemainingKm)
		}
		if !got.Indeterminate && got.ETA.Before(now) {
			t.Errorf("ETA %v before computation time %v", got.ETA, now)
		}
		f := f
		prev, prior = &f, &got
	}
}
