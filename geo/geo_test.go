package geo

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDistanceKm(t *testing.T) {
	// Bangalore city center to Electronic City, roughly 16 km.
	a := Point{Lat: 12.9716, Lon: 77.5946}
	b := Point{Lat: 12.8399, Lon: 77.6770}

	d := DistanceKm(a, b)
	if d < 15 || d > 18 {
		t.Errorf("distance = %v km, want roughly 16 km", d)
	}
}

func TestDistanceKmZero(t *testing.T) {
	p := Point{Lat: 12.97, Lon: 77.59}
	if d := DistanceKm(p, p); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := Point{Lat: 51.5074, Lon: -0.1278}
	b := Point{Lat: 48.8566, Lon: 2.3522}
	d1 := DistanceKm(a, b)
	d2 := DistanceKm(b, a)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("asymmetric distance: %v vs %v", d1, d2)
	}
	// London to Paris is about 344 km.
	if d1 < 330 || d1 > 360 {
		t.Errorf("London-Paris = %v km, want ~344", d1)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		p       Point
		wantErr bool
	}{
		{"valid", Point{Lat: 12.97, Lon: 77.59}, false},
		{"lat max", Point{Lat: 90, Lon: 0}, false},
		{"lat min", Point{Lat: -90, Lon: 0}, false},
		{"lon max", Point{Lat: 0, Lon: 180}, false},
		{"lon min", Point{Lat: 0, Lon: -180}, false},
		{"lat too high", Point{Lat: 90.01, Lon: 0}, true},
		{"lat too low", Point{Lat: -91, Lon: 0}, true},
		{"lon too high", Point{Lat: 0, Lon: 181}, true},
		{"lon too low", Point{Lat: 0, Lon: -180.5}, true},
		{"nan lat", Point{Lat: math.NaN(), Lon: 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("Validate(%+v) = %v, want ErrInvalidCoordinate", tc.p, err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate(%+v) = %v, want nil", tc.p, err)
			}
		})
	}
}

func TestSpeedKmh(t *testing.T) {
	a := Point{Lat: 12.97, Lon: 77.59}
	b := Point{Lat: 12.98, Lon: 77.60}
	d := DistanceKm(a, b)

	got := SpeedKmh(a, b, 6*time.Minute)
	want := d / 0.1 // 6 minutes is 0.1 hours
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("SpeedKmh = %v, want %v", got, want)
	}
}

func TestSpeedKmhNonPositiveElapsed(t *testing.T) {
	a := Point{Lat: 12.97, Lon: 77.59}
	b := Point{Lat: 12.98, Lon: 77.60}
	if got := SpeedKmh(a, b, 0); got != 0 {
		t.Errorf("SpeedKmh(elapsed=0) = %v, want 0", got)
	}
	if got := SpeedKmh(a, b, -time.Second); got != 0 {
		t.Errorf("SpeedKmh(elapsed<0) = %v, want 0", got)
	}
}
