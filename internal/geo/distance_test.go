package geo

import (
	"math"
	"testing"
)

func TestDistanceKmSamePoint(t *testing.T) {
	points := [][2]float64{{0, 0}, {34.0876, 74.7973}, {-33.9, 151.2}, {89.9, -179.9}}
	for _, p := range points {
		if d := DistanceKm(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("DistanceKm(%v, %v) = %f, want 0", p, p, d)
		}
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := [2]float64{34.01, 75.31}
	b := [2]float64{34.1526, 77.5771}
	ab := DistanceKm(a[0], a[1], b[0], b[1])
	ba := DistanceKm(b[0], b[1], a[0], a[1])
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestDistanceKmKnownValue(t *testing.T) {
	// One degree of latitude along a meridian.
	d := DistanceKm(0, 0, 1, 0)
	want := EarthRadiusKm * math.Pi / 180
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("expected %f km, got %f", want, d)
	}
}

func TestFormatLocation(t *testing.T) {
	if got := FormatLocation(34.08764, 74.79731); got != "34.0876 N, 74.7973 E" {
		t.Fatalf("unexpected location %q", got)
	}
	if got := FormatLocationDeg(1, 2); got != "1.0000° N, 2.0000° E" {
		t.Fatalf("unexpected location %q", got)
	}
	if got := Round4(1.234567); got != 1.2346 {
		t.Fatalf("Round4 = %v", got)
	}
}
