package geo

import (
	"math"
	"testing"
)

func TestHaversineMeters_SamePoint(t *testing.T) {
	p := Point{Lat: 40.7128, Lng: -74.0060}
	if d := HaversineMeters(p, p); d != 0 {
		t.Errorf("expected 0 distance for identical points, got %f", d)
	}
}

func TestHaversineMeters_KnownDistance(t *testing.T) {
	// NYC to LA is roughly 3,935 km.
	nyc := Point{Lat: 40.7128, Lng: -74.0060}
	la := Point{Lat: 34.0522, Lng: -118.2437}
	d := HaversineMeters(nyc, la)
	const expected = 3_935_000.0
	if math.Abs(d-expected) > 50_000 {
		t.Errorf("expected ~%f meters, got %f", expected, d)
	}
}

func TestInsideRadius(t *testing.T) {
	center := Point{Lat: 0, Lng: 0}
	near := Point{Lat: 0.001, Lng: 0}
	far := Point{Lat: 10, Lng: 10}

	if !InsideRadius(center, 500, near) {
		t.Error("expected near point to be inside radius")
	}
	if InsideRadius(center, 500, far) {
		t.Error("expected far point to be outside radius")
	}
}

func TestFixedPointRoundTrip(t *testing.T) {
	cases := []int64{0, 40712800, -74006000, 1, -1}
	for _, fixed := range cases {
		degrees := FixedToDegrees(fixed)
		back := DegreesToFixed(degrees)
		if back != fixed {
			t.Errorf("round trip failed for %d: got %d", fixed, back)
		}
	}
}
