package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_ZeroDistance(t *testing.T) {
	d := HaversineKm(10, 20, 10, 20)
	if d < 0 || d > 1e-9 {
		t.Fatalf("zero distance expected ~0, got %v", d)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	pairs := [][4]float64{
		{40.4168, -3.7038, 41.3874, 2.1686}, // Madrid - Barcelona
		{0, 0, 0, 1},
		{-33.45, -70.66, 4.71, -74.07},
	}
	for _, p := range pairs {
		ab := HaversineKm(p[0], p[1], p[2], p[3])
		ba := HaversineKm(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("asymmetric distance: %v vs %v for %v", ab, ba, p)
		}
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// One degree of longitude at the equator is ~111.19 km.
	d := HaversineKm(0, 0, 0, 1)
	if d < 111 || d > 111.4 {
		t.Fatalf("equator degree: got %v km, want ~111.19", d)
	}
}

func TestWithinKm(t *testing.T) {
	// ~0.5 km apart along the equator.
	if !WithinKm(0, 0, 0, 0.0045, 2) {
		t.Fatalf("expected points within 2km")
	}
	if WithinKm(0, 0, 0, 1, 2) {
		t.Fatalf("expected points outside 2km")
	}
}
