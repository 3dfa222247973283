package dispatch

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	cases := []struct {
		name       string
		lat1, lng1 float64
		lat2, lng2 float64
		expected   float64
		tolerance  float64
	}{
		{"same point", 19.4326, -99.1332, 19.4326, -99.1332, 0, 0.001},
		// Mexico City Zocalo to Angel de la Independencia, roughly 4.2 km.
		{"across the city", 19.4326, -99.1332, 19.4270, -99.1677, 3.7, 0.5},
		// One degree of latitude is about 111 km.
		{"one degree of latitude", 0, 0, 1, 0, 111.19, 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HaversineKm(tc.lat1, tc.lng1, tc.lat2, tc.lng2)
			if math.Abs(got-tc.expected) > tc.tolerance {
				t.Fatalf("expected ~%.2f km, got %.4f km", tc.expected, got)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := HaversineKm(19.43, -99.13, 19.50, -99.20)
	b := HaversineKm(19.50, -99.20, 19.43, -99.13)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance is not symmetric: %v vs %v", a, b)
	}
}

func TestPlatformRadiusBoundary(t *testing.T) {
	// ~0.09 degrees of latitude is just under 10 km; 0.1 is just over.
	branchLat, branchLng := 19.4326, -99.1332

	near := HaversineKm(branchLat, branchLng, branchLat+0.089, branchLng)
	far := HaversineKm(branchLat, branchLng, branchLat+0.1, branchLng)

	if near > PlatformRadiusKm {
		t.Fatalf("expected %v km to be inside the platform radius", near)
	}
	if far <= PlatformRadiusKm {
		t.Fatalf("expected %v km to be outside the platform radius", far)
	}
}
