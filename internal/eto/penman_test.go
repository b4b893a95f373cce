package eto

import (
	"math"
	"testing"
	"time"
)

func TestAtmosphericPressure(t *testing.T) {
	tests := []struct {
		name      string
		elevation float64
		want      float64
	}{
		{"sea level", 0, 101.3},
		{"500 m", 500, 95.5},
		{"2000 m", 2000, 79.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := atmosphericPressure(tt.elevation)
			if math.Abs(got-tt.want) > 0.5 {
				t.Errorf("atmosphericPressure(%v) = %.2f, want ~%.1f kPa", tt.elevation, got, tt.want)
			}
		})
	}

	if atmosphericPressure(1000) >= atmosphericPressure(0) {
		t.Error("pressure should decrease with elevation")
	}
}

func TestSaturationVaporPressure(t *testing.T) {
	// FAO-56 table 2.3 reference points.
	tests := []struct {
		temp float64
		want float64
	}{
		{0, 0.611},
		{10, 1.228},
		{20, 2.338},
		{30, 4.243},
	}

	for _, tt := range tests {
		got := saturationVaporPressure(tt.temp)
		if math.Abs(got-tt.want) > 0.01 {
			t.Errorf("saturationVaporPressure(%v) = %.4f, want ~%.3f", tt.temp, got, tt.want)
		}
	}
}

func TestExtraterrestrialRadiation(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

	// Seasonal asymmetry flips between hemispheres.
	southJan := extraterrestrialRadiation(-22.3, jan)
	southJul := extraterrestrialRadiation(-22.3, jul)
	if southJan <= southJul {
		t.Errorf("southern summer Ra %.1f should exceed winter Ra %.1f", southJan, southJul)
	}

	northJan := extraterrestrialRadiation(45, jan)
	northJul := extraterrestrialRadiation(45, jul)
	if northJul <= northJan {
		t.Errorf("northern summer Ra %.1f should exceed winter Ra %.1f", northJul, northJan)
	}

	// Polar winter: the acos argument saturates instead of going NaN.
	polar := extraterrestrialRadiation(80, time.Date(2024, 12, 21, 0, 0, 0, 0, time.UTC))
	if math.IsNaN(polar) || polar < 0 {
		t.Errorf("polar winter Ra = %v, want a finite non-negative value", polar)
	}
}

func TestNetRadiationClipsRatio(t *testing.T) {
	// Measured radiation above the clear-sky ceiling must not make the
	// longwave term grow without bound.
	atCeiling := netRadiation(30, 30, 2.0, 30, 18)
	above := netRadiation(35, 30, 2.0, 30, 18)

	// With the ratio clipped, the only difference is the shortwave term.
	wantDiff := (1 - albedo) * 5
	if math.Abs((above-atCeiling)-wantDiff) > 0.01 {
		t.Errorf("above-ceiling difference %.3f, want shortwave-only %.3f", above-atCeiling, wantDiff)
	}
}

func TestWindAt2m(t *testing.T) {
	tests := []struct {
		name string
		uz   float64
		z    float64
		want float64
	}{
		{"already at 2 m", 3.0, 2, 3.0},
		{"below 2 m unchanged", 3.0, 1.5, 3.0},
		{"10 m standard height", 3.0, 10, 3.0 * 4.87 / math.Log(67.8*10-5.42)},
		{"zero wind", 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WindAt2m(tt.uz, tt.z)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("WindAt2m(%v, %v) = %v, want %v", tt.uz, tt.z, got, tt.want)
			}
		})
	}

	// The 10 m profile factor is roughly 0.75.
	factor := WindAt2m(1, 10)
	if factor < 0.74 || factor > 0.76 {
		t.Errorf("10 m conversion factor = %.4f, want ~0.75", factor)
	}
}

func TestPenmanMonteithFloorsAtZero(t *testing.T) {
	// Strongly negative net radiation with no vapor deficit drives the
	// numerator negative; the result must floor at zero.
	got := penmanMonteith(0.1, -10, 0, 0.066, 5, 1, 1.0, 1.0)
	if got != 0 {
		t.Errorf("got %v, want 0 for a negative energy balance", got)
	}
}
