package tension

import (
	"encoding/json"
	"math"
	"testing"
)

func TestAssess(t *testing.T) {
	tests := []struct {
		name     string
		lengthMm float64
		freq     float64
		wantMPa  float64
		wantZone Zone
		wantBar  float64
	}{
		{"A4 on a treble string", 380, 440, 877.81, Safe, 67.52},
		{"overpulled", 380, 500, 1133.54, Warning, 87.20},
		{"near break", 380, 700, 2221.74, Warning, 100},
		{"snapped", 1000, 300, 2826.0, Danger, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Assess(tt.lengthMm, tt.freq)
			if !ok {
				t.Fatal("Assess not ok")
			}
			if math.Abs(got.StressMPa-tt.wantMPa) > 0.01 {
				t.Errorf("StressMPa = %.3f, want %.2f", got.StressMPa, tt.wantMPa)
			}
			if got.Zone != tt.wantZone {
				t.Errorf("Zone = %v, want %v", got.Zone, tt.wantZone)
			}
			if math.Abs(got.BarPercent-tt.wantBar) > 0.01 {
				t.Errorf("BarPercent = %.3f, want %.2f", got.BarPercent, tt.wantBar)
			}
		})
	}
}

func TestAssessAbsent(t *testing.T) {
	cases := [][2]float64{{0, 440}, {380, 0}, {-1, 440}, {380, math.NaN()}, {math.Inf(1), 440}}
	for _, c := range cases {
		if _, ok := Assess(c[0], c[1]); ok {
			t.Errorf("Assess(%v, %v) ok, want absent", c[0], c[1])
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	if Classify(1099.999) != Safe || Classify(1100) != Warning {
		t.Error("yield boundary misplaced")
	}
	if Classify(2399.999) != Warning || Classify(2400) != Danger {
		t.Error("breaking boundary misplaced")
	}
}

func TestMaxSafeFrequency(t *testing.T) {
	f := MaxSafeFrequency(380)
	if got := StressMPa(380, f); math.Abs(got-YieldStrengthMPa) > 1e-6 {
		t.Errorf("stress at MaxSafeFrequency = %v, want %v", got, YieldStrengthMPa)
	}
	if MaxSafeFrequency(0) != 0 {
		t.Error("MaxSafeFrequency(0) should be 0")
	}
}

func TestZoneJSON(t *testing.T) {
	b, err := json.Marshal(Metrics{Zone: Warning})
	if err != nil {
		t.Fatal(err)
	}
	var m Metrics
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m.Zone != Warning {
		t.Errorf("round trip zone = %v", m.Zone)
	}
}

func TestAssessMonotonic(t *testing.T) {
	for _, length := range []float64{100, 380, 1200} {
		prev, ok := Assess(length, 10)
		if !ok {
			t.Fatalf("Assess(%v, 10) not ok", length)
		}
		for f := 10.5; f <= 5000; f += 0.5 {
			m, _ := Assess(length, f)
			if m.StressMPa < prev.StressMPa {
				t.Fatalf("L=%v: stress fell from %v to %v at %v Hz", length, prev.StressMPa, m.StressMPa, f)
			}
			if m.Zone < prev.Zone {
				t.Fatalf("L=%v: zone went back from %v to %v at %v Hz", length, prev.Zone, m.Zone, f)
			}
			if m.BarPercent < prev.BarPercent {
				t.Fatalf("L=%v: bar fell at %v Hz", length, f)
			}
			prev = m
		}
		if prev.Zone != Danger {
			t.Errorf("L=%v: zone at 5000 Hz = %v, want DANGER", length, prev.Zone)
		}
	}
}
