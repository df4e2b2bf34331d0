// Package tension estimates the tensile stress in a steel piano string from
// its vibrating length and frequency.
package tension

import (
	"fmt"
	"math"
	"strings"
)

const (
	// SteelDensity of high-carbon music wire in kg/m³.
	SteelDensity = 7850.0

	// YieldStrengthMPa is where permanent deformation starts.
	YieldStrengthMPa = 1100.0
	// BreakingPointMPa is where the wire is expected to snap.
	BreakingPointMPa = 2400.0
	// BarScaleMPa is the stress shown as a full gauge.
	BarScaleMPa = 1300.0
)

type Zone int

const (
	Safe Zone = iota
	Warning
	Danger
)

func (z Zone) String() string {
	switch z {
	case Safe:
		return "SAFE"
	case Warning:
		return "WARNING"
	case Danger:
		return "DANGER"
	default:
		return fmt.Sprintf("Zone(%d)", int(z))
	}
}

func (z Zone) MarshalText() ([]byte, error) { return []byte(z.String()), nil }

func (z *Zone) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "SAFE":
		*z = Safe
	case "WARNING":
		*z = Warning
	case "DANGER":
		*z = Danger
	default:
		return fmt.Errorf("unknown tension zone %q", b)
	}
	return nil
}

// Metrics is the stress assessment of one string.
type Metrics struct {
	StressMPa  float64 `json:"stress_mpa"`
	Zone       Zone    `json:"zone"`
	BarPercent float64 `json:"bar_percent"`
}

// StressMPa returns σ = 4ρL²f² in megapascals for a speaking length in
// millimetres.
func StressMPa(lengthMm, freq float64) float64 {
	l := lengthMm / 1000
	return 4 * SteelDensity * l * l * freq * freq / 1e6
}

// Classify places a stress value into a zone.
func Classify(mpa float64) Zone {
	switch {
	case mpa < YieldStrengthMPa:
		return Safe
	case mpa < BreakingPointMPa:
		return Warning
	default:
		return Danger
	}
}

// Assess computes the metrics for a string. ok is false unless both
// arguments are positive and finite.
func Assess(lengthMm, freq float64) (Metrics, bool) {
	if !positive(lengthMm) || !positive(freq) {
		return Metrics{}, false
	}

	mpa := StressMPa(lengthMm, freq)
	bar := math.Max(0, math.Min(100, mpa/BarScaleMPa*100))
	return Metrics{StressMPa: mpa, Zone: Classify(mpa), BarPercent: bar}, true
}

// MaxSafeFrequency is the frequency at which a string of the given length
// reaches the yield strength. It returns 0 for a non-positive length.
func MaxSafeFrequency(lengthMm float64) float64 {
	if !positive(lengthMm) {
		return 0
	}
	l := lengthMm / 1000
	return math.Sqrt(YieldStrengthMPa * 1e6 / (4 * SteelDensity * l * l))
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
