package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ProfileKind tags what the captured frequencies of a TuningProfile mean.
type ProfileKind string

const (
	// KindInharmonicity holds measured partials of a particular instrument.
	KindInharmonicity ProfileKind = "INHARMONICITY_PROFILE"
	// KindReferenceTuning holds the target frequencies of a finished tuning.
	KindReferenceTuning ProfileKind = "REFERENCE_TUNING"
)

func (k ProfileKind) Valid() bool {
	return k == KindInharmonicity || k == KindReferenceTuning
}

// ParseProfileKind accepts the canonical names plus the short forms
// "inharmonicity" and "reference".
func ParseProfileKind(s string) (ProfileKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(KindInharmonicity), "INHARMONICITY":
		return KindInharmonicity, nil
	case string(KindReferenceTuning), "REFERENCE":
		return KindReferenceTuning, nil
	}
	return "", fmt.Errorf("unknown profile kind %q", s)
}

// ErrInvalidProfile is returned when a TuningProfile fails validation.
var ErrInvalidProfile = errors.New("invalid tuning profile")

// TuningProfile is a named, ordered set of captured frequencies.
// Data keeps at most one representative per note.
type TuningProfile struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Kind             ProfileKind `json:"kind"`
	Data             []float64   `json:"data"`
	SpeakingLengthMm *float64    `json:"speaking_length_mm,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Validate reports every problem with the profile at once.
func (p TuningProfile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !p.Kind.Valid() {
		errs = append(errs, fmt.Errorf("kind %q is not supported", p.Kind))
	}
	for i, f := range p.Data {
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			errs = append(errs, fmt.Errorf("data[%d] = %v is not a positive frequency", i, f))
			break
		}
	}
	if p.SpeakingLengthMm != nil && !(*p.SpeakingLengthMm > 0) {
		errs = append(errs, errors.New("speaking length must be positive"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidProfile, errors.Join(errs...))
}

// ProfileSummary is the listing view of a profile.
type ProfileSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      ProfileKind `json:"kind"`
	Entries   int         `json:"entries"`
	CreatedAt time.Time   `json:"created_at"`
}

func (p TuningProfile) Summary() ProfileSummary {
	return ProfileSummary{
		ID:        p.ID,
		Name:      p.Name,
		Kind:      p.Kind,
		Entries:   len(p.Data),
		CreatedAt: p.CreatedAt,
	}
}
