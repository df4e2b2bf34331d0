package note

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/himanishpuri/resonance/pkg/models"
)

const (
	// DefaultCaptureTarget is the number of distinct notes after which a
	// capture is reported complete.
	DefaultCaptureTarget = 50
	// DefaultMinSeparationHz is the smallest gap between two captured
	// frequencies.
	DefaultMinSeparationHz = 1.0
)

// CaptureSet accumulates distinct frequencies while a profile is being
// recorded. It is safe for concurrent use.
type CaptureSet struct {
	mu            sync.Mutex
	freqs         []float64
	target        int
	minSeparation float64
}

func NewCaptureSet() *CaptureSet {
	return &CaptureSet{target: DefaultCaptureTarget, minSeparation: DefaultMinSeparationHz}
}

// Add records freq unless it lies within the minimum separation of an
// entry already captured. It reports whether freq was added.
func (c *CaptureSet) Add(freq float64) bool {
	if !valid(freq) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.freqs {
		if math.Abs(existing-freq) < c.minSeparation {
			return false
		}
	}
	c.freqs = append(c.freqs, freq)
	return true
}

func (c *CaptureSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.freqs)
}

// Progress returns completion in percent, capped at 100.
func (c *CaptureSet) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return math.Min(float64(len(c.freqs))/float64(c.target), 1) * 100
}

// Frequencies returns the captured values in ascending order.
func (c *CaptureSet) Frequencies() []float64 {
	c.mu.Lock()
	out := slices.Clone(c.freqs)
	c.mu.Unlock()

	slices.Sort(out)
	return out
}

// Profile freezes the set into an unsaved TuningProfile.
func (c *CaptureSet) Profile(name string, kind models.ProfileKind, speakingLengthMm *float64) models.TuningProfile {
	return models.TuningProfile{
		Name:             name,
		Kind:             kind,
		Data:             c.Frequencies(),
		SpeakingLengthMm: speakingLengthMm,
		CreatedAt:        time.Now().UTC(),
	}
}
