// Package note names frequencies in twelve-tone equal temperament and
// measures their deviation against either the tempered scale or a
// captured tuning profile.
package note

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/himanishpuri/resonance/pkg/models"
)

const (
	A4Frequency = 440.0
	A4Midi      = 69

	// DefaultMatchTolerance bounds the relative distance between a
	// frequency and the closest profile entry for that entry to be used
	// as the target.
	DefaultMatchTolerance = 0.06
)

var names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Result describes the note closest to a frequency.
type Result struct {
	NoteLabel       string  `json:"note"`
	MidiIndex       int     `json:"midi"`
	TargetFrequency float64 `json:"target_frequency"`
	Cents           float64 `json:"cents"`
	// FromProfile is set when TargetFrequency came from a profile entry.
	FromProfile bool `json:"from_profile"`
}

// Profile is either absent or a captured tuning profile. The zero value
// is NoProfile.
type Profile struct {
	p *models.TuningProfile
}

func NoProfile() Profile { return Profile{} }

func WithProfile(p models.TuningProfile) Profile {
	p.Data = append([]float64(nil), p.Data...)
	return Profile{p: &p}
}

// Get returns the wrapped profile and whether one is present.
func (p Profile) Get() (models.TuningProfile, bool) {
	if p.p == nil {
		return models.TuningProfile{}, false
	}
	return *p.p, true
}

// Mapper converts frequencies to notes.
type Mapper struct {
	MatchTolerance float64
}

func NewMapper() Mapper {
	return Mapper{MatchTolerance: DefaultMatchTolerance}
}

// Map returns the note nearest to freq and its deviation in cents. The
// target is the closest profile entry when one lies within the match
// tolerance, otherwise the tempered frequency. ok is false when freq is
// not a positive finite number.
func (m Mapper) Map(freq float64, profile Profile) (Result, bool) {
	if !valid(freq) {
		return Result{}, false
	}

	midi, cents := nearest(freq)
	res := Result{
		NoteLabel:       Label(midi),
		MidiIndex:       midi,
		TargetFrequency: Frequency(midi),
		Cents:           cents,
	}

	if p, ok := profile.Get(); ok {
		if target, found := m.closest(freq, p.Data); found {
			res.TargetFrequency = target
			res.FromProfile = true
			res.Cents = Cents(freq, target)
		}
	}
	return res, true
}

// nearest returns the tempered note for freq and the deviation from it,
// which always lies in [-50, 50).
func nearest(freq float64) (int, float64) {
	midi := MidiIndex(freq)
	cents := Cents(freq, Frequency(midi))
	switch {
	case cents >= 50:
		midi++
		cents = Cents(freq, Frequency(midi))
	case cents < -50:
		midi--
		cents = Cents(freq, Frequency(midi))
	}
	return midi, math.Max(-50, math.Min(cents, math.Nextafter(50, 0)))
}

// Map uses a Mapper with the default tolerance.
func Map(freq float64, profile Profile) (Result, bool) {
	return NewMapper().Map(freq, profile)
}

func (m Mapper) closest(freq float64, data []float64) (float64, bool) {
	tol := m.MatchTolerance
	if tol <= 0 {
		tol = DefaultMatchTolerance
	}

	best, bestDist := 0.0, math.Inf(1)
	for _, c := range data {
		if d := math.Abs(c - freq); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best > 0 && bestDist/freq < tol {
		return best, true
	}
	return 0, false
}

// MidiIndex returns the nearest MIDI note number for a positive frequency.
func MidiIndex(freq float64) int {
	return int(math.Round(12*math.Log2(freq/A4Frequency) + A4Midi))
}

// Frequency returns the equal-tempered frequency of a MIDI note.
func Frequency(midi int) float64 {
	return A4Frequency * math.Pow(2, float64(midi-A4Midi)/12)
}

// Cents is the signed distance from target to freq in hundredths of a
// semitone.
func Cents(freq, target float64) float64 {
	return 1200 * math.Log2(freq/target)
}

// Label renders a MIDI index as a note name with octave, e.g. "A4".
func Label(midi int) string {
	pc := ((midi % 12) + 12) % 12
	octave := floorDiv(midi, 12) - 1
	return names[pc] + strconv.Itoa(octave)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

var ErrBadNoteName = errors.New("bad note name")

// Parse reads a note name such as "A4", "C#3", "Bb2" or "c-1" and returns
// its MIDI index.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadNoteName, s)
	}

	letter := strings.ToUpper(s[:1])
	pc := -1
	for i, n := range names {
		if n == letter {
			pc = i
		}
	}
	if pc < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadNoteName, s)
	}

	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		pc++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b") && len(rest) > 1:
		pc--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNoteName, s)
	}
	return (octave+1)*12 + pc, nil
}

func valid(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}
