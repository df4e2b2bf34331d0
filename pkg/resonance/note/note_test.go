package note

import (
	"errors"
	"math"
	"testing"

	"github.com/himanishpuri/resonance/pkg/models"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMapEqualTempered(t *testing.T) {
	tests := []struct {
		freq      float64
		wantLabel string
		wantMidi  int
		wantCents float64
	}{
		{440, "A4", 69, 0},
		{27.5, "A0", 21, 0},
		{4186.01, "C8", 108, 0},
		{261.6256, "C4", 60, 0},
		{445, "A4", 69, 19.56},
		{466.16, "A#4", 70, 0},
		{8.1758, "C-1", 0, 0},
	}
	for _, tt := range tests {
		got, ok := Map(tt.freq, NoProfile())
		if !ok {
			t.Fatalf("Map(%v) not ok", tt.freq)
		}
		if got.NoteLabel != tt.wantLabel || got.MidiIndex != tt.wantMidi {
			t.Errorf("Map(%v) = %s/%d, want %s/%d", tt.freq, got.NoteLabel, got.MidiIndex, tt.wantLabel, tt.wantMidi)
		}
		if !almostEqual(got.Cents, tt.wantCents, 0.05) {
			t.Errorf("Map(%v) cents = %.3f, want %.3f", tt.freq, got.Cents, tt.wantCents)
		}
		if got.FromProfile {
			t.Errorf("Map(%v) used a profile that was not given", tt.freq)
		}
	}
}

func TestMapInvalidFrequency(t *testing.T) {
	for _, f := range []float64{0, -440, math.NaN(), math.Inf(1)} {
		if _, ok := Map(f, NoProfile()); ok {
			t.Errorf("Map(%v) ok, want absent", f)
		}
	}
}

func TestMapWithProfile(t *testing.T) {
	p := WithProfile(models.TuningProfile{
		Name: "upright",
		Kind: models.KindInharmonicity,
		Data: []float64{110.4, 221.0, 442.0},
	})

	got, ok := Map(440, p)
	if !ok {
		t.Fatal("Map not ok")
	}
	if got.NoteLabel != "A4" || got.TargetFrequency != 442.0 || !got.FromProfile {
		t.Errorf("got %+v, want A4 against 442", got)
	}
	if !almostEqual(got.Cents, -7.85, 0.01) {
		t.Errorf("cents = %.3f, want -7.85", got.Cents)
	}

	// 1000 Hz has no entry within 6 percent
	got, _ = Map(1000, p)
	if got.FromProfile || !almostEqual(got.TargetFrequency, Frequency(got.MidiIndex), 1e-9) {
		t.Errorf("far frequency used profile target %v", got.TargetFrequency)
	}
}

func TestMapCentsRange(t *testing.T) {
	check := func(freq float64) {
		t.Helper()
		got, ok := Map(freq, NoProfile())
		if !ok {
			t.Fatalf("Map(%v) not ok", freq)
		}
		if got.Cents < -50 || got.Cents >= 50 {
			t.Errorf("Map(%v).Cents = %v, outside [-50, 50)", freq, got.Cents)
		}
		if got.NoteLabel != Label(got.MidiIndex) || got.TargetFrequency != Frequency(got.MidiIndex) {
			t.Errorf("Map(%v) = %+v, label or target disagrees with midi", freq, got)
		}
	}

	for f := 5.0; f < 13000; f *= 1.0037 {
		check(f)
	}
	// exact half-semitone points, below and above MIDI 0 as well
	for midi := -12; midi <= 127; midi++ {
		check(Frequency(midi) * math.Pow(2, 1.0/24))
		check(math.Sqrt(Frequency(midi) * Frequency(midi+1)))
	}
}

func TestMapExactProfileEntry(t *testing.T) {
	p := WithProfile(models.TuningProfile{
		Name: "grand",
		Kind: models.KindReferenceTuning,
		Data: []float64{219.1, 441.7, 883.9},
	})
	for _, f := range []float64{219.1, 441.7, 883.9} {
		got, ok := Map(f, p)
		if !ok || !got.FromProfile {
			t.Fatalf("Map(%v) = %+v, want profile target", f, got)
		}
		if got.Cents != 0 || got.TargetFrequency != f {
			t.Errorf("Map(%v): cents %v target %v, want 0 and %v", f, got.Cents, got.TargetFrequency, f)
		}
	}
}

func TestMapFarProfileMatchesNoProfile(t *testing.T) {
	p := WithProfile(models.TuningProfile{
		Name: "sparse",
		Kind: models.KindInharmonicity,
		Data: []float64{100, 400, 1600},
	})
	// every entry is more than 6 percent away
	for _, f := range []float64{110, 261.63, 440, 1000, 1800} {
		got, _ := Map(f, p)
		want, _ := Map(f, NoProfile())
		if got != want {
			t.Errorf("Map(%v) = %+v, want tempered result %+v", f, got, want)
		}
	}
}

func TestMapEmptyProfileFallsBack(t *testing.T) {
	p := WithProfile(models.TuningProfile{Name: "empty", Kind: models.KindReferenceTuning})
	got, _ := Map(445, p)
	if got.FromProfile || !almostEqual(got.Cents, 19.56, 0.05) {
		t.Errorf("empty profile: got %+v", got)
	}
}

func TestMapperTolerance(t *testing.T) {
	p := WithProfile(models.TuningProfile{Name: "x", Kind: models.KindInharmonicity, Data: []float64{450}})

	strict := Mapper{MatchTolerance: 0.01}
	if got, _ := strict.Map(440, p); got.FromProfile {
		t.Error("1% tolerance matched an entry 2.3% away")
	}
	loose := Mapper{MatchTolerance: 0.03}
	if got, _ := loose.Map(440, p); !got.FromProfile {
		t.Error("3% tolerance did not match an entry 2.3% away")
	}
}

func TestWithProfileCopiesData(t *testing.T) {
	data := []float64{440}
	p := WithProfile(models.TuningProfile{Name: "x", Kind: models.KindInharmonicity, Data: data})
	data[0] = 1

	got, _ := p.Get()
	if got.Data[0] != 440 {
		t.Errorf("profile data aliased caller slice: %v", got.Data)
	}
	if _, ok := NoProfile().Get(); ok {
		t.Error("NoProfile reported a profile")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"A4", 69},
		{"a4", 69},
		{"C#3", 49},
		{"Bb2", 46},
		{"C-1", 0},
		{"C8", 108},
		{"B#3", 60},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "H4", "A", "A#x"} {
		if _, err := Parse(bad); !errors.Is(err, ErrBadNoteName) {
			t.Errorf("Parse(%q) error = %v, want ErrBadNoteName", bad, err)
		}
	}
}

func TestLabelRoundTrip(t *testing.T) {
	for midi := 0; midi < 128; midi++ {
		got, err := Parse(Label(midi))
		if err != nil || got != midi {
			t.Errorf("Parse(Label(%d)) = %d, %v", midi, got, err)
		}
	}
}
