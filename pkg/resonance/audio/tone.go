package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	beepwav "github.com/gopxl/beep/wav"
)

// Tone describes a reference tone made of a fundamental and its partials.
type Tone struct {
	Frequency  float64
	Duration   time.Duration
	SampleRate int
	// Partials is the number of harmonics including the fundamental.
	// Partial n has amplitude 1/n before normalization.
	Partials int
	// Inharmonicity B raises partial n to n·f·sqrt(1 + B·n²).
	Inharmonicity float64
	// Amplitude of the summed signal peak, at most 1.
	Amplitude float64
}

func (t Tone) withDefaults() Tone {
	if t.SampleRate <= 0 {
		t.SampleRate = DefaultSampleRate
	}
	if t.Duration <= 0 {
		t.Duration = 2 * time.Second
	}
	if t.Partials <= 0 {
		t.Partials = 1
	}
	if t.Amplitude <= 0 || t.Amplitude > 1 {
		t.Amplitude = 0.5
	}
	return t
}

// PartialFrequency returns the frequency of the n-th partial (n ≥ 1).
func (t Tone) PartialFrequency(n int) float64 {
	fn := float64(n)
	return fn * t.Frequency * math.Sqrt(1+t.Inharmonicity*fn*fn)
}

// Streamer builds the tone as a finite beep streamer.
func (t Tone) Streamer() (beep.Streamer, beep.Format, error) {
	t = t.withDefaults()
	sr := beep.SampleRate(t.SampleRate)
	format := beep.Format{SampleRate: sr, NumChannels: 1, Precision: 2}

	if !(t.Frequency > 0) {
		return nil, format, errors.New("tone frequency must be positive")
	}

	var norm float64
	for n := 1; n <= t.Partials; n++ {
		norm += 1 / float64(n)
	}

	var parts []beep.Streamer
	for n := 1; n <= t.Partials; n++ {
		f := t.PartialFrequency(n)
		if f >= float64(t.SampleRate)/2 {
			break
		}
		sine, err := generators.SineTone(sr, f)
		if err != nil {
			return nil, format, fmt.Errorf("partial %d at %.2f Hz: %w", n, f, err)
		}
		gain := t.Amplitude / float64(n) / norm
		parts = append(parts, &effects.Volume{Streamer: sine, Base: 2, Volume: math.Log2(gain)})
	}

	return beep.Take(sr.N(t.Duration), beep.Mix(parts...)), format, nil
}

// Encode writes the tone as a 16-bit mono WAV.
func (t Tone) Encode(w io.WriteSeeker) error {
	s, format, err := t.Streamer()
	if err != nil {
		return err
	}
	return beepwav.Encode(w, s, format)
}

// WriteTone writes the tone to a new WAV file at path.
func WriteTone(path string, t Tone) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write tone: %w", err)
	}
	return f.Close()
}

// Render pulls n mono samples out of a beep streamer.
func Render(s beep.Streamer, n int) []float64 {
	out := make([]float64, 0, n)
	buf := make([][2]float64, 512)
	for len(out) < n {
		want := min(len(buf), n-len(out))
		got, ok := s.Stream(buf[:want])
		for i := 0; i < got; i++ {
			out = append(out, (buf[i][0]+buf[i][1])/2)
		}
		if !ok || got == 0 {
			break
		}
	}
	return out
}
