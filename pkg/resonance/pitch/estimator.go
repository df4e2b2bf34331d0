// Package pitch estimates the fundamental frequency of a monophonic frame
// using the average magnitude difference function (AMDF).
package pitch

import (
	"math"
	"time"

	"github.com/cwbudde/algo-vecmath"
)

// Frame is a block of mono samples in [-1, 1].
type Frame struct {
	Samples    []float64
	SampleRate int
}

// Estimate is the outcome of one frame. Frequency 0 means no pitch.
type Estimate struct {
	Frequency   float64 `json:"frequency"`
	TimestampMs int64   `json:"timestamp_ms"`
	// Clarity is the difference floor at the chosen lag divided by the
	// mean difference over the lag window, so it does not depend on the
	// signal level. Lower is more periodic; noise sits near 1.
	Clarity float64 `json:"clarity"`
}

func (e Estimate) Detected() bool { return e.Frequency > 0 }

// Config holds the estimator thresholds. The zero value is not usable,
// start from DefaultConfig.
type Config struct {
	// Lag search window.
	MinHz float64
	MaxHz float64

	// Open interval of accepted frequencies.
	AcceptMinHz float64
	AcceptMaxHz float64

	SilenceRMS       float64
	Threshold        float64
	SustainThreshold float64
	SustainWindowHz  float64
	// Clarity above which the continuity state is dropped.
	LostThreshold float64
	// Fraction of the difference range above the global minimum within
	// which the first local minimum is taken as the period.
	DipTolerance float64
}

func DefaultConfig() Config {
	return Config{
		MinHz:            26,
		MaxHz:            4500,
		AcceptMinHz:      26.5,
		AcceptMaxHz:      4500,
		SilenceRMS:       0.002,
		Threshold:        0.08,
		SustainThreshold: 0.15,
		SustainWindowHz:  2,
		LostThreshold:    0.3,
		DipTolerance:     0.2,
	}
}

// Estimator carries the continuity state between frames of one stream.
// It is not safe for concurrent use; give each stream its own instance.
type Estimator struct {
	cfg   Config
	last  float64
	now   func() time.Time
	sq    []float64
	diffs []float64
}

func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg, now: time.Now}
}

// Reset forgets the last accepted frequency.
func (e *Estimator) Reset() { e.last = 0 }

// LastFrequency returns the last accepted frequency, 0 if none.
func (e *Estimator) LastFrequency() float64 { return e.last }

func (e *Estimator) Config() Config { return e.cfg }

// Estimate analyzes one frame. It never fails: unusable input yields a
// zero frequency.
func (e *Estimator) Estimate(f Frame) Estimate {
	out := Estimate{TimestampMs: e.now().UnixMilli(), Clarity: 1}

	n := len(f.Samples)
	if n == 0 || f.SampleRate <= 0 {
		return out
	}

	// NaN energy falls through as silence
	if rms := e.rms(f.Samples); !(rms >= e.cfg.SilenceRMS) {
		e.last = 0
		return out
	}

	sr := float64(f.SampleRate)
	lo := int(sr / e.cfg.MaxHz)
	hi := int(sr / e.cfg.MinHz)
	if hi > n-1 {
		hi = n - 1
	}
	if lo < 2 {
		lo = 2
	}
	if hi-lo < 2 {
		return out
	}

	d := e.differences(f.Samples, lo-1, hi)

	dmin, dmax, mean := math.Inf(1), math.Inf(-1), 0.0
	for k := lo; k < hi; k++ {
		dmin = math.Min(dmin, d[k])
		dmax = math.Max(dmax, d[k])
		mean += d[k]
	}
	mean /= float64(hi - lo)
	if !(mean > 0) {
		return out
	}
	limit := dmin + e.cfg.DipTolerance*(dmax-dmin)

	// The refined floor is compared, not d[k]: a short period sitting
	// between two integer lags leaves both of them well above the dip.
	best := -1
	for k := lo; k < hi; k++ {
		if d[k] > d[k-1] || d[k] > d[k+1] {
			continue
		}
		if _, floor := refine(d[k-1], d[k], d[k+1]); floor <= limit {
			best = k
			break
		}
	}
	if best < 0 {
		best = lo
		for k := lo + 1; k < hi; k++ {
			if d[k] < d[best] {
				best = k
			}
		}
	}

	lag, floor := refine(d[best-1], d[best], d[best+1])
	out.Clarity = floor / mean
	freq := sr / (float64(best) + lag)

	if e.accept(freq, out.Clarity) {
		out.Frequency = freq
	}
	return out
}

// accept applies the clarity threshold with hysteresis and updates the
// continuity state.
func (e *Estimator) accept(freq, clarity float64) bool {
	threshold := e.cfg.Threshold
	if e.last > 0 && math.Abs(freq-e.last) < e.cfg.SustainWindowHz {
		threshold = e.cfg.SustainThreshold
	}

	if clarity < threshold && freq > e.cfg.AcceptMinHz && freq < e.cfg.AcceptMaxHz {
		e.last = freq
		return true
	}
	if clarity > e.cfg.LostThreshold {
		e.last = 0
	}
	return false
}

func (e *Estimator) rms(x []float64) float64 {
	if cap(e.sq) < len(x) {
		e.sq = make([]float64, len(x))
	}
	sq := e.sq[:len(x)]
	vecmath.MulBlock(sq, x, x)

	var sum float64
	for _, v := range sq {
		sum += v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// differences fills d[k] = mean |x[i] - x[i+k]| for k in [from, to].
func (e *Estimator) differences(x []float64, from, to int) []float64 {
	if cap(e.diffs) < to+1 {
		e.diffs = make([]float64, to+1)
	}
	d := e.diffs[:to+1]
	n := len(x)
	for k := from; k <= to; k++ {
		var sum float64
		a, b := x[:n-k], x[k:]
		for i := range a {
			sum += math.Abs(a[i] - b[i])
		}
		d[k] = sum / float64(n-k)
	}
	return d
}

// refine fits a symmetric V through three difference values around an
// integer minimum. It returns the fractional offset of the vertex in
// [-0.5, 0.5] and the interpolated floor.
func refine(left, mid, right float64) (offset, floor float64) {
	if m := math.Max(left, right) - mid; m > 0 {
		offset = (left - right) / (2 * m)
	}
	offset = math.Max(-0.5, math.Min(0.5, offset))
	floor = math.Max(0, mid-math.Abs(left-right)/2)
	return offset, floor
}
