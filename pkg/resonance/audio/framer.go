package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrPartialSample is returned for byte input that does not hold whole
// float32 samples.
var ErrPartialSample = errors.New("audio: input is not a whole number of float32 samples")

// Framer cuts a stream of little-endian float32 samples into frames of a
// fixed size. Writes rarely line up with frame boundaries, so a partial
// frame is carried over to the next write. It is not safe for
// concurrent use.
type Framer struct {
	size int
	acc  []float64
}

func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultFrameSize
	}
	return &Framer{size: size, acc: make([]float64, 0, size)}
}

// WriteFloat32LE appends the samples in b and returns every frame it
// completed. Each returned frame is a fresh slice.
func (f *Framer) WriteFloat32LE(b []byte) ([][]float64, error) {
	if len(b)%4 != 0 {
		return nil, ErrPartialSample
	}

	var out [][]float64
	for ; len(b) >= 4; b = b[4:] {
		v := math.Float32frombits(binary.LittleEndian.Uint32(b))
		f.acc = append(f.acc, float64(v))
		if len(f.acc) == f.size {
			out = append(out, f.acc)
			f.acc = make([]float64, 0, f.size)
		}
	}
	return out, nil
}

// Pending returns the number of samples waiting for a full frame.
func (f *Framer) Pending() int { return len(f.acc) }
