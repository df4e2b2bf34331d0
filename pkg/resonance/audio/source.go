// Package audio provides frame sources for the pitch estimator and the
// file plumbing around them.
package audio

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
)

const (
	DefaultFrameSize  = 2048
	DefaultSampleRate = 44100
)

// ErrSourceClosed is returned by Push after the source was closed.
var ErrSourceClosed = errors.New("audio: source closed")

// FrameSource yields consecutive mono frames. Next returns io.EOF once the
// stream is exhausted and ctx.Err() when ctx ends first.
type FrameSource interface {
	Next(ctx context.Context) (pitch.Frame, error)
	SampleRate() int
	Close() error
}

// SliceSource cuts an in-memory signal into frames of Size samples,
// advancing Hop samples each time. A trailing partial frame is dropped.
type SliceSource struct {
	samples    []float64
	sampleRate int
	size       int
	hop        int
	pos        int
}

func NewSliceSource(samples []float64, sampleRate, size, hop int) *SliceSource {
	if size <= 0 {
		size = DefaultFrameSize
	}
	if hop <= 0 {
		hop = size
	}
	return &SliceSource{samples: samples, sampleRate: sampleRate, size: size, hop: hop}
}

func (s *SliceSource) Next(ctx context.Context) (pitch.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pitch.Frame{}, err
	}
	if s.pos+s.size > len(s.samples) {
		return pitch.Frame{}, io.EOF
	}
	f := pitch.Frame{Samples: s.samples[s.pos : s.pos+s.size], SampleRate: s.sampleRate}
	s.pos += s.hop
	return f, nil
}

func (s *SliceSource) SampleRate() int { return s.sampleRate }

// Hop is the distance in samples between the starts of two frames.
func (s *SliceSource) Hop() int { return s.hop }

// Len is the number of whole frames the source yields in total.
func (s *SliceSource) Len() int {
	if len(s.samples) < s.size {
		return 0
	}
	return (len(s.samples)-s.size)/s.hop + 1
}

func (s *SliceSource) Close() error { return nil }

// ChanSource is fed by a producer such as a network stream.
type ChanSource struct {
	frames     chan pitch.Frame
	done       chan struct{}
	once       sync.Once
	sampleRate int
}

func NewChanSource(sampleRate, buffer int) *ChanSource {
	return &ChanSource{
		frames:     make(chan pitch.Frame, buffer),
		done:       make(chan struct{}),
		sampleRate: sampleRate,
	}
}

// Push hands one frame to the consumer, waiting for buffer space.
func (c *ChanSource) Push(ctx context.Context, samples []float64) error {
	select {
	case <-c.done:
		return ErrSourceClosed
	default:
	}

	select {
	case c.frames <- pitch.Frame{Samples: samples, SampleRate: c.sampleRate}:
		return nil
	case <-c.done:
		return ErrSourceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ChanSource) Next(ctx context.Context) (pitch.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return pitch.Frame{}, io.EOF
	case <-ctx.Done():
		return pitch.Frame{}, ctx.Err()
	}
}

func (c *ChanSource) SampleRate() int { return c.sampleRate }

// Close ends the stream. Frames still buffered may be discarded.
func (c *ChanSource) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
