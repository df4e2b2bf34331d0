package audio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestSliceSourceFrames(t *testing.T) {
	samples := make([]float64, 5000)
	for i := range samples {
		samples[i] = float64(i)
	}
	src := NewSliceSource(samples, 44100, 2048, 1024)

	if src.Len() != 3 {
		t.Fatalf("Len = %d, want 3", src.Len())
	}

	ctx := context.Background()
	var starts []float64
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(f.Samples) != 2048 || f.SampleRate != 44100 {
			t.Fatalf("bad frame: %d samples at %d Hz", len(f.Samples), f.SampleRate)
		}
		starts = append(starts, f.Samples[0])
	}

	if len(starts) != 3 || starts[0] != 0 || starts[1] != 1024 || starts[2] != 2048 {
		t.Errorf("frame starts = %v", starts)
	}
}

func TestSliceSourceCancelled(t *testing.T) {
	src := NewSliceSource(make([]float64, 4096), 44100, 2048, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next error = %v, want context.Canceled", err)
	}
}

func TestChanSource(t *testing.T) {
	src := NewChanSource(48000, 1)
	ctx := context.Background()

	if err := src.Push(ctx, []float64{1, 2, 3}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	f, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(f.Samples) != 3 || f.SampleRate != 48000 {
		t.Errorf("frame = %+v", f)
	}

	src.Close()
	src.Close()

	if err := src.Push(ctx, []float64{1}); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Push after close = %v, want ErrSourceClosed", err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next after close = %v, want io.EOF", err)
	}
}

func TestChanSourceNextHonoursContext(t *testing.T) {
	src := NewChanSource(44100, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next error = %v, want deadline exceeded", err)
	}
}
