package audio

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
)

func TestConvertRejectsLowSampleRate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	for _, rate := range []int{8000, 9000} {
		_, err := ConvertToMonoWAV(t.Context(), filepath.Join(dir, "in.m4a"), out, ConvertWAVConfig{SampleRate: rate})
		if !errors.Is(err, ErrSampleRateTooLow) {
			t.Errorf("rate %d: error = %v, want ErrSampleRateTooLow", rate, err)
		}
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output dir created for rejected conversion: %v", err)
	}
}

func TestConvertConfigFollowsPitchRange(t *testing.T) {
	narrow := pitch.DefaultConfig()
	narrow.AcceptMaxHz = 1000

	cases := []struct {
		cfg ConvertWAVConfig
		ok  bool
	}{
		{ConvertWAVConfig{}, true},
		{ConvertWAVConfig{SampleRate: 22050}, true},
		{ConvertWAVConfig{SampleRate: 9000}, false},
		{ConvertWAVConfig{SampleRate: 8000, Pitch: narrow}, true},
		{ConvertWAVConfig{SampleRate: 2000, Pitch: narrow}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.withDefaults().check()
		if (err == nil) != tc.ok {
			t.Errorf("rate %d max %.0f: error = %v", tc.cfg.SampleRate, tc.cfg.Pitch.AcceptMaxHz, err)
		}
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ConvertWAVConfig{}.withDefaults().ffmpegArgs("in.mp4", "out.wav")

	for _, want := range []string{"-vn", "highpass=f=13.25", "44100", "pcm_s16le"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
	if args[len(args)-1] != "out.wav" {
		t.Errorf("output = %q", args[len(args)-1])
	}
}
