package audio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a4.wav")
	want := sine(440, 44100, 4410, 0.5)

	if err := WriteWAV(path, want, 44100); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	got, sr, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if sr != 44100 {
		t.Errorf("sample rate = %d", sr)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-4 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 22050, 16, 2, 1)
	// left at half scale, right silent: mono sits at a quarter
	data := make([]int, 200)
	for i := 0; i < len(data); i += 2 {
		data[i] = 16384
	}
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 22050},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, sr, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if sr != 22050 || len(got) != 100 {
		t.Fatalf("got %d samples at %d Hz", len(got), sr)
	}
	if math.Abs(got[0]-0.25) > 1e-9 {
		t.Errorf("mono sample = %v, want 0.25", got[0])
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not riff data")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("error = %v, want ErrInvalidWAV", err)
	}
}

func TestOpenWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.wav")
	if err := WriteWAV(path, sine(220, 44100, 8192, 0.4), 44100); err != nil {
		t.Fatal(err)
	}

	src, err := OpenWAV(path, 2048, 0)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	if src.Len() != 4 || src.SampleRate() != 44100 {
		t.Errorf("Len = %d, SampleRate = %d", src.Len(), src.SampleRate())
	}
}

func TestConvertToMonoWAV(t *testing.T) {
	if !FFmpegAvailable() {
		t.Skipf("ffmpeg not installed")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	if err := WriteWAV(in, sine(440, 22050, 22050, 0.5), 22050); err != nil {
		t.Fatal(err)
	}

	out, err := ConvertToMonoWAV(t.Context(), in, filepath.Join(dir, "out"), ConvertWAVConfig{SampleRate: 44100})
	if err != nil {
		t.Fatalf("ConvertToMonoWAV: %v", err)
	}
	_, sr, err := ReadWAV(out)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if sr != 44100 {
		t.Errorf("sample rate = %d, want 44100", sr)
	}
}
