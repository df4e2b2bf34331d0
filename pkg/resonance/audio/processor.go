package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
	"github.com/himanishpuri/resonance/pkg/utils"
)

var (
	// ErrSampleRateTooLow is returned when the target rate cannot carry
	// the highest accepted fundamental.
	ErrSampleRateTooLow = errors.New("audio: sample rate too low for the pitch range")
	ErrNoFFmpeg         = errors.New("audio: ffmpeg not found on PATH")
)

// ConvertWAVConfig controls recording conversion. Pitch bounds the band
// that must survive: the rate has to exceed twice AcceptMaxHz and
// content well below AcceptMinHz is filtered out.
type ConvertWAVConfig struct {
	SampleRate int
	Timeout    time.Duration
	Pitch      pitch.Config
}

func (c ConvertWAVConfig) withDefaults() ConvertWAVConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Pitch.AcceptMaxHz == 0 {
		c.Pitch = pitch.DefaultConfig()
	}
	return c
}

// check rejects rates at or below the Nyquist limit of the pitch range.
func (c ConvertWAVConfig) check() error {
	if need := 2 * c.Pitch.AcceptMaxHz; float64(c.SampleRate) <= need {
		return fmt.Errorf("%w: %d Hz, need more than %.0f Hz", ErrSampleRateTooLow, c.SampleRate, need)
	}
	return nil
}

// ffmpegArgs builds the conversion command line. Video streams are
// dropped and a high-pass an octave below the lowest accepted pitch
// removes DC offset and handling rumble.
func (c ConvertWAVConfig) ffmpegArgs(inputPath, outputPath string) []string {
	args := []string{"-y", "-v", "error", "-i", inputPath, "-vn", "-ac", "1"}
	if cut := c.Pitch.AcceptMinHz / 2; cut > 0 {
		args = append(args, "-af", "highpass=f="+strconv.FormatFloat(cut, 'f', 2, 64))
	}
	return append(args,
		"-ar", strconv.Itoa(c.SampleRate),
		"-c:a", "pcm_s16le",
		outputPath,
	)
}

// ConvertToMonoWAV runs ffmpeg to turn any recording into a mono 16-bit
// WAV at the configured sample rate. The result is written into outputDir
// and its path returned.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.check(); err != nil {
		return "", err
	}
	if !FFmpegAvailable() {
		return "", ErrNoFFmpeg
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, base+".wav")

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", cfg.ffmpegArgs(inputPath, tmpPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed on %s: %v (%s)", filepath.Base(inputPath), err, strings.TrimSpace(string(out)))
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// FFmpegAvailable reports whether ffmpeg is on PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}
