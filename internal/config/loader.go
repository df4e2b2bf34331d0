package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
)

// EnvListenAddr overrides server.listen_addr.
const EnvListenAddr = "RESONANCE_LISTEN_ADDR"

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	ApplyEnv(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates it. Environment variables are not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the non-empty environment variables read
// through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(storage.EnvDBPath); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := getenv(storage.EnvDatabaseURL); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := getenv(logger.EnvLevel); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := getenv(EnvListenAddr); v != "" {
		cfg.Server.ListenAddr = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := logger.ParseLevel(cfg.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("server.log_level: %w", err))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	if cfg.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", cfg.Server.MaxUploadMB))
	}

	if cfg.Storage.DBPath == "" {
		errs = append(errs, errors.New("storage.db_path is required"))
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is outside 8000..192000", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize < 256 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d is below 256", cfg.Audio.FrameSize))
	}
	if cfg.Audio.HopSize < 0 || cfg.Audio.HopSize > cfg.Audio.FrameSize {
		errs = append(errs, fmt.Errorf("audio.hop_size %d must be between 0 and frame_size", cfg.Audio.HopSize))
	}

	p := cfg.Pitch
	if p.Threshold < 0 || p.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("pitch.threshold %v must be in [0, 1)", p.Threshold))
	}
	if p.SustainThreshold < 0 || p.SustainThreshold >= 1 {
		errs = append(errs, fmt.Errorf("pitch.sustain_threshold %v must be in [0, 1)", p.SustainThreshold))
	}
	if p.Threshold > 0 && p.SustainThreshold > 0 && p.SustainThreshold < p.Threshold {
		errs = append(errs, errors.New("pitch.sustain_threshold must not be below pitch.threshold"))
	}
	if p.SilenceRMS < 0 {
		errs = append(errs, errors.New("pitch.silence_rms must not be negative"))
	}

	if t := cfg.Tuning.MatchTolerance; t <= 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("tuning.match_tolerance %v must be in (0, 1)", t))
	}
	if cfg.Tuning.SpeakingLengthMm < 0 {
		errs = append(errs, errors.New("tuning.speaking_length_mm must not be negative"))
	}

	return errors.Join(errs...)
}
