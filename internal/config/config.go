// Package config provides the configuration schema and loader shared by
// the resonance server and CLI.
package config

import (
	"time"

	"github.com/himanishpuri/resonance/pkg/resonance"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Audio   AudioConfig   `yaml:"audio"`
	Pitch   PitchConfig   `yaml:"pitch"`
	Tuning  TuningConfig  `yaml:"tuning"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxUploadMB bounds POST /api/analyze bodies.
	MaxUploadMB int `yaml:"max_upload_mb"`
	// AllowedOrigins for the tuning WebSocket. Empty means same origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
	// DatabaseURL enables the PostgreSQL store when set.
	DatabaseURL string `yaml:"database_url"`
	Owner       string `yaml:"owner"`
}

type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	FrameSize  int    `yaml:"frame_size"`
	HopSize    int    `yaml:"hop_size"`
	Device     string `yaml:"device"`
	TempDir    string `yaml:"temp_dir"`
}

// PitchConfig overrides estimator thresholds. Zero fields keep the
// built-in values.
type PitchConfig struct {
	Threshold        float64 `yaml:"threshold"`
	SustainThreshold float64 `yaml:"sustain_threshold"`
	SilenceRMS       float64 `yaml:"silence_rms"`
}

type TuningConfig struct {
	MatchTolerance   float64 `yaml:"match_tolerance"`
	SpeakingLengthMm float64 `yaml:"speaking_length_mm"`
	Profile          string  `yaml:"profile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
			MaxUploadMB:     32,
		},
		Storage: StorageConfig{
			DBPath: storage.DefaultDBFile,
		},
		Audio: AudioConfig{
			SampleRate: audio.DefaultSampleRate,
			FrameSize:  audio.DefaultFrameSize,
			TempDir:    "/tmp",
		},
		Tuning: TuningConfig{
			MatchTolerance: note.DefaultMatchTolerance,
		},
	}
}

// PitchParams merges the overrides into the estimator defaults.
func (c *Config) PitchParams() pitch.Config {
	p := pitch.DefaultConfig()
	if c.Pitch.Threshold > 0 {
		p.Threshold = c.Pitch.Threshold
	}
	if c.Pitch.SustainThreshold > 0 {
		p.SustainThreshold = c.Pitch.SustainThreshold
	}
	if c.Pitch.SilenceRMS > 0 {
		p.SilenceRMS = c.Pitch.SilenceRMS
	}
	return p
}

// ServiceOptions translates the configuration into service options.
func (c *Config) ServiceOptions() []resonance.Option {
	return []resonance.Option{
		resonance.WithDBPath(c.Storage.DBPath),
		resonance.WithRemoteURL(c.Storage.DatabaseURL, c.Storage.Owner),
		resonance.WithTempDir(c.Audio.TempDir),
		resonance.WithSampleRate(c.Audio.SampleRate),
		resonance.WithFrameSize(c.Audio.FrameSize),
		resonance.WithHopSize(c.Audio.HopSize),
		resonance.WithMatchTolerance(c.Tuning.MatchTolerance),
		resonance.WithPitchConfig(c.PitchParams()),
	}
}
