package resonance

import (
	"github.com/himanishpuri/resonance/internal/observe"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
)

type Config struct {
	DBPath    string
	RemoteURL string
	// Owner scopes remote profiles, one owner per instrument owner.
	Owner          string
	TempDir        string
	SampleRate     int
	FrameSize      int
	HopSize        int
	MatchTolerance float64
	Pitch          pitch.Config
	Logger         Logger
	Storage        Storage
	Metrics        *observe.Metrics
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithRemoteURL enables the PostgreSQL profile store. An empty url keeps
// the service local only.
func WithRemoteURL(url, owner string) Option {
	return func(c *Config) {
		c.RemoteURL = url
		c.Owner = owner
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithFrameSize(size int) Option {
	return func(c *Config) {
		c.FrameSize = size
	}
}

// WithHopSize sets the frame advance used when analyzing files.
func WithHopSize(hop int) Option {
	return func(c *Config) {
		c.HopSize = hop
	}
}

func WithMatchTolerance(tol float64) Option {
	return func(c *Config) {
		c.MatchTolerance = tol
	}
}

func WithPitchConfig(cfg pitch.Config) Option {
	return func(c *Config) {
		c.Pitch = cfg
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:         storage.DefaultDBFile,
		TempDir:        "/tmp",
		SampleRate:     audio.DefaultSampleRate,
		FrameSize:      audio.DefaultFrameSize,
		MatchTolerance: note.DefaultMatchTolerance,
		Pitch:          pitch.DefaultConfig(),
	}
}
