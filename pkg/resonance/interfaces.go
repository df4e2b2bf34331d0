package resonance

import (
	"context"

	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/session"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
	"github.com/himanishpuri/resonance/pkg/resonance/tension"
)

type Service interface {
	// Listen runs a live session over src until ctx ends or src is
	// exhausted. Frames arriving while the estimator is busy are dropped.
	Listen(ctx context.Context, src audio.FrameSource, opts ListenOptions, emit func(session.Reading)) (session.Stats, error)
	AnalyzeFile(ctx context.Context, path string, opts ListenOptions) (*Analysis, error)
	CaptureProfile(ctx context.Context, path string, req CaptureRequest) (storage.Result[models.TuningProfile], error)
	MapFrequency(ctx context.Context, freq float64, profile string) (note.Result, bool, error)
	AssessTension(lengthMm, freq float64) (tension.Metrics, bool)

	SaveProfile(ctx context.Context, p models.TuningProfile) (storage.Result[models.TuningProfile], error)
	GetProfile(ctx context.Context, id string) (storage.Result[models.TuningProfile], error)
	ListProfiles(ctx context.Context) (storage.Result[[]models.TuningProfile], error)
	DeleteProfile(ctx context.Context, id string) (storage.Result[struct{}], error)
	// FindProfile resolves an ID or a case-insensitive name. The result
	// carries the origin of the lookup that found it.
	FindProfile(ctx context.Context, query string) (storage.Result[models.TuningProfile], error)
	Close() error
}

// Storage is satisfied by *storage.FallbackStore.
type Storage interface {
	SaveProfile(ctx context.Context, p models.TuningProfile) (storage.Result[models.TuningProfile], error)
	GetProfile(ctx context.Context, id string) (storage.Result[models.TuningProfile], error)
	ListProfiles(ctx context.Context) (storage.Result[[]models.TuningProfile], error)
	DeleteProfile(ctx context.Context, id string) (storage.Result[struct{}], error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
