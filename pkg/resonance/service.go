package resonance

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/session"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
	"github.com/himanishpuri/resonance/pkg/resonance/tension"
	"github.com/himanishpuri/resonance/pkg/utils"
)

// suggestThreshold is the Jaro-Winkler similarity above which a stored
// name is offered as a suggestion.
const suggestThreshold = 0.8

// tunerService is the default implementation of the Service interface.
type tunerService struct {
	storage Storage
	log     Logger
	config  *Config
	mapper  note.Mapper
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = audio.DefaultFrameSize
	}
	if cfg.HopSize <= 0 {
		cfg.HopSize = cfg.FrameSize
	}

	stor := cfg.Storage
	if stor == nil {
		var err error
		stor, err = NewStorage(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &tunerService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
		mapper:  note.Mapper{MatchTolerance: cfg.MatchTolerance},
	}, nil
}

func (s *tunerService) newSession(ctx context.Context, opts ListenOptions, extra ...session.Option) (*session.Session, error) {
	profile := note.NoProfile()
	if opts.ProfileID != "" {
		res, err := s.FindProfile(ctx, opts.ProfileID)
		if err != nil {
			return nil, err
		}
		p := res.Value
		s.log.Debugf("using profile %s (%s, %d points) from %s store", p.Name, p.Kind, len(p.Data), res.Origin)
		profile = note.WithProfile(p)
	}

	sopts := []session.Option{
		session.WithPitchConfig(s.config.Pitch),
		session.WithMapper(s.mapper),
		session.WithProfile(profile),
		session.WithSpeakingLength(opts.SpeakingLengthMm),
		session.WithLogger(s.log),
	}
	if opts.EmitUndetected {
		sopts = append(sopts, session.WithEmitUndetected())
	}
	if s.config.Metrics != nil {
		sopts = append(sopts, session.WithMetrics(s.config.Metrics))
	}
	return session.New(append(sopts, extra...)...), nil
}

func (s *tunerService) Listen(ctx context.Context, src audio.FrameSource, opts ListenOptions, emit func(session.Reading)) (session.Stats, error) {
	sess, err := s.newSession(ctx, opts)
	if err != nil {
		src.Close()
		return session.Stats{}, err
	}

	s.log.Infof("Listening at %d Hz", src.SampleRate())
	err = sess.Run(ctx, src, emit)
	st := sess.Stats()
	if st.Dropped > 0 {
		s.log.Debugf("dropped %d of %d frames while busy", st.Dropped, st.Read)
	}
	return st, err
}

// AnalyzeFile runs a recording through a blocking session. Non-WAV input
// is converted with ffmpeg first.
func (s *tunerService) AnalyzeFile(ctx context.Context, path string, opts ListenOptions) (*Analysis, error) {
	s.log.Infof("Analyzing: %s", path)

	wavPath := path
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		converted, err := audio.ConvertToMonoWAV(ctx, path, s.config.TempDir, audio.ConvertWAVConfig{
			SampleRate: s.config.SampleRate,
			Pitch:      s.config.Pitch,
		})
		if err != nil {
			return nil, fmt.Errorf("audio conversion failed: %w", err)
		}
		defer utils.DeleteFile(converted)
		wavPath = converted
	}

	samples, sampleRate, err := audio.ReadWAV(wavPath)
	if err != nil {
		return nil, err
	}

	sess, err := s.newSession(ctx, ListenOptions{
		ProfileID:        opts.ProfileID,
		SpeakingLengthMm: opts.SpeakingLengthMm,
	}, session.WithBlocking())
	if err != nil {
		return nil, err
	}

	var readings []session.Reading
	src := audio.NewSliceSource(samples, sampleRate, s.config.FrameSize, s.config.HopSize)
	if err := sess.Run(ctx, src, func(r session.Reading) {
		readings = append(readings, r)
	}); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := sess.Stats()
	a := &Analysis{
		Path:       path,
		SampleRate: sampleRate,
		DurationMs: int64(len(samples)) * 1000 / int64(sampleRate),
		Frames:     st.Processed,
		Detected:   st.Detected,
		Segments:   SegmentNotes(readings, s.config.FrameSize, s.config.HopSize, sampleRate),
		Readings:   readings,
	}
	s.log.Infof("Detected pitch in %d of %d frames, %d notes", a.Detected, a.Frames, len(a.Segments))
	return a, nil
}

// CaptureProfile analyzes a recording of individual notes and stores one
// frequency per detected note.
func (s *tunerService) CaptureProfile(ctx context.Context, path string, req CaptureRequest) (storage.Result[models.TuningProfile], error) {
	a, err := s.AnalyzeFile(ctx, path, ListenOptions{})
	if err != nil {
		return storage.Result[models.TuningProfile]{}, err
	}

	set := note.NewCaptureSet()
	for _, seg := range a.Segments {
		if !set.Add(seg.Freq) {
			s.log.Debugf("skipping %s at %.2f Hz, already captured", seg.Note, seg.Freq)
		}
	}
	if set.Len() == 0 {
		return storage.Result[models.TuningProfile]{}, fmt.Errorf("capture %s: %w", path, ErrNothingCaptured)
	}

	kind := req.Kind
	if kind == "" {
		kind = models.KindInharmonicity
	}
	s.log.Infof("Captured %d notes (%.0f%% of a full profile)", set.Len(), set.Progress())
	return s.SaveProfile(ctx, set.Profile(req.Name, kind, req.SpeakingLengthMm))
}

// MapFrequency maps freq to a note, against the named profile when one
// is given.
func (s *tunerService) MapFrequency(ctx context.Context, freq float64, profile string) (note.Result, bool, error) {
	p := note.NoProfile()
	if profile != "" {
		res, err := s.FindProfile(ctx, profile)
		if err != nil {
			return note.Result{}, false, err
		}
		p = note.WithProfile(res.Value)
	}
	res, ok := s.mapper.Map(freq, p)
	return res, ok, nil
}

func (s *tunerService) AssessTension(lengthMm, freq float64) (tension.Metrics, bool) {
	return tension.Assess(lengthMm, freq)
}

func (s *tunerService) SaveProfile(ctx context.Context, p models.TuningProfile) (storage.Result[models.TuningProfile], error) {
	res, err := s.storage.SaveProfile(ctx, p)
	if err != nil {
		return res, fmt.Errorf("failed to save profile: %w", err)
	}
	s.log.Infof("Saved profile %s (%s) to %s store", res.Value.Name, res.Value.ID, res.Origin)
	return res, nil
}

func (s *tunerService) GetProfile(ctx context.Context, id string) (storage.Result[models.TuningProfile], error) {
	return s.storage.GetProfile(ctx, id)
}

func (s *tunerService) ListProfiles(ctx context.Context) (storage.Result[[]models.TuningProfile], error) {
	return s.storage.ListProfiles(ctx)
}

func (s *tunerService) DeleteProfile(ctx context.Context, id string) (storage.Result[struct{}], error) {
	return s.storage.DeleteProfile(ctx, id)
}

func (s *tunerService) FindProfile(ctx context.Context, query string) (storage.Result[models.TuningProfile], error) {
	query = strings.TrimSpace(query)

	res, err := s.storage.GetProfile(ctx, query)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return res, err
	}

	list, err := s.storage.ListProfiles(ctx)
	if err != nil {
		return storage.Result[models.TuningProfile]{Origin: list.Origin, RemoteErr: list.RemoteErr}, err
	}

	var (
		best      string
		bestScore float64
	)
	for _, p := range list.Value {
		if strings.EqualFold(p.Name, query) {
			return storage.Result[models.TuningProfile]{Value: p, Origin: list.Origin, RemoteErr: list.RemoteErr}, nil
		}
		score := matchr.JaroWinkler(strings.ToLower(query), strings.ToLower(p.Name), false)
		if score > bestScore {
			best, bestScore = p.Name, score
		}
	}

	nf := &ProfileNotFoundError{Query: query}
	if bestScore >= suggestThreshold {
		nf.Suggestion = best
	}
	return storage.Result[models.TuningProfile]{Origin: list.Origin, RemoteErr: list.RemoteErr}, nf
}

func (s *tunerService) Close() error {
	return s.storage.Close()
}
