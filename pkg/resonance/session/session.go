// Package session drives a frame source through the pitch estimator, the
// note mapper and the tension model.
//
// A poller goroutine reads frames and hands them to a single worker over a
// one-slot channel, so at most one frame is being estimated at any time.
// In live mode a frame that arrives while the slot is taken is dropped;
// in blocking mode the poller waits instead, which suits files.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/resonance/internal/observe"
	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/resonance/audio"
	"github.com/himanishpuri/resonance/pkg/resonance/note"
	"github.com/himanishpuri/resonance/pkg/resonance/pitch"
	"github.com/himanishpuri/resonance/pkg/resonance/tension"
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Reading is the per-frame output of a session.
type Reading struct {
	// FrameSeq counts frames read from the source, dropped ones included,
	// starting at 0.
	FrameSeq uint64           `json:"frame_seq"`
	Estimate pitch.Estimate   `json:"estimate"`
	Note     *note.Result     `json:"note,omitempty"`
	Tension  *tension.Metrics `json:"tension,omitempty"`
}

// Stats summarizes a finished or running session.
type Stats struct {
	Read      uint64
	Processed uint64
	Dropped   uint64
	Detected  uint64
}

type Option func(*Session)

func WithPitchConfig(cfg pitch.Config) Option {
	return func(s *Session) { s.estimator = pitch.NewEstimator(cfg) }
}

func WithMapper(m note.Mapper) Option {
	return func(s *Session) { s.mapper = m }
}

func WithProfile(p note.Profile) Option {
	return func(s *Session) { s.profile = p }
}

// WithSpeakingLength enables tension assessment for every detected pitch.
func WithSpeakingLength(mm float64) Option {
	return func(s *Session) { s.lengthMm = mm }
}

// WithBlocking makes the poller wait for the worker instead of dropping.
func WithBlocking() Option {
	return func(s *Session) { s.blocking = true }
}

// WithEmitUndetected also emits readings for frames without a pitch.
func WithEmitUndetected() Option {
	return func(s *Session) { s.emitAll = true }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithLogger(l Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session owns one estimator and may be run repeatedly, but not
// concurrently.
type Session struct {
	estimator *pitch.Estimator
	mapper    note.Mapper
	profile   note.Profile
	lengthMm  float64
	blocking  bool
	emitAll   bool
	metrics   *observe.Metrics
	log       Logger

	running atomic.Bool
	read    atomic.Uint64
	proc    atomic.Uint64
	dropped atomic.Uint64
	found   atomic.Uint64
}

func New(opts ...Option) *Session {
	s := &Session{
		estimator: pitch.NewEstimator(pitch.DefaultConfig()),
		mapper:    note.NewMapper(),
		profile:   note.NoProfile(),
		log:       logger.GetLogger().With("[session]"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

var ErrAlreadyRunning = errors.New("session: already running")

type job struct {
	seq   uint64
	frame pitch.Frame
}

// Run consumes src until it is exhausted, fails, or ctx ends. emit is
// called from a single goroutine, never after ctx is done, and never
// after Run returns. src is closed before Run returns. Cancellation is
// not an error.
func (s *Session) Run(ctx context.Context, src audio.FrameSource, emit func(Reading)) error {
	defer src.Close()

	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.read.Store(0)
	s.proc.Store(0)
	s.dropped.Store(0)
	s.found.Store(0)

	s.estimator.Reset()
	defer s.estimator.Reset()

	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	g, gctx := errgroup.WithContext(ctx)
	slot := make(chan job, 1)

	g.Go(func() error {
		defer close(slot)
		return s.poll(gctx, src, slot)
	})
	g.Go(func() error {
		s.work(gctx, slot, emit)
		return nil
	})

	err := g.Wait()
	st := s.Stats()
	s.log.Debugf("finished: read=%d processed=%d dropped=%d detected=%d", st.Read, st.Processed, st.Dropped, st.Detected)

	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Session) poll(ctx context.Context, src audio.FrameSource, slot chan<- job) error {
	for {
		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		j := job{seq: s.read.Add(1) - 1, frame: frame}

		if s.blocking {
			select {
			case slot <- j:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		select {
		case slot <- j:
		default:
			s.dropped.Add(1)
			s.metrics.FramesDropped.Add(ctx, 1)
		}
	}
}

func (s *Session) work(ctx context.Context, slot <-chan job, emit func(Reading)) {
	lastZone := tension.Safe
	for j := range slot {
		if ctx.Err() != nil {
			continue
		}

		start := time.Now()
		est := s.estimator.Estimate(j.frame)
		s.metrics.EstimateDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.FramesProcessed.Add(ctx, 1)
		s.proc.Add(1)

		r := Reading{FrameSeq: j.seq, Estimate: est}
		if est.Detected() {
			s.found.Add(1)
			s.metrics.FramesDetected.Add(ctx, 1)
			if res, ok := s.mapper.Map(est.Frequency, s.profile); ok {
				r.Note = &res
			}
			if m, ok := tension.Assess(s.lengthMm, est.Frequency); ok {
				r.Tension = &m
				if m.Zone != lastZone && m.Zone != tension.Safe {
					s.log.Warnf("string stress %.0f MPa at %.2f Hz is in the %s zone", m.StressMPa, est.Frequency, m.Zone)
				}
				lastZone = m.Zone
			}
		} else if !s.emitAll {
			continue
		}

		if ctx.Err() != nil {
			continue
		}
		emit(r)
	}
}

func (s *Session) Stats() Stats {
	return Stats{
		Read:      s.read.Load(),
		Processed: s.proc.Load(),
		Dropped:   s.dropped.Load(),
		Detected:  s.found.Load(),
	}
}
