package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/resonance/internal/observe"
	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/models"
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// FallbackStore prefers the remote store and answers from the local one
// when the remote is missing or failing. Successful remote writes are
// mirrored locally so profiles stay available offline.
type FallbackStore struct {
	remote  ProfileStore
	local   ProfileStore
	timeout time.Duration
	log     Logger
	metrics *observe.Metrics
}

type FallbackOption func(*FallbackStore)

// WithRemoteTimeout bounds each remote call. Default 5s.
func WithRemoteTimeout(d time.Duration) FallbackOption {
	return func(s *FallbackStore) { s.timeout = d }
}

func WithStoreLogger(l Logger) FallbackOption {
	return func(s *FallbackStore) { s.log = l }
}

func WithStoreMetrics(m *observe.Metrics) FallbackOption {
	return func(s *FallbackStore) { s.metrics = m }
}

// NewFallbackStore combines the two backends. remote may be nil, in which
// case every result is tagged OriginLocal.
func NewFallbackStore(remote, local ProfileStore, opts ...FallbackOption) *FallbackStore {
	s := &FallbackStore{
		remote:  remote,
		local:   local,
		timeout: 5 * time.Second,
		log:     logger.GetLogger().With("[storage]"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

func (s *FallbackStore) HasRemote() bool { return s.remote != nil }

// fallback runs remoteFn then, on failure, localFn. Both failing returns
// an error that wraps both causes.
func fallback[T any](ctx context.Context, s *FallbackStore, op string,
	remoteFn func(context.Context, ProfileStore) (T, error),
	localFn func(context.Context, ProfileStore) (T, error),
) (Result[T], error) {
	if s.remote == nil {
		v, err := localFn(ctx, s.local)
		s.metrics.RecordStoreRequest(ctx, op, string(OriginLocal), err)
		if err != nil {
			return Result[T]{Origin: OriginLocal}, err
		}
		return Result[T]{Value: v, Origin: OriginLocal}, nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	v, remoteErr := remoteFn(rctx, s.remote)
	cancel()
	s.metrics.RecordStoreRequest(ctx, op, string(OriginRemote), remoteErr)
	if remoteErr == nil {
		return Result[T]{Value: v, Origin: OriginRemote}, nil
	}
	if ctx.Err() != nil {
		return Result[T]{}, ctx.Err()
	}

	if !errors.Is(remoteErr, ErrNotFound) {
		s.log.Warnf("remote %s failed, using local store: %v", op, remoteErr)
		s.metrics.RecordFallback(ctx, op)
	}

	v, localErr := localFn(ctx, s.local)
	s.metrics.RecordStoreRequest(ctx, op, string(OriginLocalFallback), localErr)
	if localErr != nil {
		if errors.Is(remoteErr, ErrNotFound) && errors.Is(localErr, ErrNotFound) {
			return Result[T]{Origin: OriginLocalFallback, RemoteErr: remoteErr}, localErr
		}
		return Result[T]{Origin: OriginLocalFallback, RemoteErr: remoteErr},
			fmt.Errorf("%s: remote: %w; local: %w", op, remoteErr, localErr)
	}
	return Result[T]{Value: v, Origin: OriginLocalFallback, RemoteErr: remoteErr}, nil
}

func (s *FallbackStore) SaveProfile(ctx context.Context, p models.TuningProfile) (Result[models.TuningProfile], error) {
	// assign the ID up front so both stores agree on it
	p, err := prepare(p)
	if err != nil {
		return Result[models.TuningProfile]{}, err
	}

	res, err := fallback(ctx, s, "save",
		func(ctx context.Context, st ProfileStore) (models.TuningProfile, error) {
			return st.SaveProfile(ctx, p)
		},
		func(ctx context.Context, st ProfileStore) (models.TuningProfile, error) {
			return st.SaveProfile(ctx, p)
		},
	)
	if err == nil && res.Origin == OriginRemote {
		if _, err := s.local.SaveProfile(ctx, res.Value); err != nil {
			s.log.Warnf("mirroring profile %s locally: %v", res.Value.ID, err)
		}
	}
	return res, err
}

func (s *FallbackStore) GetProfile(ctx context.Context, id string) (Result[models.TuningProfile], error) {
	get := func(ctx context.Context, st ProfileStore) (models.TuningProfile, error) {
		return st.GetProfile(ctx, id)
	}
	return fallback(ctx, s, "get", get, get)
}

func (s *FallbackStore) ListProfiles(ctx context.Context) (Result[[]models.TuningProfile], error) {
	list := func(ctx context.Context, st ProfileStore) ([]models.TuningProfile, error) {
		return st.ListProfiles(ctx)
	}
	return fallback(ctx, s, "list", list, list)
}

// DeleteProfile removes the profile from both stores.
func (s *FallbackStore) DeleteProfile(ctx context.Context, id string) (Result[struct{}], error) {
	res, err := fallback(ctx, s, "delete",
		func(ctx context.Context, st ProfileStore) (struct{}, error) {
			return struct{}{}, st.DeleteProfile(ctx, id)
		},
		func(ctx context.Context, st ProfileStore) (struct{}, error) {
			return struct{}{}, st.DeleteProfile(ctx, id)
		},
	)
	if err == nil && res.Origin == OriginRemote {
		if err := s.local.DeleteProfile(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			s.log.Warnf("removing local copy of %s: %v", id, err)
		}
	}
	return res, err
}

func (s *FallbackStore) Close() error {
	var errs []error
	if s.remote != nil {
		errs = append(errs, s.remote.Close())
	}
	errs = append(errs, s.local.Close())
	return errors.Join(errs...)
}
