// Package storage persists tuning profiles locally in SQLite and remotely
// in PostgreSQL, with a fallback store that tags where each answer came
// from.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/utils"
)

var ErrNotFound = errors.New("profile not found")

// ProfileStore is implemented by every backend.
type ProfileStore interface {
	// SaveProfile inserts or replaces a profile. An empty ID is assigned.
	SaveProfile(ctx context.Context, p models.TuningProfile) (models.TuningProfile, error)
	GetProfile(ctx context.Context, id string) (models.TuningProfile, error)
	ListProfiles(ctx context.Context) ([]models.TuningProfile, error)
	DeleteProfile(ctx context.Context, id string) error
	Close() error
}

// Origin tells which backend served a request.
type Origin string

const (
	OriginRemote        Origin = "remote"
	OriginLocalFallback Origin = "local-fallback"
	OriginLocal         Origin = "local"
)

// Result carries a value and where it came from. RemoteErr is set when
// the remote store failed and the local store answered instead.
type Result[T any] struct {
	Value     T
	Origin    Origin
	RemoteErr error
}

// Degraded reports whether the remote store was tried and failed.
func (r Result[T]) Degraded() bool { return r.Origin == OriginLocalFallback }

// prepare validates p and fills its ID and creation time.
func prepare(p models.TuningProfile) (models.TuningProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return p, err
	}
	if p.ID == "" {
		p.ID = utils.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Data == nil {
		p.Data = []float64{}
	}
	return p, nil
}
