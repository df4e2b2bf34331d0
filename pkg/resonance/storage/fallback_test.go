package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/models"
)

var errUnreachable = errors.New("remote unreachable")

// memStore is an in-memory ProfileStore that can be switched to failing.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]models.TuningProfile
	fail     error
	closed   bool
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]models.TuningProfile)}
}

func (m *memStore) SaveProfile(_ context.Context, p models.TuningProfile) (models.TuningProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return p, m.fail
	}
	p, err := prepare(p)
	if err != nil {
		return p, err
	}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *memStore) GetProfile(_ context.Context, id string) (models.TuningProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return models.TuningProfile{}, m.fail
	}
	p, ok := m.profiles[id]
	if !ok {
		return p, ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListProfiles(context.Context) ([]models.TuningProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]models.TuningProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) DeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

func newTestFallback(remote, local ProfileStore) *FallbackStore {
	return NewFallbackStore(remote, local, WithStoreLogger(logger.Discard()))
}

func TestFallbackLocalOnly(t *testing.T) {
	local := newMemStore()
	s := newTestFallback(nil, local)
	ctx := context.Background()

	if s.HasRemote() {
		t.Error("HasRemote = true without a remote store")
	}
	res, err := s.SaveProfile(ctx, testProfile("local", 440))
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if res.Origin != OriginLocal || res.Degraded() {
		t.Errorf("origin = %s, want %s", res.Origin, OriginLocal)
	}
	if _, ok := local.profiles[res.Value.ID]; !ok {
		t.Error("profile not stored locally")
	}
}

func TestFallbackRemoteHealthyMirrors(t *testing.T) {
	remote, local := newMemStore(), newMemStore()
	s := newTestFallback(remote, local)
	ctx := context.Background()

	res, err := s.SaveProfile(ctx, testProfile("grand", 440))
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if res.Origin != OriginRemote || res.RemoteErr != nil {
		t.Errorf("origin = %s remoteErr = %v", res.Origin, res.RemoteErr)
	}
	id := res.Value.ID
	if _, ok := remote.profiles[id]; !ok {
		t.Error("profile missing from remote")
	}
	if _, ok := local.profiles[id]; !ok {
		t.Error("remote save not mirrored locally")
	}

	del, err := s.DeleteProfile(ctx, id)
	if err != nil || del.Origin != OriginRemote {
		t.Fatalf("DeleteProfile: origin %s err %v", del.Origin, err)
	}
	if _, ok := local.profiles[id]; ok {
		t.Error("local copy survived remote delete")
	}
}

func TestFallbackRemoteDown(t *testing.T) {
	remote, local := newMemStore(), newMemStore()
	s := newTestFallback(remote, local)
	ctx := context.Background()

	saved, err := s.SaveProfile(ctx, testProfile("upright", 220))
	if err != nil {
		t.Fatal(err)
	}

	remote.fail = errUnreachable

	got, err := s.GetProfile(ctx, saved.Value.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Origin != OriginLocalFallback || !got.Degraded() {
		t.Errorf("origin = %s, want %s", got.Origin, OriginLocalFallback)
	}
	if !errors.Is(got.RemoteErr, errUnreachable) {
		t.Errorf("RemoteErr = %v, want %v", got.RemoteErr, errUnreachable)
	}
	if got.Value.Name != "upright" {
		t.Errorf("name = %q", got.Value.Name)
	}

	list, err := s.ListProfiles(ctx)
	if err != nil || list.Origin != OriginLocalFallback || len(list.Value) != 1 {
		t.Errorf("ListProfiles = %+v, %v", list, err)
	}

	offline, err := s.SaveProfile(ctx, testProfile("offline", 110))
	if err != nil {
		t.Fatalf("offline save: %v", err)
	}
	if offline.Origin != OriginLocalFallback {
		t.Errorf("offline save origin = %s", offline.Origin)
	}
}

func TestFallbackBothFail(t *testing.T) {
	remote, local := newMemStore(), newMemStore()
	remote.fail = errUnreachable
	local.fail = errors.New("disk full")
	s := newTestFallback(remote, local)

	_, err := s.ListProfiles(context.Background())
	if !errors.Is(err, errUnreachable) {
		t.Errorf("error %v does not wrap the remote cause", err)
	}
	if !errors.Is(err, local.fail) {
		t.Errorf("error %v does not wrap the local cause", err)
	}
}

func TestFallbackNotFoundEverywhere(t *testing.T) {
	s := newTestFallback(newMemStore(), newMemStore())

	res, err := s.GetProfile(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if res.Origin != OriginLocalFallback {
		t.Errorf("origin = %s", res.Origin)
	}
}

// slowStore blocks until the context is done.
type slowStore struct{ *memStore }

func (s *slowStore) ListProfiles(ctx context.Context) ([]models.TuningProfile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFallbackRemoteTimeout(t *testing.T) {
	local := newMemStore()
	local.profiles["a"] = testProfile("a", 440)
	s := NewFallbackStore(&slowStore{memStore: newMemStore()}, local,
		WithStoreLogger(logger.Discard()),
		WithRemoteTimeout(20*time.Millisecond),
	)

	res, err := s.ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if res.Origin != OriginLocalFallback || !errors.Is(res.RemoteErr, context.DeadlineExceeded) {
		t.Errorf("origin = %s remoteErr = %v", res.Origin, res.RemoteErr)
	}
}

func TestFallbackWithSQLiteLocal(t *testing.T) {
	client, _ := setupTestDB(t)
	remote := newMemStore()
	remote.fail = errUnreachable
	s := newTestFallback(remote, client)

	res, err := s.SaveProfile(context.Background(), testProfile("studio", 261.6))
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := client.GetProfile(context.Background(), res.Value.ID)
	if err != nil || got.Name != "studio" {
		t.Errorf("local row = %+v, %v", got, err)
	}
}

func TestFallbackClose(t *testing.T) {
	remote, local := newMemStore(), newMemStore()
	if err := newTestFallback(remote, local).Close(); err != nil {
		t.Fatal(err)
	}
	if !remote.closed || !local.closed {
		t.Error("Close did not reach both stores")
	}
}
