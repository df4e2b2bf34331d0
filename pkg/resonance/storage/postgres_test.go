package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/himanishpuri/resonance/pkg/models"
)

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	return assign(r.data[r.idx-1], dest)
}

func assign(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		case **float64:
			*d = v.(*float64)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func profileRow(id, name string, data []float64, at time.Time) []any {
	raw, _ := json.Marshal(data)
	return []any{id, name, string(models.KindReferenceTuning), raw, (*float64)(nil), at}
}

func TestPostgresMigrate(t *testing.T) {
	var executed string
	db := &mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		executed = sql
		return pgconn.CommandTag{}, nil
	}}
	if err := NewPostgresStore(db, "u1").Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(executed, "CREATE TABLE IF NOT EXISTS tuning_profiles") {
		t.Errorf("unexpected DDL: %q", executed)
	}
}

func TestPostgresSaveScopesOwner(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotArgs []any
	db := &mockDB{queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
		gotArgs = args
		return &mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*time.Time)) = created
			return nil
		}}
	}}

	saved, err := NewPostgresStore(db, "user-7").SaveProfile(context.Background(), testProfile("grand", 440, 880))
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if saved.ID == "" || !saved.CreatedAt.Equal(created) {
		t.Errorf("saved = %+v", saved)
	}
	if gotArgs[1] != "user-7" {
		t.Errorf("owner arg = %v, want user-7", gotArgs[1])
	}
	if string(gotArgs[4].([]byte)) != "[440,880]" {
		t.Errorf("data arg = %s", gotArgs[4])
	}
}

func TestPostgresGet(t *testing.T) {
	at := time.Now().UTC().Truncate(time.Second)
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		if args[0] != "p1" {
			return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
		}
		return &mockRow{scanFunc: func(dest ...any) error {
			return assign(profileRow("p1", "concert", []float64{261.7}, at), dest)
		}}
	}}
	s := NewPostgresStore(db, "")

	got, err := s.GetProfile(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Name != "concert" || got.Kind != models.KindReferenceTuning || got.Data[0] != 261.7 {
		t.Errorf("got %+v", got)
	}

	if _, err := s.GetProfile(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing error = %v, want ErrNotFound", err)
	}
}

func TestPostgresList(t *testing.T) {
	at := time.Now().UTC()
	rows := &mockRows{data: [][]any{
		profileRow("a", "first", []float64{110}, at),
		profileRow("b", "second", []float64{}, at),
	}}
	db := &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) { return rows, nil }}

	list, err := NewPostgresStore(db, "").ListProfiles(context.Background())
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(list) != 2 || list[1].Name != "second" {
		t.Errorf("list = %+v", list)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}
}

func TestPostgresDelete(t *testing.T) {
	affected := "DELETE 1"
	db := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag(affected), nil
	}}
	s := NewPostgresStore(db, "")

	if err := s.DeleteProfile(context.Background(), "a"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	affected = "DELETE 0"
	if err := s.DeleteProfile(context.Background(), "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPostgresQueryError(t *testing.T) {
	boom := errors.New("connection reset")
	db := &mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) { return nil, boom }}

	if _, err := NewPostgresStore(db, "").ListProfiles(context.Background()); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}
