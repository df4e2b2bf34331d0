package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/himanishpuri/resonance/pkg/models"
)

const EnvDatabaseURL = "RESONANCE_DATABASE_URL"

// Schema is the DDL for the remote tuning_profiles table.
const Schema = `
CREATE TABLE IF NOT EXISTS tuning_profiles (
    id                 TEXT PRIMARY KEY,
    owner_id           TEXT NOT NULL DEFAULT '',
    name               TEXT NOT NULL,
    kind               TEXT NOT NULL,
    data               JSONB NOT NULL DEFAULT '[]',
    speaking_length_mm DOUBLE PRECISION,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tuning_profiles_owner ON tuning_profiles(owner_id);
`

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps the profiles of one owner in PostgreSQL.
type PostgresStore struct {
	db    DB
	owner string
	close func()
}

var _ ProfileStore = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection. Every query is scoped
// to owner.
func NewPostgresStore(db DB, owner string) *PostgresStore {
	return &PostgresStore{db: db, owner: owner}
}

// OpenPostgres connects a pool, checks it and applies Schema.
func OpenPostgres(ctx context.Context, url, owner string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := NewPostgresStore(pool, owner)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p models.TuningProfile) (models.TuningProfile, error) {
	p, err := prepare(p)
	if err != nil {
		return p, err
	}

	data, err := json.Marshal(p.Data)
	if err != nil {
		return p, fmt.Errorf("postgres: marshal data: %w", err)
	}

	const query = `
		INSERT INTO tuning_profiles (id, owner_id, name, kind, data, speaking_length_mm, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			data = EXCLUDED.data,
			speaking_length_mm = EXCLUDED.speaking_length_mm
		RETURNING created_at`

	err = s.db.QueryRow(ctx, query,
		p.ID, s.owner, p.Name, string(p.Kind), data, p.SpeakingLengthMm, p.CreatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		return p, fmt.Errorf("postgres: save %q: %w", p.ID, err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

const selectColumns = `id, name, kind, data, speaking_length_mm, created_at`

func scanProfile(row pgx.Row) (models.TuningProfile, error) {
	var (
		p      models.TuningProfile
		kind   string
		data   []byte
		length *float64
		at     time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &kind, &data, &length, &at); err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p.Data); err != nil {
		return p, fmt.Errorf("postgres: unmarshal data of %q: %w", p.ID, err)
	}
	p.Kind = models.ProfileKind(kind)
	p.SpeakingLengthMm = length
	p.CreatedAt = at.UTC()
	return p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (models.TuningProfile, error) {
	query := `SELECT ` + selectColumns + ` FROM tuning_profiles WHERE id = $1 AND owner_id = $2`

	p, err := scanProfile(s.db.QueryRow(ctx, query, id, s.owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TuningProfile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.TuningProfile{}, fmt.Errorf("postgres: get %q: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]models.TuningProfile, error) {
	query := `SELECT ` + selectColumns + ` FROM tuning_profiles WHERE owner_id = $1 ORDER BY created_at DESC, name`

	rows, err := s.db.Query(ctx, query, s.owner)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var out []models.TuningProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, id string) error {
	const query = `DELETE FROM tuning_profiles WHERE id = $1 AND owner_id = $2`

	tag, err := s.db.Exec(ctx, query, id, s.owner)
	if err != nil {
		return fmt.Errorf("postgres: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
