//go:build !js && !wasm

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/himanishpuri/resonance/pkg/models"
)

const (
	DefaultDBFile = "resonance.sqlite3"
	EnvDBPath     = "RESONANCE_DB_PATH"
)

const errDBClientNil = "db client is nil"

// DBClient is the local SQLite profile store.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

var _ ProfileStore = (*DBClient)(nil)

// Profile is the row layout of tuning_profiles.
type Profile struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)"`
	Name             string    `gorm:"index:idx_profile_name"`
	Kind             string    `gorm:"type:varchar(32)"`
	Data             []float64 `gorm:"serializer:json"`
	SpeakingLengthMm *float64
	CreatedAt        time.Time
}

func (Profile) TableName() string { return "tuning_profiles" }

func (p Profile) model() models.TuningProfile {
	return models.TuningProfile{
		ID:               p.ID,
		Name:             p.Name,
		Kind:             models.ProfileKind(p.Kind),
		Data:             p.Data,
		SpeakingLengthMm: p.SpeakingLengthMm,
		CreatedAt:        p.CreatedAt.UTC(),
	}
}

func fromModel(m models.TuningProfile) Profile {
	return Profile{
		ID:               m.ID,
		Name:             m.Name,
		Kind:             string(m.Kind),
		Data:             m.Data,
		SpeakingLengthMm: m.SpeakingLengthMm,
		CreatedAt:        m.CreatedAt,
	}
}

// NewDBClient opens the database named by RESONANCE_DB_PATH, or
// resonance.sqlite3 in the working directory.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv(EnvDBPath)
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// one writer keeps sqlite from returning SQLITE_BUSY under the server
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Profile{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) SaveProfile(ctx context.Context, p models.TuningProfile) (models.TuningProfile, error) {
	if c == nil || c.DB == nil {
		return p, errors.New(errDBClientNil)
	}
	p, err := prepare(p)
	if err != nil {
		return p, err
	}

	row := fromModel(p)
	if err := c.DB.WithContext(ctx).Save(&row).Error; err != nil {
		return p, fmt.Errorf("saving profile: %w", err)
	}
	return row.model(), nil
}

func (c *DBClient) GetProfile(ctx context.Context, id string) (models.TuningProfile, error) {
	if c == nil || c.DB == nil {
		return models.TuningProfile{}, errors.New(errDBClientNil)
	}

	var row Profile
	err := c.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TuningProfile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.TuningProfile{}, fmt.Errorf("querying profile: %w", err)
	}
	return row.model(), nil
}

func (c *DBClient) ListProfiles(ctx context.Context) ([]models.TuningProfile, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rows []Profile
	if err := c.DB.WithContext(ctx).Order("created_at DESC").Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	out := make([]models.TuningProfile, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (c *DBClient) DeleteProfile(ctx context.Context, id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	res := c.DB.WithContext(ctx).Where("id = ?", id).Delete(&Profile{})
	if res.Error != nil {
		return fmt.Errorf("deleting profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountProfiles returns the number of stored profiles.
func (c *DBClient) CountProfiles(ctx context.Context) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.WithContext(ctx).Model(&Profile{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting profiles: %w", err)
	}
	return n, nil
}
