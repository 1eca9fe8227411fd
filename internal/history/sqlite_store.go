package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jscyril/golang_media_player/api"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Ensure SQLiteStore implements PositionStore at compile time
var _ api.PositionStore = (*SQLiteStore)(nil)

// Position is one remembered resume point.
type Position struct {
	SourceID   string    `gorm:"column:source_id;primaryKey;size:64"`
	PositionUS int64     `gorm:"column:position_us;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Position) TableName() string { return "playback_positions" }

// SQLiteStore keeps positions in an SQLite database through GORM using the
// pure Go driver.
type SQLiteStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	// A single writer keeps SQLite free of lock contention.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Position{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating history: %w", err)
	}

	log.Debug("history database opened", slog.String("component", "history"), slog.String("path", path))
	return &SQLiteStore{db: db, logger: log}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sourceID string) (time.Duration, bool, error) {
	var p Position
	err := s.db.WithContext(ctx).First(&p, "source_id = ?", sourceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get position: %w", err)
	}
	return api.DurationFromPTS(p.PositionUS), true, nil
}

// Set upserts position; positions below MinResumePosition clear the entry.
func (s *SQLiteStore) Set(ctx context.Context, sourceID string, position time.Duration) error {
	db := s.db.WithContext(ctx)
	if position < MinResumePosition {
		if err := db.Delete(&Position{}, "source_id = ?", sourceID).Error; err != nil {
			return fmt.Errorf("clear position: %w", err)
		}
		return nil
	}

	p := Position{SourceID: sourceID, PositionUS: api.PTSFromDuration(position), UpdatedAt: time.Now()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"position_us", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
