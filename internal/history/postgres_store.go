package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jscyril/golang_media_player/api"
)

// Ensure PostgresStore implements PositionStore at compile time
var _ api.PositionStore = (*PostgresStore)(nil)

const createPositionsTable = `
CREATE TABLE IF NOT EXISTS playback_positions (
	source_id   TEXT PRIMARY KEY,
	position_us BIGINT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps positions in PostgreSQL, shared between machines.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects using dsn and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createPositionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create positions table: %w", err)
	}

	logger.Debug("history database connected", slog.String("component", "history"), slog.String("host", cfg.ConnConfig.Host))
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Get(ctx context.Context, sourceID string) (time.Duration, bool, error) {
	var us int64
	err := s.pool.QueryRow(ctx,
		`SELECT position_us FROM playback_positions WHERE source_id = $1`, sourceID).Scan(&us)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get position: %w", err)
	}
	return api.DurationFromPTS(us), true, nil
}

// Set upserts position; positions below MinResumePosition clear the entry.
func (s *PostgresStore) Set(ctx context.Context, sourceID string, position time.Duration) error {
	if position < MinResumePosition {
		if _, err := s.pool.Exec(ctx, `DELETE FROM playback_positions WHERE source_id = $1`, sourceID); err != nil {
			return fmt.Errorf("clear position: %w", err)
		}
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO playback_positions (source_id, position_us, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_id) DO UPDATE
		SET position_us = EXCLUDED.position_us, updated_at = EXCLUDED.updated_at`,
		sourceID, api.PTSFromDuration(position))
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
