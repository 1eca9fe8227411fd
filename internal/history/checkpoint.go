package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jscyril/golang_media_player/api"
	"github.com/robfig/cron/v3"
)

// PositionFunc reports what is playing and where. ok is false when there is
// nothing worth saving.
type PositionFunc func() (sourceID string, position time.Duration, ok bool)

// Checkpointer saves the current position on a cron schedule so a crash
// loses at most one interval of progress.
type Checkpointer struct {
	store    api.PositionStore
	position PositionFunc
	logger   *slog.Logger
	cron     *cron.Cron
	timeout  time.Duration

	mu      sync.Mutex
	lastID  string
	lastPos time.Duration
	started bool
}

// NewCheckpointer validates spec, a standard cron expression or descriptor
// such as "@every 30s".
func NewCheckpointer(store api.PositionStore, spec string, position PositionFunc, logger *slog.Logger) (*Checkpointer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checkpointer{
		store:    store,
		position: position,
		logger:   logger.With(slog.String("component", "checkpointer")),
		cron:     cron.New(),
		timeout:  5 * time.Second,
	}
	if _, err := c.cron.AddFunc(spec, c.tick); err != nil {
		return nil, fmt.Errorf("invalid checkpoint schedule %q: %w", spec, err)
	}
	return c, nil
}

func (c *Checkpointer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.cron.Start()
}

// Stop halts the schedule and waits for a running checkpoint to finish.
func (c *Checkpointer) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()
	<-c.cron.Stop().Done()
}

func (c *Checkpointer) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.Checkpoint(ctx); err != nil {
		c.logger.Warn("checkpoint failed", slog.String("error", err.Error()))
	}
}

// Checkpoint saves the current position now unless it is unchanged since
// the last save.
func (c *Checkpointer) Checkpoint(ctx context.Context) error {
	id, pos, ok := c.position()
	if !ok || id == "" {
		return nil
	}
	pos = pos.Truncate(time.Second)

	c.mu.Lock()
	if id == c.lastID && pos == c.lastPos {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.store.Set(ctx, id, pos); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastID, c.lastPos = id, pos
	c.mu.Unlock()
	c.logger.Debug("position saved", slog.String("source_id", id), slog.Duration("position", pos))
	return nil
}
