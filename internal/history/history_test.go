package history

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behavior every PositionStore shares.
func exerciseStore(t *testing.T, store api.PositionStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "media-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "media-a", 42*time.Second))
	pos, ok, err := store.Get(ctx, "media-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42*time.Second, pos)

	require.NoError(t, store.Set(ctx, "media-a", 90*time.Second), "overwrite")
	pos, _, err = store.Get(ctx, "media-a")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, pos)

	require.NoError(t, store.Set(ctx, "media-a", time.Second), "near the start clears")
	_, ok, err = store.Get(ctx, "media-a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "never-stored", 0))
}

func TestJSONStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	store, err := NewJSONStore(path)
	require.NoError(t, err)
	exerciseStore(t, store)

	require.NoError(t, store.Set(context.Background(), "media-b", time.Minute))
	require.NoError(t, store.Close())

	reopened, err := NewJSONStore(path)
	require.NoError(t, err)
	pos, ok, err := reopened.Get(context.Background(), "media-b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, pos)
}

func TestJSONStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewJSONStore(path)
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	exerciseStore(t, store)

	require.NoError(t, store.Set(context.Background(), "media-b", 2*time.Minute))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	pos, ok, err := reopened.Get(context.Background(), "media-b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, pos)
}

func TestSQLiteStoreInMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestPostgresStoreRejectsBadDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "postgres://localhost/db?pool_max_conns=lots", nil)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(ctx, config.HistoryConfig{Driver: "json", Path: filepath.Join(dir, "h.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, store)

	store, err = Open(ctx, config.HistoryConfig{Driver: "sqlite", Path: filepath.Join(dir, "h.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	store, err = Open(ctx, config.HistoryConfig{Driver: "none"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "x", time.Hour))
	_, ok, _ := store.Get(ctx, "x")
	assert.False(t, ok)

	_, err = Open(ctx, config.HistoryConfig{Driver: "redis"}, nil)
	assert.Error(t, err)
}

type recordingStore struct {
	NopStore
	mu   sync.Mutex
	sets []time.Duration
}

func (s *recordingStore) Set(_ context.Context, _ string, pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, pos)
	return nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

func TestCheckpointerSkipsUnchangedPositions(t *testing.T) {
	store := &recordingStore{}
	pos := 10 * time.Second
	playing := true
	c, err := NewCheckpointer(store, "@every 1h", func() (string, time.Duration, bool) {
		return "media-a", pos, playing
	}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Checkpoint(ctx))
	require.NoError(t, c.Checkpoint(ctx))
	assert.Equal(t, 1, store.count())

	pos = 10*time.Second + 300*time.Millisecond
	require.NoError(t, c.Checkpoint(ctx))
	assert.Equal(t, 1, store.count(), "sub-second movement is not saved")

	pos = 20 * time.Second
	require.NoError(t, c.Checkpoint(ctx))
	assert.Equal(t, 2, store.count())

	playing = false
	pos = 30 * time.Second
	require.NoError(t, c.Checkpoint(ctx))
	assert.Equal(t, 2, store.count())
}

func TestCheckpointerRunsOnSchedule(t *testing.T) {
	store := &recordingStore{}
	c, err := NewCheckpointer(store, "@every 1s", func() (string, time.Duration, bool) {
		return "media-a", time.Minute, true
	}, nil)
	require.NoError(t, err)

	c.Start()
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool { return store.count() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestCheckpointerRejectsBadSchedule(t *testing.T) {
	_, err := NewCheckpointer(NopStore{}, "every now and then", func() (string, time.Duration, bool) {
		return "", 0, false
	}, nil)
	assert.Error(t, err)
}
