package player

import (
	"context"
	"log/slog"
	"time"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
)

// Snapshot is a consistent-enough view of the player for display.
type Snapshot struct {
	Session    string
	State      api.PlaybackState
	Item       *api.PlaylistItem
	Position   time.Duration
	Duration   time.Duration
	Volume     float32
	Muted      bool
	Speed      float64
	Fullscreen bool
	SyncMode   api.SyncMode
	Repeat     api.RepeatMode
	Shuffled   bool
	Index      int
	Playlist   []*api.PlaylistItem
	Err        error
	Stats      api.PlaybackStats
}

// Snapshot gathers the current state, playlist and statistics.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	s := Snapshot{
		Session:    c.session,
		State:      c.state,
		Item:       c.item,
		Volume:     c.volume,
		Muted:      c.muted,
		Speed:      c.speed,
		Fullscreen: c.fullscreen,
		Err:        c.lastErr,
	}
	c.mu.RUnlock()

	if s.Item != nil {
		s.Duration = s.Item.Duration
	}
	s.Position = c.Position()
	s.SyncMode = c.sync.Mode()
	s.Repeat = c.queue.RepeatMode()
	s.Shuffled = c.queue.IsShuffled()
	s.Index = c.queue.Index()
	s.Playlist = c.queue.All()
	s.Stats = c.Stats()
	return s
}

// Stats reports pipeline health. CPU and memory are sampled at most once a
// second.
func (c *Controller) Stats() api.PlaybackStats {
	syncStats := c.sync.Stats()
	st := api.PlaybackStats{
		FramesRendered:  c.framesRendered.Load(),
		FramesDropped:   c.framesDropped.Load(),
		FramesRepeated:  c.framesRepeated.Load(),
		VideoQueueDepth: c.frames.Len(),
		AudioQueueDepth: c.samples.Len(),
		SyncError:       syncStats.SyncError,
		AvgSyncError:    syncStats.AvgSyncError,
		MaxSyncError:    syncStats.MaxSyncError,
	}

	if o, ok := c.out.(interface{ Stats() audio.OutputStats }); ok {
		out := o.Stats()
		st.AudioSamplesPlayed = out.SamplesPlayed
		st.AudioUnderruns = out.Underruns
		c.sync.RecordUnderruns(out.Underruns)
	}
	if c.out != nil {
		st.BufferHealth = c.out.BufferFill()
	} else if n := c.frames.MaxFrames(); n > 0 {
		st.BufferHealth = float32(c.frames.Len()) / float32(n)
	}

	if c.sampler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		usage, err := c.sampler.Sample(ctx)
		cancel()
		if err != nil {
			c.log().Debug("resource sample failed", slog.String("error", err.Error()))
		}
		st.CPUUsage = usage.CPUPercent
		st.MemoryUsage = usage.RSS
	}
	return st
}
