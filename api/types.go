package api

import "time"

// PlaybackState is the lifecycle state of the player.
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateStopped
	StatePlaying
	StatePaused
	StateBuffering
	StateSeeking
	StateEnded
	StateError
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateSeeking:
		return "seeking"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsActive reports whether media is being played or is about to be.
func (s PlaybackState) IsActive() bool {
	return s == StatePlaying || s == StateBuffering || s == StateSeeking
}

// SyncMode selects which clock the video is corrected against.
type SyncMode int

const (
	SyncAudioMaster SyncMode = iota
	SyncVideoMaster
	SyncExternalClock
	SyncFreeRunning
)

func (m SyncMode) String() string {
	switch m {
	case SyncAudioMaster:
		return "audio-master"
	case SyncVideoMaster:
		return "video-master"
	case SyncExternalClock:
		return "external-clock"
	case SyncFreeRunning:
		return "free-running"
	default:
		return "unknown"
	}
}

// ParseSyncMode converts a config string into a SyncMode.
func ParseSyncMode(s string) (SyncMode, bool) {
	for _, m := range []SyncMode{SyncAudioMaster, SyncVideoMaster, SyncExternalClock, SyncFreeRunning} {
		if m.String() == s {
			return m, true
		}
	}
	return SyncAudioMaster, false
}

// RepeatMode represents playlist repeat behavior
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "none"
	}
}

// PlaylistItem is one playable source in the playlist.
type PlaylistItem struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Title    string         `json:"title"`
	Duration time.Duration  `json:"duration"`
	Metadata *MediaMetadata `json:"metadata,omitempty"`
}

// DisplayName returns the title or falls back to the source.
func (p *PlaylistItem) DisplayName() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Source
}

// PlaybackStats is a point-in-time view of pipeline health.
type PlaybackStats struct {
	FramesRendered     uint64
	FramesDropped      uint64
	FramesRepeated     uint64
	AudioSamplesPlayed uint64
	AudioUnderruns     uint64
	BufferHealth       float32
	VideoQueueDepth    int
	AudioQueueDepth    int
	SyncError          int64
	AvgSyncError       float64
	MaxSyncError       int64
	CPUUsage           float64
	MemoryUsage        uint64
}
