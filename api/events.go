package api

import "time"

// EventType identifies a PlayerEvent.
type EventType int

const (
	EventMediaLoaded EventType = iota
	EventStateChanged
	EventPlaybackStarted
	EventPlaybackPaused
	EventPlaybackStopped
	EventPositionChanged
	EventBufferingProgress
	EventVolumeChanged
	EventSpeedChanged
	EventError
	EventEndOfMedia
)

// AllEventTypes lists every event type a subscriber can receive.
var AllEventTypes = []EventType{
	EventMediaLoaded,
	EventStateChanged,
	EventPlaybackStarted,
	EventPlaybackPaused,
	EventPlaybackStopped,
	EventPositionChanged,
	EventBufferingProgress,
	EventVolumeChanged,
	EventSpeedChanged,
	EventError,
	EventEndOfMedia,
}

func (t EventType) String() string {
	switch t {
	case EventMediaLoaded:
		return "media_loaded"
	case EventStateChanged:
		return "state_changed"
	case EventPlaybackStarted:
		return "playback_started"
	case EventPlaybackPaused:
		return "playback_paused"
	case EventPlaybackStopped:
		return "playback_stopped"
	case EventPositionChanged:
		return "position_changed"
	case EventBufferingProgress:
		return "buffering_progress"
	case EventVolumeChanged:
		return "volume_changed"
	case EventSpeedChanged:
		return "speed_changed"
	case EventError:
		return "error"
	case EventEndOfMedia:
		return "end_of_media"
	default:
		return "unknown"
	}
}

// PlayerEvent is published by the player controller.
//
// Payload depends on Type: *MediaInfo for MediaLoaded, PlaybackState for
// StateChanged, time.Duration for PositionChanged, float32 for
// BufferingProgress and VolumeChanged, float64 for SpeedChanged, error for
// Error. The other types carry no payload.
type PlayerEvent struct {
	Type      EventType
	Session   string
	Payload   any
	Timestamp time.Time
}

// Key is a keyboard key reported by a Window.
type Key int

const (
	KeyUnknown Key = iota
	KeySpace
	KeyEnter
	KeyEscape
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyPageUp
	KeyPageDown
	KeyHome
	KeyMinus
	KeyPlus
	KeyF
	KeyF11
	KeyM
	KeyN
	KeyP
	KeyQ
	KeyS
	KeyR
	KeyZ
)

// Modifiers held while a key was pressed.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
}

// WindowEventType identifies a WindowEvent.
type WindowEventType int

const (
	WindowKeyPressed WindowEventType = iota
	WindowMouseWheel
	WindowFilesDropped
	WindowResized
	WindowCloseRequested
)

// WindowEvent is an input or control event emitted by a Window.
type WindowEvent struct {
	Type   WindowEventType
	Key    Key
	Mods   Modifiers
	Delta  float32
	Paths  []string
	Width  int
	Height int
}
