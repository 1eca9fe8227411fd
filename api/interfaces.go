package api

import (
	"context"
	"time"
)

// Decoder turns a source into PTS-stamped frames and sample batches.
// Implementations are not safe for concurrent use.
type Decoder interface {
	Open(source string) (*MediaInfo, error)
	// DecodeFrame returns nil, nil when no video frame is available.
	DecodeFrame() (*VideoFrame, error)
	// DecodeAudio returns nil, nil when no audio batch is available.
	DecodeAudio() (*AudioSamples, error)
	Seek(ts time.Duration) error
	Flush() error
	IsEOF() bool
	Close() error
}

// Renderer consumes finished frames.
type Renderer interface {
	RenderFrame(frame *VideoFrame) error
	Present() error
	SetAspectRatio(ratio float32) error
	Resize(width, height int) error
}

// AudioOutput is the device sink fed by the audio loop.
type AudioOutput interface {
	Initialize(format AudioFormat) error
	Play(samples *AudioSamples) error
	Pause() error
	Resume() error
	Stop() error
	SetVolume(volume float32) error
	// Latency returns the estimated output latency in microseconds.
	Latency() int64
	BufferFill() float32
	Close() error
}

// Window produces the input event stream the player maps to commands.
type Window interface {
	Events() <-chan WindowEvent
	SetFullscreen(fullscreen bool) error
	Close() error
}

// PositionStore persists resume positions keyed by source ID.
type PositionStore interface {
	Get(ctx context.Context, sourceID string) (time.Duration, bool, error)
	Set(ctx context.Context, sourceID string, position time.Duration) error
	Close() error
}

// Player is the command surface of the player controller.
type Player interface {
	Load(source string) (*MediaInfo, error)
	Play() error
	Pause() error
	Stop() error
	Seek(position time.Duration) error
	SetVolume(volume float32) error
	SetSpeed(speed float64) error
	State() PlaybackState
	Position() time.Duration
}
