package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by where it came from.
type Kind int

const (
	KindInternal Kind = iota
	KindDecode
	KindAudioDevice
	KindRenderer
	KindWindow
	KindInvalidInput
	KindResourceExhaustion
	KindUnsupportedFormat
	KindNotFound
	KindConfig
	KindSync
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindAudioDevice:
		return "audio device"
	case KindRenderer:
		return "renderer"
	case KindWindow:
		return "window"
	case KindInvalidInput:
		return "invalid input"
	case KindResourceExhaustion:
		return "resource exhaustion"
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindNotFound:
		return "not found"
	case KindConfig:
		return "config"
	case KindSync:
		return "sync"
	default:
		return "internal"
	}
}

// Sentinel errors for common conditions
var (
	ErrNoMediaLoaded     = errors.New("no media loaded")
	ErrSourceNotFound    = errors.New("source not found")
	ErrInvalidFormat     = errors.New("unsupported media format")
	ErrPlaybackFailed    = errors.New("playback failed")
	ErrEmptyQueue        = errors.New("playlist is empty")
	ErrInvalidVolume     = errors.New("volume must be between 0.0 and 1.0")
	ErrInvalidSpeed      = errors.New("speed must be greater than 0 and at most 4.0")
	ErrInvalidChannel    = errors.New("channel index out of range")
	ErrChannelMismatch   = errors.New("channel count does not match output format")
	ErrNotInitialized    = errors.New("audio output not initialized")
	ErrDecoderNotOpen    = errors.New("decoder not open")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// PlayerError wraps errors with additional context
type PlayerError struct {
	Op     string // Operation that failed
	Kind   Kind
	Source string // Media source if applicable
	Err    error  // Underlying error
}

func (e *PlayerError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s failed for %s (%s): %v", e.Op, e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewPlayerError creates a new PlayerError
func NewPlayerError(op string, kind Kind, source string, err error) *PlayerError {
	return &PlayerError{Op: op, Kind: kind, Source: source, Err: err}
}

// KindOf returns the Kind of the first PlayerError in err's chain.
// Well-known sentinels are classified even when not wrapped.
func KindOf(err error) Kind {
	var pe *PlayerError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidVolume), errors.Is(err, ErrInvalidSpeed),
		errors.Is(err, ErrInvalidChannel), errors.Is(err, ErrNoMediaLoaded):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrSourceNotFound):
		return KindNotFound
	case errors.Is(err, ErrDeviceUnavailable), errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrChannelMismatch):
		return KindAudioDevice
	}
	return KindInternal
}

// IsRetryable reports whether an operation failing with err may succeed if retried.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindDecode, KindAudioDevice, KindRenderer:
		return true
	}
	return false
}

// ScanError represents an error during directory scanning
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan error at %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
