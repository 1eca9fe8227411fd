// Package avsync keeps video presentation aligned with a master clock.
package avsync

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jscyril/golang_media_player/api"
)

const (
	// MaxDeviation is the error beyond which a frame is dropped or waited on.
	MaxDeviation int64 = 40_000
	// SyncTarget is the error below which a frame is considered on time.
	SyncTarget int64 = 1_000

	errorEMAAlpha = 0.1
)

// ActionKind is the decision for a candidate frame.
type ActionKind int

const (
	ActionDisplay ActionKind = iota
	ActionDisplayAdjusted
	ActionWait
	ActionDrop
	ActionRepeat
)

func (k ActionKind) String() string {
	switch k {
	case ActionDisplay:
		return "display"
	case ActionDisplayAdjusted:
		return "display_adjusted"
	case ActionWait:
		return "wait"
	case ActionDrop:
		return "drop"
	case ActionRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// FrameAction is returned by Controller.Decide. Offset is the residual error
// for ActionDisplayAdjusted and the wait length for ActionWait, both in µs.
type FrameAction struct {
	Kind   ActionKind
	Offset int64
}

// WaitDuration converts the offset of a Wait action to a duration.
func (a FrameAction) WaitDuration() time.Duration {
	if a.Kind != ActionWait {
		return 0
	}
	return time.Duration(a.Offset) * time.Microsecond
}

// SyncStats summarizes sync quality.
type SyncStats struct {
	SyncError      int64
	AvgSyncError   float64
	MaxSyncError   int64
	AudioDrift     int64
	Corrections    uint64
	DroppedFrames  uint64
	RepeatedFrames uint64
	AudioUnderruns uint64
}

// Controller decides per-frame presentation against the master clock.
type Controller struct {
	master   *MasterClock
	audio    *AudioClock
	video    *VideoClock
	adjuster *SyncAdjuster

	mode         atomic.Int32
	correction   atomic.Bool
	maxDeviation atomic.Int64

	extMu    sync.RWMutex
	external ExternalTimeSource

	statsMu sync.Mutex
	stats   SyncStats

	logger *slog.Logger
}

// NewController creates a sync controller in the given mode.
func NewController(mode api.SyncMode, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		master:   NewMasterClock(),
		audio:    NewAudioClock(DefaultSampleRate),
		video:    NewVideoClock(),
		adjuster: NewSyncAdjuster(DefaultAdjustmentRate),
		logger:   logger.With(slog.String("component", "avsync")),
	}
	c.mode.Store(int32(mode))
	c.correction.Store(true)
	c.maxDeviation.Store(MaxDeviation)
	return c
}

func (c *Controller) Master() *MasterClock { return c.master }

func (c *Controller) AudioClock() *AudioClock { return c.audio }

func (c *Controller) VideoClock() *VideoClock { return c.video }

func (c *Controller) Adjuster() *SyncAdjuster { return c.adjuster }

func (c *Controller) Mode() api.SyncMode { return api.SyncMode(c.mode.Load()) }

func (c *Controller) SetMode(mode api.SyncMode) {
	if old := api.SyncMode(c.mode.Swap(int32(mode))); old != mode {
		c.logger.Info("sync mode changed", slog.String("from", old.String()), slog.String("to", mode.String()))
	}
}

// SetCorrectionEnabled turns drop/wait correction on or off. With correction
// off every frame is displayed.
func (c *Controller) SetCorrectionEnabled(enabled bool) { c.correction.Store(enabled) }

func (c *Controller) CorrectionEnabled() bool { return c.correction.Load() }

// SetMaxDeviation overrides the drop/wait threshold in µs.
func (c *Controller) SetMaxDeviation(us int64) {
	if us > SyncTarget {
		c.maxDeviation.Store(us)
	}
}

// SetExternalSource sets the clock ExternalClock mode follows. Without one,
// or after setting nil, the mode runs on the master wall clock, which pauses
// with the player and re-anchors after every Reset.
func (c *Controller) SetExternalSource(src ExternalTimeSource) {
	c.extMu.Lock()
	c.external = src
	c.extMu.Unlock()
}

// Decide returns the action for a frame with the given PTS.
func (c *Controller) Decide(framePTS int64) FrameAction {
	mode := c.Mode()
	if mode == api.SyncFreeRunning || !c.correction.Load() {
		c.video.Update(framePTS, 0)
		return FrameAction{Kind: ActionDisplay}
	}

	master := c.masterPTS(mode, framePTS)
	syncErr := framePTS - master
	c.recordError(syncErr)

	maxDev := c.maxDeviation.Load()
	switch {
	case syncErr < -maxDev:
		c.video.RecordDrop()
		c.statsMu.Lock()
		c.stats.DroppedFrames++
		c.statsMu.Unlock()
		c.logger.Debug("dropping late frame", slog.Int64("pts", framePTS), slog.Int64("error_us", syncErr))
		return FrameAction{Kind: ActionDrop}
	case syncErr > maxDev:
		return FrameAction{Kind: ActionWait, Offset: syncErr}
	case abs64(syncErr) < SyncTarget:
		c.video.Update(framePTS, 0)
		return FrameAction{Kind: ActionDisplay}
	default:
		c.video.Update(framePTS, 0)
		c.statsMu.Lock()
		c.stats.Corrections++
		c.statsMu.Unlock()
		return FrameAction{Kind: ActionDisplayAdjusted, Offset: syncErr}
	}
}

// Repeat records that the previous frame is presented again.
func (c *Controller) Repeat() FrameAction {
	c.video.RecordRepeat()
	c.statsMu.Lock()
	c.stats.RepeatedFrames++
	c.statsMu.Unlock()
	return FrameAction{Kind: ActionRepeat}
}

func (c *Controller) masterPTS(mode api.SyncMode, framePTS int64) int64 {
	switch mode {
	case api.SyncVideoMaster:
		return c.wallPTS(framePTS)
	case api.SyncExternalClock:
		if src := c.externalSource(); src != nil {
			return src.CurrentTime()
		}
		return c.wallPTS(framePTS)
	default:
		return c.master.PTS()
	}
}

// wallPTS anchors the master wall clock at framePTS on first use after a
// Reset and derives the position from it afterwards.
func (c *Controller) wallPTS(framePTS int64) int64 {
	if !c.master.Started() {
		c.master.Start(framePTS)
		return framePTS
	}
	return c.master.ElapsedPTS()
}

func (c *Controller) externalSource() ExternalTimeSource {
	c.extMu.RLock()
	defer c.extMu.RUnlock()
	return c.external
}

// Position returns the current master position without anchoring anything.
// It reports false while no clock drives the mode yet: FreeRunning, or a
// wall clock not yet started after a Reset.
func (c *Controller) Position() (int64, bool) {
	switch c.Mode() {
	case api.SyncAudioMaster:
		return c.master.PTS(), true
	case api.SyncExternalClock:
		if src := c.externalSource(); src != nil {
			return src.CurrentTime(), true
		}
		fallthrough
	case api.SyncVideoMaster:
		if !c.master.Started() {
			return 0, false
		}
		return c.master.ElapsedPTS(), true
	}
	return 0, false
}

func (c *Controller) recordError(syncErr int64) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.SyncError = syncErr
	c.stats.AvgSyncError = c.stats.AvgSyncError*(1-errorEMAAlpha) + float64(syncErr)*errorEMAAlpha
	if a := abs64(syncErr); a > c.stats.MaxSyncError {
		c.stats.MaxSyncError = a
	}
}

// UpdateAudioClock feeds the PTS of audio just handed to the device. In
// AudioMaster mode it drives the master clock; otherwise it only updates drift stats.
func (c *Controller) UpdateAudioClock(pts int64) {
	c.audio.SetPTS(pts)
	if c.Mode() == api.SyncAudioMaster {
		c.master.SetPTS(pts)
		return
	}
	drift := pts - c.video.LastPTS()
	c.statsMu.Lock()
	c.stats.AudioDrift = drift
	c.statsMu.Unlock()
}

// UpdateVideoClock records a presented frame outside Decide.
func (c *Controller) UpdateVideoClock(pts, duration int64) {
	c.video.Update(pts, duration)
}

// RecordUnderruns sets the audio underrun count reported by the output.
func (c *Controller) RecordUnderruns(n uint64) {
	c.statsMu.Lock()
	c.stats.AudioUnderruns = n
	c.statsMu.Unlock()
}

// Pause freezes the wall-clock derived positions.
func (c *Controller) Pause() {
	c.master.Pause()
	c.audio.Pause()
}

func (c *Controller) Resume() {
	c.master.Resume()
	c.audio.Resume()
}

// SetSpeed forwards to the master clock and returns the applied speed.
func (c *Controller) SetSpeed(speed float64) float64 {
	return c.master.SetSpeed(speed)
}

// Reset rewinds all clocks to pts, e.g. after a seek. Cumulative counters survive.
func (c *Controller) Reset(pts int64) {
	c.master.Reset()
	c.master.SetPTS(pts)
	c.audio.Reset()
	c.audio.SetPTS(pts)
	c.video.Reset()
	c.video.Update(pts, 0)

	c.statsMu.Lock()
	c.stats.SyncError = 0
	c.stats.AvgSyncError = 0
	c.stats.AudioDrift = 0
	c.statsMu.Unlock()
}

// Stats returns a snapshot of the sync statistics.
func (c *Controller) Stats() SyncStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
