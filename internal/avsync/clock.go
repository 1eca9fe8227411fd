package avsync

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 4.0

	DefaultSampleRate    = 48000
	DefaultFrameDuration = 16667
)

// ClampSpeed limits a playback speed multiplier to [MinSpeed, MaxSpeed].
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// wallClock tracks elapsed wall time minus pauses. Callers hold the owning mutex.
type wallClock struct {
	now         func() time.Time
	started     bool
	startTime   time.Time
	paused      bool
	pauseStart  time.Time
	pausedTotal time.Duration
}

func (w *wallClock) start() {
	w.started = true
	w.startTime = w.now()
	w.paused = false
	w.pausedTotal = 0
}

func (w *wallClock) pause() {
	if !w.started || w.paused {
		return
	}
	w.paused = true
	w.pauseStart = w.now()
}

func (w *wallClock) resume() {
	if !w.paused {
		return
	}
	w.paused = false
	w.pausedTotal += w.now().Sub(w.pauseStart)
}

func (w *wallClock) reset() {
	w.started = false
	w.paused = false
	w.pausedTotal = 0
}

func (w *wallClock) elapsed() time.Duration {
	if !w.started {
		return 0
	}
	end := w.now()
	if w.paused {
		end = w.pauseStart
	}
	return end.Sub(w.startTime) - w.pausedTotal
}

// MasterClock is the reference position video is corrected against.
// The PTS is atomic; the wall-clock anchor is behind a mutex.
type MasterClock struct {
	pts atomic.Int64

	mu        sync.Mutex
	wall      wallClock
	anchorPTS int64
	speed     float64
}

// NewMasterClock creates a stopped master clock at PTS 0 running at 1x.
func NewMasterClock() *MasterClock {
	return newMasterClock(time.Now)
}

func newMasterClock(now func() time.Time) *MasterClock {
	return &MasterClock{wall: wallClock{now: now}, speed: 1.0}
}

// SetPTS stores the current master position.
func (c *MasterClock) SetPTS(pts int64) { c.pts.Store(pts) }

// PTS returns the last stored master position.
func (c *MasterClock) PTS() int64 { return c.pts.Load() }

// Start anchors the wall clock at pts.
func (c *MasterClock) Start(pts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorPTS = pts
	c.wall.start()
	c.pts.Store(pts)
}

// Started reports whether the wall clock has been anchored.
func (c *MasterClock) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall.started
}

func (c *MasterClock) Pause() {
	c.mu.Lock()
	c.wall.pause()
	c.mu.Unlock()
}

func (c *MasterClock) Resume() {
	c.mu.Lock()
	c.wall.resume()
	c.mu.Unlock()
}

// Reset un-anchors the clock and zeroes the position. Speed is kept.
func (c *MasterClock) Reset() {
	c.mu.Lock()
	c.wall.reset()
	c.anchorPTS = 0
	c.mu.Unlock()
	c.pts.Store(0)
}

// SetSpeed sets the speed multiplier, clamped to [MinSpeed, MaxSpeed], and
// returns the applied value. A running clock is re-anchored so the derived
// position does not jump.
func (c *MasterClock) SetSpeed(speed float64) float64 {
	speed = ClampSpeed(speed)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wall.started {
		c.anchorPTS = c.elapsedPTSLocked()
		paused := c.wall.paused
		c.wall.start()
		if paused {
			c.wall.pause()
		}
	}
	c.speed = speed
	return speed
}

func (c *MasterClock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// RealTime returns wall time elapsed since Start, excluding pauses.
func (c *MasterClock) RealTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall.elapsed()
}

// ElapsedPTS derives a position from the wall clock: anchor + real time * speed.
func (c *MasterClock) ElapsedPTS() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedPTSLocked()
}

func (c *MasterClock) elapsedPTSLocked() int64 {
	return c.anchorPTS + int64(float64(c.wall.elapsed().Microseconds())*c.speed)
}

// AudioClock tracks the position of audio actually handed to the device.
// The audio thread is its only writer.
type AudioClock struct {
	sampleRate    atomic.Int64
	samplesPlayed atomic.Int64
	pts           atomic.Int64

	mu   sync.Mutex
	wall wallClock
}

// NewAudioClock creates an audio clock for the given sample rate.
func NewAudioClock(sampleRate int) *AudioClock {
	c := &AudioClock{wall: wallClock{now: time.Now}}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	c.sampleRate.Store(int64(sampleRate))
	return c
}

func (c *AudioClock) SetSampleRate(rate int) {
	if rate > 0 {
		c.sampleRate.Store(int64(rate))
	}
}

func (c *AudioClock) SampleRate() int { return int(c.sampleRate.Load()) }

// UpdateSamples records n more sample frames as played.
func (c *AudioClock) UpdateSamples(n int) { c.samplesPlayed.Add(int64(n)) }

func (c *AudioClock) SamplesPlayed() int64 { return c.samplesPlayed.Load() }

// Position returns the played duration in microseconds derived from the sample count.
func (c *AudioClock) Position() int64 {
	return c.samplesPlayed.Load() * 1_000_000 / c.sampleRate.Load()
}

func (c *AudioClock) SetPTS(pts int64) { c.pts.Store(pts) }

func (c *AudioClock) PTS() int64 { return c.pts.Load() }

func (c *AudioClock) Start() {
	c.mu.Lock()
	c.wall.start()
	c.mu.Unlock()
}

func (c *AudioClock) Pause() {
	c.mu.Lock()
	c.wall.pause()
	c.mu.Unlock()
}

func (c *AudioClock) Resume() {
	c.mu.Lock()
	c.wall.resume()
	c.mu.Unlock()
}

// RealTime returns wall time since Start excluding pauses.
func (c *AudioClock) RealTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wall.elapsed()
}

func (c *AudioClock) Reset() {
	c.mu.Lock()
	c.wall.reset()
	c.mu.Unlock()
	c.samplesPlayed.Store(0)
	c.pts.Store(0)
}

// VideoClock tracks the last displayed frame. The render thread is its only writer.
type VideoClock struct {
	lastPTS       atomic.Int64
	nextPTS       atomic.Int64
	frameDuration atomic.Int64
	dropped       atomic.Uint64
	repeated      atomic.Uint64
}

func NewVideoClock() *VideoClock {
	c := &VideoClock{}
	c.frameDuration.Store(DefaultFrameDuration)
	return c
}

// Update records pts as displayed. A non-positive duration uses the default frame duration.
func (c *VideoClock) Update(pts, duration int64) {
	if duration <= 0 {
		duration = c.frameDuration.Load()
	}
	c.lastPTS.Store(pts)
	c.nextPTS.Store(pts + duration)
}

func (c *VideoClock) LastPTS() int64 { return c.lastPTS.Load() }

func (c *VideoClock) NextPTS() int64 { return c.nextPTS.Load() }

func (c *VideoClock) SetFrameDuration(d int64) {
	if d > 0 {
		c.frameDuration.Store(d)
	}
}

func (c *VideoClock) FrameDuration() int64 { return c.frameDuration.Load() }

func (c *VideoClock) RecordDrop() { c.dropped.Add(1) }

func (c *VideoClock) RecordRepeat() { c.repeated.Add(1) }

func (c *VideoClock) Dropped() uint64 { return c.dropped.Load() }

func (c *VideoClock) Repeated() uint64 { return c.repeated.Load() }

// Reset clears positions; counters are cumulative and survive.
func (c *VideoClock) Reset() {
	c.lastPTS.Store(0)
	c.nextPTS.Store(0)
}

// ExternalTimeSource supplies the master position in ExternalClock mode.
type ExternalTimeSource interface {
	// CurrentTime returns the source position in microseconds.
	CurrentTime() int64
}

// SystemTimeSource reports microseconds elapsed since it was created.
type SystemTimeSource struct {
	start time.Time
}

func NewSystemTimeSource() *SystemTimeSource {
	return &SystemTimeSource{start: time.Now()}
}

func (s *SystemTimeSource) CurrentTime() int64 {
	return time.Since(s.start).Microseconds()
}
