package buffer

import (
	"sync"
	"time"

	"github.com/jscyril/golang_media_player/api"
)

const (
	DefaultTargetFPS     = 60.0
	DefaultDropThreshold = 50_000 // µs
)

// TimingKind is the pacing decision for a frame.
type TimingKind int

const (
	TimingPresent TimingKind = iota
	TimingWait
	TimingDrop
)

func (k TimingKind) String() string {
	switch k {
	case TimingPresent:
		return "present"
	case TimingWait:
		return "wait"
	case TimingDrop:
		return "drop"
	default:
		return "unknown"
	}
}

type TimingDecision struct {
	Kind TimingKind
	Wait time.Duration
}

// FrameTimingController paces presentation from wall-clock time and playback
// speed, independent of any audio clock.
type FrameTimingController struct {
	mu            sync.Mutex
	now           func() time.Time
	targetFPS     float64
	frameDuration int64
	dropThreshold int64
	speed         float64

	started   bool
	lastTime  time.Time
	lastPTS   int64
	presented uint64
	dropped   uint64
}

// NewFrameTimingController creates a controller for the given frame rate.
func NewFrameTimingController(targetFPS float64) *FrameTimingController {
	c := &FrameTimingController{
		now:           time.Now,
		dropThreshold: DefaultDropThreshold,
		speed:         1.0,
	}
	c.SetTargetFPS(targetFPS)
	return c
}

// SetTargetFPS changes the nominal rate; non-positive values use DefaultTargetFPS.
func (c *FrameTimingController) SetTargetFPS(fps float64) {
	if fps <= 0 {
		fps = DefaultTargetFPS
	}
	c.mu.Lock()
	c.targetFPS = fps
	c.frameDuration = int64(1_000_000 / fps)
	c.mu.Unlock()
}

func (c *FrameTimingController) FrameDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.frameDuration) * time.Microsecond
}

func (c *FrameTimingController) SetDropThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.dropThreshold = d.Microseconds()
	c.mu.Unlock()
}

// SetSpeed sets the playback speed, clamped to [0.1, 4.0]. The current
// position is re-anchored so the expected PTS does not jump.
func (c *FrameTimingController) SetSpeed(speed float64) {
	if speed < 0.1 {
		speed = 0.1
	}
	if speed > 4.0 {
		speed = 4.0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		now := c.now()
		c.lastPTS = c.expectedLocked(now)
		c.lastTime = now
	}
	c.speed = speed
}

func (c *FrameTimingController) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Decide returns whether frame should be presented now, waited on or dropped.
// The first frame after creation or Reset always presents and anchors the clock.
func (c *FrameTimingController) Decide(frame *api.VideoFrame) TimingDecision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.started {
		c.started = true
		c.anchorLocked(frame.PTS, now)
		return TimingDecision{Kind: TimingPresent}
	}

	diff := frame.PTS - c.expectedLocked(now)
	switch {
	case diff > c.frameDuration:
		return TimingDecision{
			Kind: TimingWait,
			Wait: time.Duration(diff-c.frameDuration/2) * time.Microsecond,
		}
	case diff < -c.dropThreshold:
		c.dropped++
		return TimingDecision{Kind: TimingDrop}
	default:
		c.anchorLocked(frame.PTS, now)
		return TimingDecision{Kind: TimingPresent}
	}
}

// SyncToClock re-anchors the controller so that pts corresponds to now.
func (c *FrameTimingController) SyncToClock(pts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	c.lastPTS = pts
	c.lastTime = c.now()
}

// Reset forgets the anchor; the next frame presents immediately.
func (c *FrameTimingController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	c.lastPTS = 0
	c.lastTime = time.Time{}
}

// Counters returns how many frames were presented and dropped.
func (c *FrameTimingController) Counters() (presented, dropped uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presented, c.dropped
}

func (c *FrameTimingController) anchorLocked(pts int64, now time.Time) {
	c.lastPTS = pts
	c.lastTime = now
	c.presented++
}

func (c *FrameTimingController) expectedLocked(now time.Time) int64 {
	elapsed := now.Sub(c.lastTime).Microseconds()
	return c.lastPTS + int64(float64(elapsed)*c.speed)
}
