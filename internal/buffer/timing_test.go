package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestTiming(fps float64) (*FrameTimingController, *time.Time) {
	now := time.Unix(5000, 0)
	c := NewFrameTimingController(fps)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestTimingFirstFramePresentsThenWaits(t *testing.T) {
	c, _ := newTestTiming(60)

	assert.Equal(t, TimingPresent, c.Decide(frameAt(0)).Kind)

	d := c.Decide(frameAt(16667))
	assert.Equal(t, TimingWait, d.Kind)
	assert.Equal(t, time.Duration(16667-16666/2)*time.Microsecond, d.Wait)
}

func TestTimingPresentsOnSchedule(t *testing.T) {
	c, now := newTestTiming(60)
	c.Decide(frameAt(0))

	*now = now.Add(16667 * time.Microsecond)
	assert.Equal(t, TimingPresent, c.Decide(frameAt(16667)).Kind)

	// Far behind schedule: dropped
	*now = now.Add(200 * time.Millisecond)
	assert.Equal(t, TimingDrop, c.Decide(frameAt(33334)).Kind)

	presented, dropped := c.Counters()
	assert.Equal(t, uint64(2), presented)
	assert.Equal(t, uint64(1), dropped)
}

func TestTimingSpeedScalesExpectedPTS(t *testing.T) {
	c, now := newTestTiming(30)
	c.SetSpeed(2.0)
	c.Decide(frameAt(0))

	*now = now.Add(50 * time.Millisecond)
	// At 2x, 50ms of wall time covers 100ms of media
	assert.Equal(t, TimingPresent, c.Decide(frameAt(100_000)).Kind)

	c.SetSpeed(100)
	assert.Equal(t, 4.0, c.Speed())
	c.SetSpeed(0)
	assert.Equal(t, 0.1, c.Speed())
}

func TestTimingResetAndSync(t *testing.T) {
	c, _ := newTestTiming(60)
	c.Decide(frameAt(0))
	assert.Equal(t, TimingWait, c.Decide(frameAt(5_000_000)).Kind)

	c.Reset()
	assert.Equal(t, TimingPresent, c.Decide(frameAt(5_000_000)).Kind)

	c.SyncToClock(9_000_000)
	assert.Equal(t, TimingDrop, c.Decide(frameAt(5_000_000)).Kind)
	assert.Equal(t, TimingPresent, c.Decide(frameAt(9_000_000)).Kind)
}

func TestTimingConfig(t *testing.T) {
	c := NewFrameTimingController(0)
	assert.Equal(t, time.Duration(16666)*time.Microsecond, c.FrameDuration())

	c.SetTargetFPS(25)
	assert.Equal(t, 40*time.Millisecond, c.FrameDuration())

	c.SetDropThreshold(0)
	c.SetDropThreshold(time.Second)
	assert.Equal(t, int64(1_000_000), c.dropThreshold)
}
