package avsync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestAudioClockPosition(t *testing.T) {
	c := NewAudioClock(48000)
	c.UpdateSamples(48000)
	assert.Equal(t, int64(1_000_000), c.Position())

	c.UpdateSamples(24000)
	assert.Equal(t, int64(1_500_000), c.Position())

	c.Reset()
	assert.Equal(t, int64(0), c.Position())
	assert.Equal(t, int64(0), c.PTS())
}

func TestAudioClockSampleRate(t *testing.T) {
	c := NewAudioClock(0)
	assert.Equal(t, DefaultSampleRate, c.SampleRate())

	c.SetSampleRate(44100)
	c.UpdateSamples(44100)
	assert.Equal(t, int64(1_000_000), c.Position())

	c.SetSampleRate(-1)
	assert.Equal(t, 44100, c.SampleRate())
}

func TestMasterClockSpeedClamp(t *testing.T) {
	c := NewMasterClock()

	assert.Equal(t, 0.1, c.SetSpeed(0.01))
	assert.Equal(t, 4.0, c.SetSpeed(10))
	assert.Equal(t, 1.5, c.SetSpeed(1.5))
	assert.Equal(t, 1.5, c.Speed())
}

func TestMasterClockElapsedWithPauseAndSpeed(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	c := newMasterClock(clock.now)

	c.Start(1_000_000)
	clock.advance(time.Second)
	assert.Equal(t, int64(2_000_000), c.ElapsedPTS())

	c.Pause()
	clock.advance(5 * time.Second)
	assert.Equal(t, time.Second, c.RealTime())

	c.Resume()
	clock.advance(time.Second)
	assert.Equal(t, 2*time.Second, c.RealTime())
	assert.Equal(t, int64(3_000_000), c.ElapsedPTS())

	// Changing speed re-anchors without a jump
	c.SetSpeed(2.0)
	assert.Equal(t, int64(3_000_000), c.ElapsedPTS())
	clock.advance(time.Second)
	assert.Equal(t, int64(5_000_000), c.ElapsedPTS())

	c.Reset()
	assert.False(t, c.Started())
	assert.Equal(t, int64(0), c.PTS())
	assert.Equal(t, 2.0, c.Speed())
}

func TestVideoClock(t *testing.T) {
	c := NewVideoClock()
	assert.Equal(t, int64(DefaultFrameDuration), c.FrameDuration())

	c.Update(100_000, 0)
	assert.Equal(t, int64(100_000), c.LastPTS())
	assert.Equal(t, int64(116_667), c.NextPTS())

	c.SetFrameDuration(40_000)
	c.Update(200_000, 0)
	assert.Equal(t, int64(240_000), c.NextPTS())

	c.Update(300_000, 33_333)
	assert.Equal(t, int64(333_333), c.NextPTS())

	c.RecordDrop()
	c.RecordRepeat()
	c.RecordRepeat()
	c.Reset()
	assert.Equal(t, int64(0), c.LastPTS())
	assert.Equal(t, uint64(1), c.Dropped())
	assert.Equal(t, uint64(2), c.Repeated())
}

func TestSyncAdjuster(t *testing.T) {
	a := NewSyncAdjuster(DefaultAdjustmentRate)
	assert.Equal(t, int64(20), a.Adjust(20_000))
	assert.Equal(t, int64(-5), a.Adjust(-5_000))

	a.SetRate(1)
	assert.Equal(t, MaxAdjustmentRate, a.Rate())
	a.SetRate(0)
	assert.Equal(t, MinAdjustmentRate, a.Rate())
}

func TestSystemTimeSourceAdvances(t *testing.T) {
	s := NewSystemTimeSource()
	first := s.CurrentTime()
	time.Sleep(2 * time.Millisecond)
	assert.Greater(t, s.CurrentTime(), first)
}
