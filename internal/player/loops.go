package player

import (
	"context"
	"log/slog"
	"time"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
	"github.com/jscyril/golang_media_player/internal/avsync"
	"github.com/jscyril/golang_media_player/internal/buffer"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

const (
	idlePoll     = 5 * time.Millisecond
	pausedPoll   = 10 * time.Millisecond
	maxWaitSleep = 100 * time.Millisecond

	// audioFillCeiling keeps one more decoded batch from overflowing the ring.
	audioFillCeiling = 0.75

	bufferingEventInterval = 100 * time.Millisecond
)

func (c *Controller) active(ctx context.Context) bool {
	return c.running.Load() && ctx.Err() == nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// decodeLoop pulls video frames and audio batches while their queues are
// below the high-water marks. Each stream is throttled by its own queue.
func (c *Controller) decodeLoop(ctx context.Context, p *pipeline) error {
	failures := 0
	for c.active(ctx) {
		if c.paused.Load() {
			sleepCtx(ctx, pausedPoll)
			continue
		}

		c.seekMu.RLock()
		worked, err := c.decodeStep(p)
		c.seekMu.RUnlock()

		if err != nil {
			failures++
			if !playerrors.IsRetryable(err) || failures > c.maxRetries {
				c.fail(err)
				return err
			}
			c.log().Warn("decode failed, retrying",
				slog.Int("attempt", failures),
				slog.String("error", err.Error()))
			sleepCtx(ctx, c.retryDelay)
			continue
		}
		failures = 0
		if !worked {
			sleepCtx(ctx, idlePoll)
		}
	}
	return nil
}

func (c *Controller) decodeStep(p *pipeline) (bool, error) {
	if p.dec.IsEOF() {
		c.decodeDone.Store(true)
		c.checkEnded(p)
		return false, nil
	}

	worked := false
	floor := c.seekFloor.Load()

	if p.hasVideo && c.frames.Len() < c.videoHigh {
		frame, err := p.dec.DecodeFrame()
		if err != nil {
			return worked, decodeError(p, err)
		}
		if frame != nil {
			worked = true
			c.frames.Push(frame)
		}
	}

	if p.info.HasAudio() && c.samples.Len() < c.audioHigh {
		batch, err := p.dec.DecodeAudio()
		if err != nil {
			return worked, decodeError(p, err)
		}
		if batch != nil {
			worked = true
			if batch.PTS+batch.Duration() > floor {
				c.samples.Push(batch)
			}
		}
	}
	return worked, nil
}

func decodeError(p *pipeline, err error) error {
	if playerrors.KindOf(err) == playerrors.KindInternal {
		return playerrors.NewPlayerError("decode", playerrors.KindDecode, p.source, err)
	}
	return err
}

// checkEnded moves to Ended once the decoder is exhausted and everything it
// produced has been presented or heard.
func (c *Controller) checkEnded(p *pipeline) {
	if c.endHandled.Load() || c.frames.Len() > 0 || c.samples.Len() > 0 {
		return
	}
	if p.audioActive && (!c.drained.Load() || c.out.BufferFill() > 0) {
		return
	}
	from := c.State()
	if from != api.StatePlaying && from != api.StateBuffering {
		return
	}
	if !c.transition(from, api.StateEnded) {
		return
	}
	c.endHandled.Store(true)
	c.log().Info("end of media")
	c.savePosition()
	c.publish(api.EventEndOfMedia, nil)
}

// audioLoop hands decoded batches to the output and derives the audio clock
// from what the device has actually consumed.
func (c *Controller) audioLoop(ctx context.Context, p *pipeline) error {
	if !p.info.HasAudio() {
		return nil
	}
	for c.active(ctx) {
		if c.paused.Load() {
			sleepCtx(ctx, pausedPoll)
			continue
		}
		c.seekMu.RLock()
		wait := c.audioStep(p)
		c.seekMu.RUnlock()
		sleepCtx(ctx, wait)
	}
	return nil
}

func (c *Controller) audioStep(p *pipeline) time.Duration {
	if !p.audioActive {
		return c.discardAudio(p)
	}

	c.refreshAudioClock()
	c.trackBuffering()
	if c.out.BufferFill() >= audioFillCeiling {
		return idlePoll
	}

	batch, ok := c.samples.Pop()
	if !ok {
		if c.decodeDone.Load() && !c.drained.Load() {
			if d, ok := c.out.(interface{ Drain() }); ok {
				d.Drain()
			}
			c.drained.Store(true)
		}
		return idlePoll
	}

	if err := c.out.Play(batch); err != nil {
		c.log().Warn("audio playback failed", slog.String("error", err.Error()))
		return idlePoll
	}
	if end := batch.PTS + batch.Duration(); end > c.queuedAudioTo.Load() {
		c.queuedAudioTo.Store(end)
	}
	c.refreshAudioClock()
	return 0
}

// refreshAudioClock sets the audio clock to the PTS being heard now: the end
// of what was queued minus what is still buffered ahead of the speaker.
func (c *Controller) refreshAudioClock() {
	ahead := int64(float64(c.out.Latency()) * c.sync.Master().Speed())
	heard := c.queuedAudioTo.Load() - ahead
	if floor := c.seekFloor.Load(); heard < floor {
		heard = floor
	}
	c.sync.UpdateAudioClock(heard)
	c.updatePosition(heard)
}

// trackBuffering mirrors the output's buffering state into the player state.
func (c *Controller) trackBuffering() {
	st, ok := c.out.(interface{ State() audio.OutputState })
	if !ok {
		c.transition(api.StateBuffering, api.StatePlaying)
		return
	}
	switch st.State() {
	case audio.OutputPlaying:
		c.transition(api.StateBuffering, api.StatePlaying)
	case audio.OutputBuffering:
		if !c.decodeDone.Load() && c.transition(api.StatePlaying, api.StateBuffering) {
			c.log().Warn("audio underrun, buffering")
		}
		now := time.Now().UnixNano()
		if last := c.lastBufEvent.Load(); now-last >= int64(bufferingEventInterval) && c.lastBufEvent.CompareAndSwap(last, now) {
			c.publish(api.EventBufferingProgress, c.out.BufferFill())
		}
	}
}

// discardAudio consumes batches in real time when there is no device, so
// audio-only sources still advance and end.
func (c *Controller) discardAudio(p *pipeline) time.Duration {
	batch, ok := c.samples.Pop()
	if !ok {
		return idlePoll
	}
	end := batch.PTS + batch.Duration()
	c.sync.UpdateAudioClock(end)
	if !p.hasVideo {
		c.updatePosition(end)
	}
	return time.Duration(float64(batch.Duration())/c.Speed()) * time.Microsecond
}

// renderLoop presents frames when the sync controller says they are due.
func (c *Controller) renderLoop(ctx context.Context, p *pipeline) error {
	if !p.hasVideo {
		return nil
	}
	for c.active(ctx) {
		if c.paused.Load() {
			sleepCtx(ctx, pausedPoll)
			continue
		}
		start := time.Now()
		c.seekMu.RLock()
		wait := c.renderStep(p)
		c.seekMu.RUnlock()
		sleepCtx(ctx, wait-time.Since(start))
	}
	return nil
}

func (c *Controller) renderStep(p *pipeline) time.Duration {
	// The decoder may still emit frames from before a seek. The frame that
	// spans the seek point is kept.
	if floor := c.seekFloor.Load(); floor > 0 {
		c.frames.DropBefore(floor - c.sync.VideoClock().FrameDuration())
		if c.seekSnap.Load() && !c.snapToSeek(floor) {
			return idlePoll
		}
	}
	frame, ok := c.frames.Peek()
	if !ok {
		c.maybeRepeat()
		return idlePoll
	}

	if c.sync.Mode() == api.SyncFreeRunning {
		return c.renderFreeRunning(p, frame)
	}

	action := c.sync.Decide(frame.PTS)
	switch action.Kind {
	case avsync.ActionDrop:
		if c.allowDrop {
			c.frames.PopIf(frame)
			c.framesDropped.Add(1)
			return 0
		}
	case avsync.ActionWait:
		return min(action.WaitDuration(), maxWaitSleep)
	}

	c.frames.PopIf(frame)
	c.present(p, frame)
	adjust := time.Duration(c.sync.Adjuster().Adjust(action.Offset)) * time.Microsecond
	return c.frameInterval + adjust
}

// renderFreeRunning paces from the wall clock and the frame timestamps alone.
func (c *Controller) renderFreeRunning(p *pipeline, frame *api.VideoFrame) time.Duration {
	d := c.timing.Decide(frame)
	switch d.Kind {
	case buffer.TimingDrop:
		if c.allowDrop {
			c.frames.PopIf(frame)
			c.framesDropped.Add(1)
			return 0
		}
	case buffer.TimingWait:
		return min(d.Wait, maxWaitSleep)
	}
	c.sync.Decide(frame.PTS)
	c.frames.PopIf(frame)
	c.present(p, frame)
	return c.frameInterval
}

func (c *Controller) present(p *pipeline, frame *api.VideoFrame) {
	if c.renderer != nil {
		err := c.renderer.RenderFrame(frame)
		if err == nil {
			err = c.renderer.Present()
		}
		if err != nil {
			if c.renderErrors.Add(1) == 1 {
				c.log().Warn("render failed", slog.Int64("pts", frame.PTS), slog.String("error", err.Error()))
			} else {
				c.log().Debug("render failed", slog.Int64("pts", frame.PTS), slog.String("error", err.Error()))
			}
		}
	}
	c.framesRendered.Add(1)
	c.sync.UpdateVideoClock(frame.PTS, frame.Duration)
	c.presented.Store(true)
	if !p.audioActive {
		c.updatePosition(frame.PTS)
	}
}

// maybeRepeat re-presents the last frame when the decoder has fallen behind
// while playback and the master clock carry on.
func (c *Controller) maybeRepeat() {
	if !c.presented.Load() || c.decodeDone.Load() || c.State() != api.StatePlaying {
		return
	}
	master, ok := c.masterNow()
	if !ok {
		return
	}
	vc := c.sync.VideoClock()
	dur := vc.FrameDuration()
	if master < vc.LastPTS()+dur || master-c.lastRepeatAt.Load() < dur {
		return
	}
	c.lastRepeatAt.Store(master)
	c.sync.Repeat()
	c.framesRepeated.Add(1)
	if c.renderer != nil {
		if err := c.renderer.Present(); err != nil {
			c.log().Debug("repeat present failed", slog.String("error", err.Error()))
		}
	}
}

// snapToSeek starts playback after a seek at the queued frame closest to the
// target. It reports false while no frame at or past the target is queued
// and the decoder can still add one.
func (c *Controller) snapToSeek(target int64) bool {
	_, last, ok := c.frames.PTSRange()
	if (!ok || last < target) && !c.decodeDone.Load() && c.frames.Len() < c.videoHigh {
		return false
	}
	if f, ok := c.frames.FindByPTS(target); ok {
		c.frames.DropBefore(f.PTS)
	}
	c.seekSnap.Store(false)
	return true
}

func (c *Controller) masterNow() (int64, bool) {
	return c.sync.Position()
}
