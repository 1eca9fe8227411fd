// Package player runs the decode, audio and render loops for one source at a
// time and exposes the playback commands.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
	"github.com/jscyril/golang_media_player/internal/avsync"
	"github.com/jscyril/golang_media_player/internal/buffer"
	"github.com/jscyril/golang_media_player/internal/config"
	"github.com/jscyril/golang_media_player/internal/decoder"
	"github.com/jscyril/golang_media_player/internal/history"
	"github.com/jscyril/golang_media_player/internal/library"
	"github.com/jscyril/golang_media_player/internal/observability"
	"github.com/jscyril/golang_media_player/internal/playlist"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
	"github.com/jscyril/golang_media_player/pkg/events"
)

// Ensure Controller implements Player interface at compile time
var _ api.Player = (*Controller)(nil)

const (
	// MinSpeed and MaxSpeed bound the speed reachable from the keyboard.
	MinSpeed = 0.25
	MaxSpeed = 4.0

	positionEventInterval = 250 * time.Millisecond
)

// OpenFunc opens a decoder for a source.
type OpenFunc func(source string) (api.Decoder, *api.MediaInfo, error)

// Options wires a Controller to its collaborators. Only Config is required
// in practice; nil collaborators disable the matching feature.
type Options struct {
	Config *config.Config
	// Open defaults to decoder.Open configured from Config.
	Open     OpenFunc
	Renderer api.Renderer
	// Audio nil runs every source without sound under the video clock.
	Audio   api.AudioOutput
	Store   api.PositionStore
	Sampler *observability.ResourceSampler
	Logger  *slog.Logger
	// ExternalClock drives the external-clock sync mode. Nil runs that mode
	// on the player's own wall clock.
	ExternalClock avsync.ExternalTimeSource
}

// pipeline is what the loops work on for the loaded source. It is replaced
// only while the loops are stopped.
type pipeline struct {
	dec         api.Decoder
	info        *api.MediaInfo
	source      string
	hasVideo    bool
	audioActive bool
}

type loopGroup struct {
	g      *errgroup.Group
	cancel context.CancelFunc
}

// Controller is the player. Commands are serialized by cmdMu; the loops
// coordinate with commands through the queues, atomics and seekMu.
type Controller struct {
	cfg      *config.Config
	open     OpenFunc
	renderer api.Renderer
	out      api.AudioOutput
	store    api.PositionStore
	sampler  *observability.ResourceSampler
	baseLog  *slog.Logger

	sync    *avsync.Controller
	timing  *buffer.FrameTimingController
	frames  *buffer.FrameQueue
	samples *buffer.SampleQueue
	bus     *events.EventBus
	queue   *playlist.Queue
	scanner *library.Scanner
	ckpt    *history.Checkpointer

	syncMode      api.SyncMode
	videoHigh     int
	audioHigh     int
	maxRetries    int
	retryDelay    time.Duration
	frameInterval time.Duration
	allowDrop     bool

	cmdMu sync.Mutex
	loops *loopGroup
	pipe  *pipeline

	// seekMu is held shared by each loop iteration and exclusively by Seek,
	// so a seek never interleaves with a half-finished decode or present.
	seekMu sync.RWMutex

	mu         sync.RWMutex
	state      api.PlaybackState
	item       *api.PlaylistItem
	session    string
	logger     *slog.Logger
	volume     float32
	muted      bool
	speed      float64
	fullscreen bool
	window     api.Window
	lastErr    error

	running atomic.Bool
	paused  atomic.Bool

	positionUS    atomic.Int64
	seekFloor     atomic.Int64
	seekSnap      atomic.Bool
	queuedAudioTo atomic.Int64
	lastPosEvent  atomic.Int64
	lastBufEvent  atomic.Int64
	decodeDone    atomic.Bool
	drained       atomic.Bool
	endHandled    atomic.Bool
	presented     atomic.Bool
	lastRepeatAt  atomic.Int64

	framesRendered atomic.Uint64
	framesDropped  atomic.Uint64
	framesRepeated atomic.Uint64
	renderErrors   atomic.Uint64
}

// New creates a controller in the Idle state.
func New(opts Options) (*Controller, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = observability.WithComponent(logger, "player")

	mode, ok := api.ParseSyncMode(cfg.Sync.Mode)
	if !ok {
		return nil, playerrors.NewPlayerError("new_player", playerrors.KindConfig, "",
			fmt.Errorf("unknown sync mode %q", cfg.Sync.Mode))
	}

	c := &Controller{
		cfg:           cfg,
		open:          opts.Open,
		renderer:      opts.Renderer,
		out:           opts.Audio,
		store:         opts.Store,
		sampler:       opts.Sampler,
		baseLog:       logger,
		logger:        logger,
		sync:          avsync.NewController(mode, logger),
		timing:        buffer.NewFrameTimingController(cfg.Video.TargetFPS),
		frames:        buffer.NewFrameQueue(cfg.Video.MaxFrames, int(cfg.Video.MaxBytes.Bytes()), logger),
		samples:       buffer.NewSampleQueue(cfg.Audio.QueueSize),
		bus:           events.NewEventBus(),
		queue:         playlist.NewQueue(),
		scanner:       library.NewScanner(0),
		syncMode:      mode,
		videoHigh:     cfg.Video.HighWater,
		audioHigh:     cfg.Audio.HighWater,
		maxRetries:    cfg.Decoder.MaxRetries,
		retryDelay:    cfg.Player.DecodeRetryDelay,
		frameInterval: cfg.Player.FrameInterval,
		allowDrop:     cfg.Player.AllowFrameDrop,
		state:         api.StateIdle,
		volume:        clampUnit(float32(cfg.Player.DefaultVolume)),
		speed:         1.0,
		fullscreen:    cfg.UI.Fullscreen,
	}
	if c.open == nil {
		c.open = c.defaultOpen
	}
	if opts.ExternalClock != nil {
		c.sync.SetExternalSource(opts.ExternalClock)
	}
	if c.videoHigh <= 0 || c.videoHigh > cfg.Video.MaxFrames {
		c.videoHigh = cfg.Video.MaxFrames
	}
	if c.audioHigh <= 0 || c.audioHigh > c.samples.Cap() {
		c.audioHigh = c.samples.Cap()
	}
	if c.frameInterval <= 0 {
		c.frameInterval = 16 * time.Millisecond
	}
	c.sync.SetCorrectionEnabled(cfg.Sync.Correction)
	c.sync.SetMaxDeviation(cfg.Player.AVSyncThreshold.Microseconds())
	c.sync.Adjuster().SetRate(cfg.Sync.AdjustmentRate)
	c.timing.SetDropThreshold(cfg.Video.DropThreshold)

	if c.out != nil {
		if err := c.out.SetVolume(c.volume); err != nil {
			observability.WithError(logger, err).Warn("set initial volume failed")
		}
	}

	if c.store != nil && cfg.Player.RememberPosition && cfg.History.Checkpoint != "" {
		ckpt, err := history.NewCheckpointer(c.store, cfg.History.Checkpoint, c.checkpointPosition, logger)
		if err != nil {
			return nil, playerrors.NewPlayerError("new_player", playerrors.KindConfig, "", err)
		}
		c.ckpt = ckpt
	}
	return c, nil
}

func (c *Controller) defaultOpen(source string) (api.Decoder, *api.MediaInfo, error) {
	return decoder.Open(source, decoder.Options{
		SampleRate:  c.cfg.Audio.SampleRate,
		Channels:    c.cfg.Audio.Channels,
		BatchFrames: c.cfg.Decoder.BatchFrames,
		HWAccel:     c.cfg.Decoder.HWAccel,
		Logger:      c.baseLog,
	})
}

// Events subscribes to player events of the given types, or all of them
// when none are given.
func (c *Controller) Events(types ...api.EventType) <-chan api.PlayerEvent {
	if len(types) == 0 {
		return c.bus.SubscribeAll()
	}
	return c.bus.Subscribe(types...)
}

// Unsubscribe releases a channel returned by Events.
func (c *Controller) Unsubscribe(ch <-chan api.PlayerEvent) { c.bus.Unsubscribe(ch) }

// Playlist exposes the playlist queue.
func (c *Controller) Playlist() *playlist.Queue { return c.queue }

// AttachWindow connects the window whose events Run consumes and whose
// fullscreen mode the controller drives.
func (c *Controller) AttachWindow(w api.Window) {
	c.mu.Lock()
	c.window = w
	fs := c.fullscreen
	c.mu.Unlock()
	if w != nil && fs {
		if err := w.SetFullscreen(true); err != nil {
			c.log().Warn("enter fullscreen failed", slog.String("error", err.Error()))
		}
	}
}

// Load opens source as a single item, replacing whatever was loaded.
func (c *Controller) Load(source string) (*api.MediaInfo, error) {
	return c.LoadItem(&api.PlaylistItem{ID: library.SourceID(source), Source: source})
}

// LoadItem opens item, resumes its saved position and auto-plays if configured.
func (c *Controller) LoadItem(item *api.PlaylistItem) (*api.MediaInfo, error) {
	if item == nil || item.Source == "" {
		return nil, playerrors.NewPlayerError("load", playerrors.KindInvalidInput, "", playerrors.ErrSourceNotFound)
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	info, err := c.loadLocked(item)
	if err != nil {
		return nil, err
	}
	if c.cfg.Player.AutoPlay {
		if err := c.playLocked(); err != nil {
			return info, err
		}
	}
	return info, nil
}

func (c *Controller) loadLocked(item *api.PlaylistItem) (*api.MediaInfo, error) {
	c.unloadLocked()

	if item.ID == "" {
		item.ID = library.SourceID(item.Source)
	}
	dec, info, err := c.open(item.Source)
	if err != nil {
		c.log().Error("open failed", slog.String("source", item.Source), slog.String("error", err.Error()))
		c.publish(api.EventError, err)
		return nil, err
	}

	session := uuid.NewString()
	logger := observability.WithSession(c.baseLog, session).With(slog.String("source", item.Source))

	p := &pipeline{
		dec:      dec,
		info:     info,
		source:   item.Source,
		hasVideo: info.HasVideo(),
	}
	mode := c.syncMode
	if info.HasAudio() && c.out != nil {
		format := api.AudioFormat{SampleRate: c.cfg.Audio.SampleRate, Channels: c.cfg.Audio.Channels}
		if err := c.out.Initialize(format); err != nil {
			observability.WithError(logger, err).Warn("audio unavailable, playing without sound")
			c.publish(api.EventError, err)
		} else {
			p.audioActive = true
		}
	}
	if !p.audioActive && mode == api.SyncAudioMaster {
		mode = api.SyncVideoMaster
	}
	c.sync.SetMode(mode)

	if p.hasVideo {
		vs := info.VideoStreams[0]
		if vs.FrameRate > 0 {
			c.timing.SetTargetFPS(vs.FrameRate)
			c.sync.VideoClock().SetFrameDuration(int64(1_000_000 / vs.FrameRate))
		} else {
			c.timing.SetTargetFPS(c.cfg.Video.TargetFPS)
		}
	}

	if item.Title == "" {
		item.Title = info.Metadata.Title
	}
	if item.Title == "" {
		item.Title = filepath.Base(item.Source)
	}
	if item.Duration == 0 {
		item.Duration = info.Duration
	}

	c.pipe = p
	c.resetPipeline(0)

	var start time.Duration
	if c.store != nil && c.cfg.Player.RememberPosition {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		pos, ok, err := c.store.Get(ctx, item.ID)
		cancel()
		switch {
		case err != nil:
			logger.Warn("read resume position failed", slog.String("error", err.Error()))
		case ok && pos > 0 && (info.Duration <= 0 || pos < info.Duration):
			if err := dec.Seek(pos); err != nil {
				logger.Warn("resume seek failed", slog.String("error", err.Error()))
			} else {
				start = pos
				c.resetPipeline(start)
				logger.Info("resuming", slog.Duration("position", pos))
			}
		}
	}

	c.mu.Lock()
	c.item = item
	c.session = session
	c.logger = logger
	c.lastErr = nil
	c.mu.Unlock()

	logger.Info("media loaded",
		slog.Duration("duration", info.Duration),
		slog.Bool("video", p.hasVideo),
		slog.Bool("audio", p.audioActive),
		slog.String("sync_mode", mode.String()))
	c.publish(api.EventMediaLoaded, info)
	c.setState(api.StateStopped)
	if start > 0 {
		c.publish(api.EventPositionChanged, start)
	}
	return info, nil
}

// unloadLocked stops playback, saves the position and closes the decoder.
func (c *Controller) unloadLocked() {
	if c.pipe == nil {
		return
	}
	c.savePosition()
	c.stopLoopsLocked()
	if c.ckpt != nil {
		c.ckpt.Stop()
	}
	if c.out != nil && c.pipe.audioActive {
		c.stopAudio()
	}
	if err := c.pipe.dec.Close(); err != nil {
		c.log().Warn("close decoder failed", slog.String("error", err.Error()))
	}
	c.frames.Clear()
	c.samples.Clear()
	c.pipe = nil
	c.paused.Store(false)
	c.positionUS.Store(0)
	c.mu.Lock()
	c.item = nil
	c.mu.Unlock()
	c.setState(api.StateIdle)
}

// resetPipeline clears buffered media and rewinds every clock to pos.
func (c *Controller) resetPipeline(pos time.Duration) {
	pts := api.PTSFromDuration(pos)
	c.frames.Clear()
	c.samples.Clear()
	c.sync.Reset(pts)
	c.timing.Reset()
	c.seekFloor.Store(pts)
	c.seekSnap.Store(pts > 0)
	c.queuedAudioTo.Store(pts)
	c.positionUS.Store(pts)
	c.lastRepeatAt.Store(pts)
	c.decodeDone.Store(false)
	c.drained.Store(false)
	c.endHandled.Store(false)
	c.presented.Store(false)
}

// Play starts or resumes playback. From Ended it restarts at the beginning.
func (c *Controller) Play() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	return c.playLocked()
}

func (c *Controller) playLocked() error {
	if c.pipe == nil {
		return playerrors.ErrNoMediaLoaded
	}

	switch c.State() {
	case api.StatePlaying, api.StateBuffering, api.StateSeeking:
		return nil

	case api.StatePaused:
		c.paused.Store(false)
		c.sync.Resume()
		c.timing.SyncToClock(c.sync.VideoClock().LastPTS())
		if c.out != nil && c.pipe.audioActive {
			if err := c.out.Resume(); err != nil {
				observability.WithError(c.log(), err).Warn("resume audio failed")
			}
		}
		c.setState(c.activeState())
		c.publish(api.EventPlaybackStarted, nil)
		return nil

	case api.StateEnded:
		if err := c.seekLocked(0); err != nil {
			return err
		}
		c.setState(c.activeState())
		c.publish(api.EventPlaybackStarted, nil)
		return nil

	case api.StateError:
		pos := c.Position()
		c.stopLoopsLocked()
		if err := c.pipe.dec.Seek(pos); err != nil {
			return playerrors.NewPlayerError("play", playerrors.KindDecode, c.pipe.source, err)
		}
		c.resetPipeline(pos)
	}

	c.paused.Store(false)
	c.setState(c.activeState())
	c.startLoopsLocked(c.pipe)
	if c.ckpt != nil {
		c.ckpt.Start()
	}
	c.publish(api.EventPlaybackStarted, nil)
	return nil
}

// activeState is the state playback enters when it (re)starts: Buffering
// until the audio device has enough queued, Playing when there is no audio.
func (c *Controller) activeState() api.PlaybackState {
	if c.pipe != nil && c.pipe.audioActive {
		return api.StateBuffering
	}
	return api.StatePlaying
}

// Pause freezes playback in place. Pausing anything but active playback is a no-op.
func (c *Controller) Pause() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.pipe == nil {
		return playerrors.ErrNoMediaLoaded
	}
	if !c.State().IsActive() {
		return nil
	}
	c.paused.Store(true)
	c.sync.Pause()
	if c.out != nil && c.pipe.audioActive {
		if err := c.out.Pause(); err != nil {
			observability.WithError(c.log(), err).Warn("pause audio failed")
		}
	}
	c.setState(api.StatePaused)
	c.publish(api.EventPlaybackPaused, nil)
	return nil
}

// TogglePlay pauses active playback and plays otherwise.
func (c *Controller) TogglePlay() error {
	if c.State().IsActive() {
		return c.Pause()
	}
	return c.Play()
}

// Stop halts the loops, waits for them to exit and rewinds to the start.
// Calling it again, or before anything is loaded, does nothing.
func (c *Controller) Stop() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	if c.pipe == nil {
		return nil
	}
	if s := c.State(); s == api.StateStopped || s == api.StateIdle {
		return nil
	}

	c.savePosition()
	c.stopLoopsLocked()
	if c.ckpt != nil {
		c.ckpt.Stop()
	}
	if c.out != nil && c.pipe.audioActive {
		c.stopAudio()
	}
	if err := c.pipe.dec.Seek(0); err != nil {
		c.log().Warn("rewind failed", slog.String("error", err.Error()))
	}
	if err := c.pipe.dec.Flush(); err != nil {
		c.log().Warn("flush failed", slog.String("error", err.Error()))
	}
	c.paused.Store(false)
	c.resetPipeline(0)
	c.setState(api.StateStopped)
	c.publish(api.EventPlaybackStopped, nil)
	return nil
}

// Seek moves playback to position, clamped to [0, duration]. Buffered media
// is discarded and the clocks rewound before any loop runs again.
func (c *Controller) Seek(position time.Duration) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	return c.seekLocked(position)
}

// SeekRelative seeks by delta from the current position.
func (c *Controller) SeekRelative(delta time.Duration) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	return c.seekLocked(c.Position() + delta)
}

func (c *Controller) seekLocked(position time.Duration) error {
	if c.pipe == nil {
		return playerrors.ErrNoMediaLoaded
	}
	if position < 0 {
		position = 0
	}
	if d := c.pipe.info.Duration; d > 0 && position > d {
		position = d
	}

	c.seekMu.Lock()
	prev := c.State()
	c.setState(api.StateSeeking)

	if c.out != nil && c.pipe.audioActive {
		c.stopAudio()
	}
	c.frames.Clear()
	c.samples.Clear()
	if err := c.pipe.dec.Seek(position); err != nil {
		c.seekMu.Unlock()
		c.setState(prev)
		return playerrors.NewPlayerError("seek", playerrors.KindOf(err), c.pipe.source, err)
	}
	if err := c.pipe.dec.Flush(); err != nil {
		c.log().Warn("flush after seek failed", slog.String("error", err.Error()))
	}
	c.resetPipeline(position)
	if c.paused.Load() {
		c.sync.Pause()
	}

	next := prev
	switch prev {
	case api.StatePlaying, api.StateBuffering, api.StateEnded:
		next = c.activeState()
	case api.StateError:
		next = api.StateStopped
	}
	c.seekMu.Unlock()

	if prev == api.StateError {
		c.stopLoopsLocked()
	}
	c.setState(next)
	c.log().Debug("seeked", slog.Duration("position", position))
	c.lastPosEvent.Store(time.Now().UnixNano())
	c.publish(api.EventPositionChanged, position)
	return nil
}

// SetVolume sets the output volume; values outside [0, 1] are clamped.
func (c *Controller) SetVolume(volume float32) error {
	if math.IsNaN(float64(volume)) {
		return playerrors.NewPlayerError("set_volume", playerrors.KindInvalidInput, "", playerrors.ErrInvalidVolume)
	}
	volume = clampUnit(volume)

	c.mu.Lock()
	c.volume = volume
	muted := c.muted
	c.mu.Unlock()

	if c.out != nil && !muted {
		if err := c.out.SetVolume(volume); err != nil {
			return err
		}
	}
	c.publish(api.EventVolumeChanged, volume)
	return nil
}

// Volume returns the volume level, which is kept while muted.
func (c *Controller) Volume() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// ToggleMute silences the output or restores the previous level, and
// reports whether the output is now muted.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	c.muted = !c.muted
	muted, level := c.muted, c.volume
	c.mu.Unlock()

	effective := level
	if muted {
		effective = 0
	}
	if c.out != nil {
		if err := c.out.SetVolume(effective); err != nil {
			observability.WithError(c.log(), err).Warn("set volume failed")
		}
	}
	c.publish(api.EventVolumeChanged, effective)
	return muted
}

func (c *Controller) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// SetSpeed sets the playback speed multiplier. Speeds must be in (0, 4].
func (c *Controller) SetSpeed(speed float64) error {
	if math.IsNaN(speed) || speed <= 0 || speed > avsync.MaxSpeed {
		return playerrors.NewPlayerError("set_speed", playerrors.KindInvalidInput, "",
			fmt.Errorf("%w: %v", playerrors.ErrInvalidSpeed, speed))
	}
	applied := c.sync.SetSpeed(speed)
	c.timing.SetSpeed(applied)
	if s, ok := c.out.(interface{ SetSpeed(float64) }); ok {
		s.SetSpeed(applied)
	}

	c.mu.Lock()
	c.speed = applied
	c.mu.Unlock()

	c.log().Info("speed changed", slog.Float64("speed", applied))
	c.publish(api.EventSpeedChanged, applied)
	return nil
}

func (c *Controller) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

// SetFullscreen switches the attached window in or out of fullscreen.
func (c *Controller) SetFullscreen(fullscreen bool) error {
	c.mu.Lock()
	w := c.window
	c.fullscreen = fullscreen
	c.mu.Unlock()
	if w == nil {
		return nil
	}
	if err := w.SetFullscreen(fullscreen); err != nil {
		return playerrors.NewPlayerError("set_fullscreen", playerrors.KindWindow, "", err)
	}
	return nil
}

func (c *Controller) Fullscreen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fullscreen
}

// SetAspectRatio forces a display aspect ratio; 0 follows the frames.
func (c *Controller) SetAspectRatio(ratio float32) error {
	if c.renderer == nil {
		return nil
	}
	return c.renderer.SetAspectRatio(ratio)
}

// SetSyncMode changes the clock video is corrected against. AudioMaster is
// refused while the loaded source plays without audio.
func (c *Controller) SetSyncMode(mode api.SyncMode) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if mode == api.SyncAudioMaster && c.pipe != nil && !c.pipe.audioActive {
		return playerrors.NewPlayerError("set_sync_mode", playerrors.KindInvalidInput, "",
			errors.New("no audio to use as master clock"))
	}
	c.syncMode = mode
	c.sync.SetMode(mode)
	return nil
}

func (c *Controller) State() api.PlaybackState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Position returns the playback position of what is currently heard or seen.
func (c *Controller) Position() time.Duration {
	return api.DurationFromPTS(c.positionUS.Load())
}

// Media returns the loaded source's info, or nil.
func (c *Controller) Media() *api.MediaInfo {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if c.pipe == nil {
		return nil
	}
	return c.pipe.info
}

// Err returns the error that put the player into the Error state.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Close stops playback, saves the position and releases the output.
func (c *Controller) Close() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.unloadLocked()
	c.bus.Close()

	var errs []error
	if c.out != nil {
		errs = append(errs, c.out.Close())
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	return errors.Join(errs...)
}

func (c *Controller) startLoopsLocked(p *pipeline) {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	c.running.Store(true)
	g.Go(func() error { return c.decodeLoop(ctx, p) })
	g.Go(func() error { return c.audioLoop(ctx, p) })
	g.Go(func() error { return c.renderLoop(ctx, p) })
	c.loops = &loopGroup{g: g, cancel: cancel}
}

// stopLoopsLocked returns only once all three loops have exited.
func (c *Controller) stopLoopsLocked() {
	if c.loops == nil {
		return
	}
	c.running.Store(false)
	c.loops.cancel()
	if err := c.loops.g.Wait(); err != nil {
		c.log().Debug("loops exited with error", slog.String("error", err.Error()))
	}
	c.loops = nil
}

// setState records a transition and publishes it.
func (c *Controller) setState(s api.PlaybackState) {
	c.mu.Lock()
	old := c.state
	c.state = s
	logger := c.logger
	c.mu.Unlock()
	if old == s {
		return
	}
	logger.Info("state changed", slog.String("from", old.String()), slog.String("to", s.String()))
	c.publish(api.EventStateChanged, s)
}

// transition moves from one state to another only if the player is still in
// from. The loops use it so they never overwrite a command's transition.
func (c *Controller) transition(from, to api.PlaybackState) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	logger := c.logger
	c.mu.Unlock()
	logger.Info("state changed", slog.String("from", from.String()), slog.String("to", to.String()))
	c.publish(api.EventStateChanged, to)
	return true
}

// fail puts the player into the Error state after a terminal loop failure.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.running.Store(false)
	observability.WithError(c.log(), err).Error("playback failed")
	c.setState(api.StateError)
	c.publish(api.EventError, err)
}

func (c *Controller) publish(t api.EventType, payload any) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	c.bus.Publish(api.PlayerEvent{Type: t, Session: session, Payload: payload, Timestamp: time.Now()})
}

func (c *Controller) stopAudio() {
	if err := c.out.Stop(); err != nil {
		observability.WithError(c.log(), err).Warn("stop audio failed")
	}
}

func (c *Controller) log() *slog.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// updatePosition stores pts and publishes PositionChanged at most every 250ms.
func (c *Controller) updatePosition(pts int64) {
	if pts < c.seekFloor.Load() {
		pts = c.seekFloor.Load()
	}
	c.positionUS.Store(pts)
	now := time.Now().UnixNano()
	last := c.lastPosEvent.Load()
	if now-last < int64(positionEventInterval) || !c.lastPosEvent.CompareAndSwap(last, now) {
		return
	}
	c.publish(api.EventPositionChanged, api.DurationFromPTS(pts))
}

func (c *Controller) currentItem() *api.PlaylistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.item
}

func (c *Controller) checkpointPosition() (string, time.Duration, bool) {
	item := c.currentItem()
	if item == nil {
		return "", 0, false
	}
	s := c.State()
	return item.ID, c.Position(), s.IsActive() || s == api.StatePaused
}

// savePosition records where the current item was left, or clears the
// record once it has played to the end.
func (c *Controller) savePosition() {
	if c.store == nil || !c.cfg.Player.RememberPosition {
		return
	}
	item := c.currentItem()
	if item == nil {
		return
	}
	pos := c.Position()
	if c.State() == api.StateEnded {
		pos = 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.Set(ctx, item.ID, pos.Truncate(time.Second)); err != nil {
		c.log().Warn("save position failed", slog.String("error", err.Error()))
	}
}

func clampUnit(v float32) float32 {
	switch {
	case v < 0 || math.IsNaN(float64(v)):
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Compile-time check that the concrete output offers what the loops probe for.
var _ interface {
	Drain()
	SetSpeed(float64)
	Stats() audio.OutputStats
	State() audio.OutputState
} = (*audio.Output)(nil)
