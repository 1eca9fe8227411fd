// Package audio implements the audio device feed: a lock-free ring buffer
// between the audio loop and the device callback, volume processing, and
// file decoding helpers.
package audio

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/avsync"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

// Ensure Output implements AudioOutput at compile time
var _ api.AudioOutput = (*Output)(nil)

const (
	DefaultMinFillRatio  = 0.25
	DefaultDeviceLatency = 10 * time.Millisecond
)

// OutputState is the device-side playback state.
type OutputState int32

const (
	OutputStopped OutputState = iota
	OutputBuffering
	OutputPlaying
	OutputPaused
)

func (s OutputState) String() string {
	switch s {
	case OutputStopped:
		return "stopped"
	case OutputBuffering:
		return "buffering"
	case OutputPlaying:
		return "playing"
	case OutputPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// OutputConfig tunes buffering and volume behavior.
type OutputConfig struct {
	RingBufferSize int // samples per channel
	MinFillRatio   float64
	DeviceLatency  time.Duration
	RampSamples    int
	RampCurve      RampCurve
	Normalize      bool
	Compress       bool
}

func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		RingBufferSize: DefaultRingBufferSize,
		MinFillRatio:   DefaultMinFillRatio,
		DeviceLatency:  DefaultDeviceLatency,
		RampSamples:    VolumeRampSamples,
		RampCurve:      RampSCurve,
	}
}

// OutputStats reports device feed health.
type OutputStats struct {
	State          OutputState
	SamplesPlayed  uint64
	Underruns      uint64
	DroppedSamples uint64
	BufferFill     float32
}

// Output feeds a Device from a ring buffer. Play is called by the audio loop,
// fill by the device's realtime callback; the two meet only through the ring
// buffer and atomics.
type Output struct {
	cfg    OutputConfig
	device Device
	logger *slog.Logger

	// mu serializes Initialize, Stop and Close. The callback never takes it.
	mu     sync.Mutex
	format api.AudioFormat
	opened bool

	ring     atomic.Pointer[RingBuffer]
	volume   atomic.Pointer[VolumeController]
	channels atomic.Int32
	clock    *avsync.AudioClock

	state    atomic.Int32
	draining atomic.Bool
	speed    atomic.Uint64 // float64 bits
	level    atomic.Uint32 // float32 bits, volume carried across Initialize

	samplesPlayed atomic.Uint64
	underruns     atomic.Uint64
	dropped       atomic.Uint64
}

// NewOutput creates an output writing to device.
func NewOutput(device Device, cfg OutputConfig, logger *slog.Logger) *Output {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = DefaultRingBufferSize
	}
	if cfg.MinFillRatio <= 0 || cfg.MinFillRatio > 1 {
		cfg.MinFillRatio = DefaultMinFillRatio
	}
	if cfg.RampSamples <= 0 {
		cfg.RampSamples = VolumeRampSamples
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Output{
		cfg:    cfg,
		device: device,
		logger: logger.With(slog.String("component", "audio_output")),
		clock:  avsync.NewAudioClock(avsync.DefaultSampleRate),
	}
	o.speed.Store(math.Float64bits(1.0))
	o.level.Store(math.Float32bits(1.0))
	return o
}

// Initialize (re)opens the device for format and resets buffering.
func (o *Output) Initialize(format api.AudioFormat) error {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return playerrors.NewPlayerError("audio_init", playerrors.KindInvalidInput, "",
			fmt.Errorf("invalid audio format %+v", format))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.Store(int32(OutputStopped))
	if o.opened {
		o.device.Close()
		o.opened = false
	}

	vol := NewVolumeController(format.Channels, format.SampleRate,
		math.Float32frombits(o.level.Load()), o.cfg.RampSamples, o.cfg.RampCurve)
	vol.EnableNormalization(o.cfg.Normalize)
	vol.EnableCompression(o.cfg.Compress)

	o.format = format
	o.channels.Store(int32(format.Channels))
	o.ring.Store(NewRingBuffer(o.cfg.RingBufferSize * format.Channels))
	o.volume.Store(vol)
	o.clock.SetSampleRate(format.SampleRate)
	o.clock.Reset()
	o.underruns.Store(0)

	if err := o.device.Open(format, o.fill); err != nil {
		o.ring.Store(nil)
		return playerrors.NewPlayerError("audio_init", playerrors.KindAudioDevice, "", err)
	}
	o.opened = true

	o.logger.Info("audio output initialized",
		slog.Int("sample_rate", format.SampleRate),
		slog.Int("channels", format.Channels),
		slog.Int("ring_capacity", o.cfg.RingBufferSize*format.Channels))
	return nil
}

// Play queues a batch for the device. Samples that do not fit are dropped.
func (o *Output) Play(samples *api.AudioSamples) error {
	ring := o.ring.Load()
	if ring == nil {
		return playerrors.NewPlayerError("audio_play", playerrors.KindAudioDevice, "", playerrors.ErrNotInitialized)
	}
	format := o.Format()
	if samples.Channels != format.Channels {
		return playerrors.NewPlayerError("audio_play", playerrors.KindInvalidInput, "",
			fmt.Errorf("%w: got %d, want %d", playerrors.ErrChannelMismatch, samples.Channels, format.Channels))
	}

	data := Interleave(samples)
	srcRate := samples.SampleRate
	if speed := o.Speed(); speed != 1.0 {
		srcRate = int(float64(srcRate) * speed)
	}
	if srcRate != format.SampleRate {
		data = ResampleLinear(data, format.Channels, srcRate, format.SampleRate)
	}

	if n := ring.Write(data); n < len(data) {
		o.dropped.Add(uint64(len(data) - n))
		o.logger.Debug("ring buffer full, dropping samples", slog.Int("dropped", len(data)-n))
	}
	o.draining.Store(false)

	o.state.CompareAndSwap(int32(OutputStopped), int32(OutputBuffering))
	o.promoteIfFilled(ring)
	return nil
}

// Drain lets whatever is buffered play out even if it is below the fill
// threshold. Called when the stream has ended.
func (o *Output) Drain() {
	o.draining.Store(true)
}

func (o *Output) promoteIfFilled(ring *RingBuffer) {
	if float64(ring.Fill()) < o.cfg.MinFillRatio && !(o.draining.Load() && ring.Len() > 0) {
		return
	}
	if o.state.CompareAndSwap(int32(OutputBuffering), int32(OutputPlaying)) {
		o.clock.Start()
		o.logger.Debug("audio buffering complete", slog.Float64("fill", float64(ring.Fill())))
	}
}

func (o *Output) Pause() error {
	if o.state.CompareAndSwap(int32(OutputPlaying), int32(OutputPaused)) ||
		o.state.CompareAndSwap(int32(OutputBuffering), int32(OutputPaused)) {
		o.clock.Pause()
	}
	return nil
}

// Resume returns to Buffering so playback restarts only once the fill
// threshold is met.
func (o *Output) Resume() error {
	if o.state.CompareAndSwap(int32(OutputPaused), int32(OutputBuffering)) {
		o.clock.Resume()
		if ring := o.ring.Load(); ring != nil {
			o.promoteIfFilled(ring)
		}
	}
	return nil
}

// Stop silences the device and discards everything buffered.
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.Store(int32(OutputStopped))
	o.draining.Store(false)
	if ring := o.ring.Load(); ring != nil {
		ring.Clear()
	}
	o.clock.Reset()
	o.underruns.Store(0)
	return nil
}

// SetVolume sets the master volume; values outside [0, 1] are clamped.
func (o *Output) SetVolume(volume float32) error {
	volume = clampVolume(volume)
	o.level.Store(math.Float32bits(volume))
	if vc := o.volume.Load(); vc != nil {
		vc.SetVolume(volume)
	}
	return nil
}

// Volume returns the volume controller, or nil before Initialize.
func (o *Output) Volume() *VolumeController { return o.volume.Load() }

// SetSpeed makes batches play as if their rate were rate*speed.
func (o *Output) SetSpeed(speed float64) {
	o.speed.Store(math.Float64bits(avsync.ClampSpeed(speed)))
}

func (o *Output) Speed() float64 { return math.Float64frombits(o.speed.Load()) }

// Latency estimates µs until a sample written now is heard.
func (o *Output) Latency() int64 {
	latency := o.cfg.DeviceLatency.Microseconds()
	ring := o.ring.Load()
	format := o.Format()
	if ring == nil || format.SampleRate <= 0 || format.Channels <= 0 {
		return latency
	}
	frames := int64(ring.Len() / format.Channels)
	return frames*1_000_000/int64(format.SampleRate) + latency
}

func (o *Output) BufferFill() float32 {
	if ring := o.ring.Load(); ring != nil {
		return ring.Fill()
	}
	return 0
}

func (o *Output) State() OutputState { return OutputState(o.state.Load()) }

func (o *Output) IsPlaying() bool { return o.State() == OutputPlaying }

// Clock returns the clock advanced by samples actually handed to the device.
func (o *Output) Clock() *avsync.AudioClock { return o.clock }

func (o *Output) Format() api.AudioFormat {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.format
}

func (o *Output) Stats() OutputStats {
	return OutputStats{
		State:          o.State(),
		SamplesPlayed:  o.samplesPlayed.Load(),
		Underruns:      o.underruns.Load(),
		DroppedSamples: o.dropped.Load(),
		BufferFill:     o.BufferFill(),
	}
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.Store(int32(OutputStopped))
	if !o.opened {
		return nil
	}
	o.opened = false
	if err := o.device.Close(); err != nil {
		return playerrors.NewPlayerError("audio_close", playerrors.KindAudioDevice, "", err)
	}
	return nil
}

// fill is the device callback. It never blocks and never allocates.
func (o *Output) fill(out []float32) {
	ring := o.ring.Load()
	vol := o.volume.Load()
	if ring == nil || vol == nil {
		clear(out)
		return
	}

	if OutputState(o.state.Load()) == OutputBuffering {
		o.promoteIfFilled(ring)
	}
	if OutputState(o.state.Load()) != OutputPlaying {
		clear(out)
		return
	}

	channels := int(o.channels.Load())
	if ring.Len() < len(out) {
		if !o.draining.Load() {
			clear(out)
			o.underruns.Add(1)
			o.state.CompareAndSwap(int32(OutputPlaying), int32(OutputBuffering))
			return
		}
		n := ring.Read(out)
		clear(out[n:])
		o.consumed(vol, out[:n], channels)
		return
	}

	n := ring.Read(out)
	clear(out[n:])
	o.consumed(vol, out[:n], channels)
}

func (o *Output) consumed(vol *VolumeController, buf []float32, channels int) {
	if len(buf) == 0 {
		return
	}
	vol.Process(buf, channels)
	o.clock.UpdateSamples(len(buf) / channels)
	o.samplesPlayed.Add(uint64(len(buf)))
}
