package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

const (
	// VolumeRampSamples is the default ramp length in samples.
	VolumeRampSamples = 512

	volumeEpsilon = 0.001
)

// RampCurve shapes the progress of a volume ramp.
type RampCurve int

const (
	RampLinear RampCurve = iota
	RampExponential
	RampSCurve
)

func (c RampCurve) String() string {
	switch c {
	case RampLinear:
		return "linear"
	case RampExponential:
		return "exponential"
	case RampSCurve:
		return "s-curve"
	default:
		return "unknown"
	}
}

// ParseRampCurve converts a config string into a RampCurve.
func ParseRampCurve(s string) (RampCurve, error) {
	switch s {
	case "linear":
		return RampLinear, nil
	case "exponential":
		return RampExponential, nil
	case "s-curve", "scurve":
		return RampSCurve, nil
	}
	return RampLinear, fmt.Errorf("unknown ramp curve %q", s)
}

func (c RampCurve) apply(t float32, rising bool) float32 {
	switch c {
	case RampExponential:
		if rising {
			return 1 - (1-t)*(1-t)
		}
		return t * t
	case RampSCurve:
		return t * t * (3 - 2*t)
	default:
		return t
	}
}

// VolumeRamp interpolates a gain towards a target over a fixed number of
// samples. It is owned by the audio callback and is not safe for concurrent use.
type VolumeRamp struct {
	start     float32
	current   float32
	target    float32
	duration  int
	processed int
	curve     RampCurve
}

// NewVolumeRamp creates a ramp resting at initial.
func NewVolumeRamp(initial float32, duration int, curve RampCurve) *VolumeRamp {
	if duration <= 0 {
		duration = VolumeRampSamples
	}
	return &VolumeRamp{
		start:     initial,
		current:   initial,
		target:    initial,
		duration:  duration,
		processed: duration,
		curve:     curve,
	}
}

// SetTarget starts a new ramp from the current gain. Targets within
// volumeEpsilon of the existing target are ignored, so an unchanged target
// does not restart a ramp in progress.
func (r *VolumeRamp) SetTarget(target float32) {
	if abs32(target-r.target) <= volumeEpsilon {
		return
	}
	r.start = r.current
	r.target = target
	r.processed = 0
}

// Next advances the ramp by one sample and returns the gain for it. Once
// duration samples have been processed the gain is exactly the target.
func (r *VolumeRamp) Next() float32 {
	if r.processed >= r.duration {
		r.current = r.target
		return r.current
	}
	r.processed++
	if r.processed >= r.duration {
		r.current = r.target
		return r.current
	}
	t := float32(r.processed) / float32(r.duration)
	r.current = r.start + (r.target-r.start)*r.curve.apply(t, r.target > r.start)
	return r.current
}

// Process scales every sample in buf by successive ramp gains.
func (r *VolumeRamp) Process(buf []float32) {
	for i := range buf {
		buf[i] *= r.Next()
	}
}

func (r *VolumeRamp) Current() float32 { return r.current }

func (r *VolumeRamp) Target() float32 { return r.target }

func (r *VolumeRamp) IsRamping() bool { return r.processed < r.duration }

// VolumeController applies master and per-channel volume, mute, optional
// loudness normalization and compression to the device feed. Setters may be
// called from any goroutine; Process is called only by the audio callback.
type VolumeController struct {
	master atomic.Uint32 // float32 bits
	muted  atomic.Bool

	mu             sync.RWMutex
	channelVolumes []float32

	normalize  atomic.Bool
	compress   atomic.Bool
	normalizer *Normalizer
	compressor *Compressor

	ramp      *VolumeRamp
	effective atomic.Uint32 // float32 bits, last gain applied
}

// NewVolumeController creates a controller for the given layout at volume.
func NewVolumeController(channels, sampleRate int, volume float32, rampSamples int, curve RampCurve) *VolumeController {
	if channels <= 0 {
		channels = 2
	}
	volume = clampVolume(volume)
	vc := &VolumeController{
		channelVolumes: make([]float32, channels),
		normalizer:     NewNormalizer(sampleRate, channels),
		compressor:     NewCompressor(sampleRate),
		ramp:           NewVolumeRamp(volume, rampSamples, curve),
	}
	for i := range vc.channelVolumes {
		vc.channelVolumes[i] = 1
	}
	vc.master.Store(math.Float32bits(volume))
	vc.effective.Store(math.Float32bits(volume))
	return vc
}

// SetVolume sets the master volume, clamped to [0, 1], and returns the applied value.
func (vc *VolumeController) SetVolume(v float32) float32 {
	v = clampVolume(v)
	vc.master.Store(math.Float32bits(v))
	return v
}

func (vc *VolumeController) Volume() float32 {
	return math.Float32frombits(vc.master.Load())
}

// Mute ramps the output to silence; the master volume is kept for Unmute.
func (vc *VolumeController) Mute() { vc.muted.Store(true) }

func (vc *VolumeController) Unmute() { vc.muted.Store(false) }

// ToggleMute flips the mute state and returns the new one.
func (vc *VolumeController) ToggleMute() bool {
	for {
		old := vc.muted.Load()
		if vc.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (vc *VolumeController) IsMuted() bool { return vc.muted.Load() }

// SetChannelVolume sets the gain for one channel.
func (vc *VolumeController) SetChannelVolume(channel int, v float32) error {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if channel < 0 || channel >= len(vc.channelVolumes) {
		return fmt.Errorf("%w: %d", playerrors.ErrInvalidChannel, channel)
	}
	vc.channelVolumes[channel] = clampVolume(v)
	return nil
}

func (vc *VolumeController) ChannelVolume(channel int) (float32, error) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	if channel < 0 || channel >= len(vc.channelVolumes) {
		return 0, fmt.Errorf("%w: %d", playerrors.ErrInvalidChannel, channel)
	}
	return vc.channelVolumes[channel], nil
}

func (vc *VolumeController) EnableNormalization(enabled bool) { vc.normalize.Store(enabled) }

func (vc *VolumeController) EnableCompression(enabled bool) { vc.compress.Store(enabled) }

// EffectiveGain returns the ramp gain applied to the last processed sample.
func (vc *VolumeController) EffectiveGain() float32 {
	return math.Float32frombits(vc.effective.Load())
}

// Process applies the volume chain in place to interleaved samples.
func (vc *VolumeController) Process(buf []float32, channels int) {
	target := vc.Volume()
	if vc.muted.Load() {
		target = 0
	}
	vc.ramp.SetTarget(target)

	if vc.normalize.Load() {
		vc.normalizer.Process(buf)
	}
	if vc.compress.Load() {
		vc.compressor.Process(buf)
	}

	vc.mu.RLock()
	chans := vc.channelVolumes
	if channels <= 0 || channels > len(chans) {
		channels = len(chans)
	}
	for i := range buf {
		buf[i] *= vc.ramp.Next() * chans[i%channels]
	}
	vc.mu.RUnlock()

	vc.effective.Store(math.Float32bits(vc.ramp.Current()))
}

// Normalizer pulls loudness towards a target level using a mean-square
// estimate that decays over a three second window.
type Normalizer struct {
	targetLinear float64
	alpha        float64
	meanSquare   float64
	gain         float64
}

const (
	normalizerTargetLUFS = -14.0
	normalizerWindow     = 3.0 // seconds
	normalizerMinGain    = 0.1
	normalizerMaxGain    = 10.0
	normalizerSmoothing  = 0.05
)

func NewNormalizer(sampleRate, channels int) *Normalizer {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	if channels <= 0 {
		channels = 2
	}
	return &Normalizer{
		targetLinear: float64(DBToLinear(normalizerTargetLUFS)),
		alpha:        1 / (normalizerWindow * float64(sampleRate*channels)),
		gain:         1,
	}
}

// Gain returns the gain currently being applied.
func (n *Normalizer) Gain() float64 { return n.gain }

func (n *Normalizer) Process(buf []float32) {
	for _, s := range buf {
		n.meanSquare += (float64(s)*float64(s) - n.meanSquare) * n.alpha
	}
	if rms := math.Sqrt(n.meanSquare); rms > 1e-6 {
		desired := math.Min(math.Max(n.targetLinear/rms, normalizerMinGain), normalizerMaxGain)
		n.gain += (desired - n.gain) * normalizerSmoothing
	}
	g := float32(n.gain)
	for i := range buf {
		buf[i] *= g
	}
}

// Compressor is a feed-forward dynamic range compressor with an envelope follower.
type Compressor struct {
	ThresholdDB float32
	Ratio       float32
	MakeupDB    float32

	attackCoef  float32
	releaseCoef float32
	envelope    float32
}

func NewCompressor(sampleRate int) *Compressor {
	c := &Compressor{ThresholdDB: -20, Ratio: 4}
	c.SetTimes(sampleRate, 0.010, 0.100)
	return c
}

// SetTimes configures attack and release in seconds.
func (c *Compressor) SetTimes(sampleRate int, attack, release float64) {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	c.attackCoef = float32(math.Exp(-1 / (attack * float64(sampleRate))))
	c.releaseCoef = float32(math.Exp(-1 / (release * float64(sampleRate))))
}

func (c *Compressor) Process(buf []float32) {
	makeup := DBToLinear(c.MakeupDB)
	for i, s := range buf {
		level := abs32(s)
		if level > c.envelope {
			c.envelope = c.attackCoef*c.envelope + (1-c.attackCoef)*level
		} else {
			c.envelope = c.releaseCoef*c.envelope + (1-c.releaseCoef)*level
		}

		gain := float32(1)
		if levelDB := LinearToDB(c.envelope); levelDB > c.ThresholdDB {
			compressed := c.ThresholdDB + (levelDB-c.ThresholdDB)/c.Ratio
			gain = DBToLinear(compressed - levelDB)
		}
		buf[i] = s * gain * makeup
	}
}

// DBToLinear converts decibels to a linear gain.
func DBToLinear(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

// LinearToDB converts a linear gain to decibels.
func LinearToDB(linear float32) float32 {
	if linear < 1e-10 {
		linear = 1e-10
	}
	return float32(20 * math.Log10(float64(linear)))
}

func clampVolume(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
