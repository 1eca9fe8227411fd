package audio

import (
	"errors"
	"math"
	"testing"

	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRampDownToSilence(t *testing.T) {
	for _, curve := range []RampCurve{RampLinear, RampExponential, RampSCurve} {
		t.Run(curve.String(), func(t *testing.T) {
			r := NewVolumeRamp(1.0, 10, curve)
			r.SetTarget(0.0)

			values := make([]float32, 10)
			for i := range values {
				values[i] = r.Next()
			}

			assert.Less(t, values[9], float32(0.1))
			assert.Greater(t, values[0], values[9])
		})
	}
}

func TestRampConvergesMonotonically(t *testing.T) {
	tests := []struct {
		from, to float32
	}{
		{1.0, 0.0},
		{0.0, 1.0},
		{0.3, 0.8},
		{0.9, 0.25},
	}

	for _, curve := range []RampCurve{RampLinear, RampExponential, RampSCurve} {
		for _, tt := range tests {
			r := NewVolumeRamp(tt.from, VolumeRampSamples, curve)
			r.SetTarget(tt.to)
			require.True(t, r.IsRamping())

			prev := tt.from
			for i := 0; i < VolumeRampSamples; i++ {
				g := r.Next()
				if tt.to > tt.from {
					require.GreaterOrEqual(t, g, prev, "%s %v->%v sample %d", curve, tt.from, tt.to, i)
				} else {
					require.LessOrEqual(t, g, prev, "%s %v->%v sample %d", curve, tt.from, tt.to, i)
				}
				prev = g
			}

			assert.Equal(t, tt.to, r.Current(), "%s %v->%v", curve, tt.from, tt.to)
			assert.False(t, r.IsRamping())
			assert.Equal(t, tt.to, r.Next())
		}
	}
}

func TestRampIgnoresTinyChanges(t *testing.T) {
	r := NewVolumeRamp(0.5, 100, RampLinear)
	r.SetTarget(0.5005)
	assert.False(t, r.IsRamping())
	assert.Equal(t, float32(0.5), r.Target())

	r.SetTarget(1.0)
	for i := 0; i < 50; i++ {
		r.Next()
	}
	// Re-setting the same target mid-ramp must not restart it
	r.SetTarget(1.0)
	for i := 0; i < 50; i++ {
		r.Next()
	}
	assert.Equal(t, float32(1.0), r.Current())
}

func TestRampProcess(t *testing.T) {
	r := NewVolumeRamp(0.5, 4, RampLinear)
	buf := []float32{1, 1, 1}
	r.Process(buf)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, buf)
}

func TestParseRampCurve(t *testing.T) {
	for _, name := range []string{"linear", "exponential", "s-curve"} {
		c, err := ParseRampCurve(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}
	_, err := ParseRampCurve("cubic")
	assert.Error(t, err)
}

func constant(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestVolumeControllerRampsToNewVolume(t *testing.T) {
	vc := NewVolumeController(2, 48000, 1.0, 8, RampLinear)
	assert.Equal(t, float32(0.5), vc.SetVolume(0.5))

	buf := constant(16, 1)
	vc.Process(buf, 2)
	assert.Greater(t, buf[0], float32(0.5))
	assert.Equal(t, float32(0.5), buf[15])
	assert.Equal(t, float32(0.5), vc.EffectiveGain())

	assert.Equal(t, float32(1), vc.SetVolume(3))
	assert.Equal(t, float32(0), vc.SetVolume(-1))
}

func TestVolumeControllerMute(t *testing.T) {
	vc := NewVolumeController(2, 48000, 0.8, 4, RampLinear)

	assert.True(t, vc.ToggleMute())
	buf := constant(8, 1)
	vc.Process(buf, 2)
	assert.Equal(t, float32(0), buf[7])
	assert.Equal(t, float32(0.8), vc.Volume(), "mute keeps the master volume")

	vc.Unmute()
	assert.False(t, vc.IsMuted())
	buf = constant(8, 1)
	vc.Process(buf, 2)
	assert.Equal(t, float32(0.8), buf[7])
}

func TestVolumeControllerChannels(t *testing.T) {
	vc := NewVolumeController(2, 48000, 1.0, 1, RampLinear)
	require.NoError(t, vc.SetChannelVolume(1, 0.25))

	v, err := vc.ChannelVolume(1)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), v)

	buf := constant(4, 1)
	vc.Process(buf, 2)
	assert.Equal(t, []float32{1, 0.25, 1, 0.25}, buf)

	err = vc.SetChannelVolume(2, 1)
	assert.True(t, errors.Is(err, playerrors.ErrInvalidChannel))
	_, err = vc.ChannelVolume(-1)
	assert.ErrorIs(t, err, playerrors.ErrInvalidChannel)
}

func TestDecibelConversion(t *testing.T) {
	assert.InDelta(t, 1.0, DBToLinear(0), 1e-6)
	assert.InDelta(t, 0.1, DBToLinear(-20), 1e-6)
	assert.InDelta(t, -6.0206, LinearToDB(0.5), 1e-3)
	assert.InDelta(t, -200, LinearToDB(0), 1e-3)
}

func TestNormalizerRaisesQuietSignal(t *testing.T) {
	n := NewNormalizer(1000, 1)
	buf := make([]float32, 1000)
	for round := 0; round < 200; round++ {
		for i := range buf {
			buf[i] = 0.01 * float32(math.Sin(float64(i)))
		}
		n.Process(buf)
	}
	assert.Greater(t, n.Gain(), 1.0)
	assert.LessOrEqual(t, n.Gain(), 10.0)
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	c := NewCompressor(48000)
	buf := constant(4800, 0.9)
	c.Process(buf)

	assert.Less(t, buf[len(buf)-1], float32(0.9))
	assert.Greater(t, buf[len(buf)-1], float32(0))

	quiet := constant(4800, 0.01)
	NewCompressor(48000).Process(quiet)
	assert.InDelta(t, 0.01, quiet[len(quiet)-1], 1e-6)
}
