package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/jscyril/golang_media_player/api"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

// FillFunc is the realtime callback a Device calls to obtain interleaved
// samples. It must fill the whole slice and must not block.
type FillFunc func(out []float32)

// Device is a sound output that pulls samples through a FillFunc.
type Device interface {
	Open(format api.AudioFormat, fill FillFunc) error
	Close() error
}

// NewDevice returns the device registered under name.
func NewDevice(name string, bufferSize time.Duration) (Device, error) {
	switch name {
	case "", "speaker":
		return NewSpeakerDevice(bufferSize), nil
	case "null":
		return NewNullDevice(bufferSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown audio device %q", playerrors.ErrDeviceUnavailable, name)
	}
}

// SpeakerDevice plays through the system sound card using beep's speaker.
type SpeakerDevice struct {
	mu         sync.Mutex
	bufferSize time.Duration
	open       bool
}

func NewSpeakerDevice(bufferSize time.Duration) *SpeakerDevice {
	if bufferSize <= 0 {
		bufferSize = 50 * time.Millisecond
	}
	return &SpeakerDevice{bufferSize: bufferSize}
}

func (d *SpeakerDevice) Open(format api.AudioFormat, fill FillFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		speaker.Clear()
	}

	rate := beep.SampleRate(format.SampleRate)
	if err := speaker.Init(rate, rate.N(d.bufferSize)); err != nil {
		return playerrors.NewPlayerError("speaker_init", playerrors.KindAudioDevice, "", err)
	}

	channels := format.Channels
	var scratch []float32
	speaker.Play(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		need := len(samples) * channels
		if cap(scratch) < need {
			scratch = make([]float32, need)
		}
		buf := scratch[:need]
		fill(buf)

		for i := range samples {
			if channels == 1 {
				v := float64(buf[i])
				samples[i] = [2]float64{v, v}
				continue
			}
			samples[i][0] = float64(buf[i*channels])
			samples[i][1] = float64(buf[i*channels+1])
		}
		return len(samples), true
	}))

	d.open = true
	return nil
}

func (d *SpeakerDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		speaker.Clear()
		d.open = false
	}
	return nil
}

// NullDevice discards audio but pulls it at the real-time rate, so clocks
// advance exactly as they would on a sound card. Used for headless playback.
type NullDevice struct {
	period time.Duration

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

func NewNullDevice(period time.Duration) *NullDevice {
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	return &NullDevice{period: period}
}

func (d *NullDevice) Open(format api.AudioFormat, fill FillFunc) error {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("%w: invalid format %+v", playerrors.ErrDeviceUnavailable, format)
	}
	d.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.done = make(chan struct{})

	frames := int(int64(format.SampleRate) * int64(d.period) / int64(time.Second))
	buf := make([]float32, frames*format.Channels)
	done := d.done

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.period)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fill(buf)
			}
		}
	}()
	return nil
}

func (d *NullDevice) Close() error {
	d.mu.Lock()
	if d.done != nil {
		close(d.done)
		d.done = nil
	}
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}
