package decoder

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jscyril/golang_media_player/api"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

// Ensure SyntheticDecoder implements Decoder at compile time
var _ api.Decoder = (*SyntheticDecoder)(nil)

// SyntheticScheme prefixes generated test sources, e.g.
// testsrc://bars?w=64&h=36&fps=30&duration=10s&rate=48000&tone=440
const SyntheticScheme = "testsrc://"

// SyntheticConfig describes a generated source.
type SyntheticConfig struct {
	Name       string
	Width      int
	Height     int
	FPS        float64
	Duration   time.Duration
	SampleRate int
	Channels   int
	Tone       float64
	Video      bool
	Audio      bool
}

func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Name:       "bars",
		Width:      64,
		Height:     36,
		FPS:        30,
		Duration:   10 * time.Second,
		SampleRate: 48000,
		Channels:   2,
		Tone:       440,
		Video:      true,
		Audio:      true,
	}
}

// ParseSynthetic reads a testsrc:// source. Unknown parameters are ignored.
func ParseSynthetic(source string) (SyntheticConfig, error) {
	cfg := DefaultSyntheticConfig()
	if !strings.HasPrefix(source, SyntheticScheme) {
		return cfg, fmt.Errorf("%w: not a %s source", playerrors.ErrInvalidFormat, SyntheticScheme)
	}
	u, err := url.Parse(source)
	if err != nil {
		return cfg, fmt.Errorf("parse source: %w", err)
	}
	if u.Host != "" {
		cfg.Name = u.Host
	}

	q := u.Query()
	intParam := func(key string, dst *int) error {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid %s %q", key, v)
			}
			*dst = n
		}
		return nil
	}
	floatParam := func(key string, dst *float64) error {
		if v := q.Get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				return fmt.Errorf("invalid %s %q", key, v)
			}
			*dst = f
		}
		return nil
	}
	boolParam := func(key string, dst *bool) error {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q", key, v)
			}
			*dst = b
		}
		return nil
	}

	for _, err := range []error{
		intParam("w", &cfg.Width),
		intParam("h", &cfg.Height),
		floatParam("fps", &cfg.FPS),
		intParam("rate", &cfg.SampleRate),
		intParam("channels", &cfg.Channels),
		floatParam("tone", &cfg.Tone),
		boolParam("video", &cfg.Video),
		boolParam("audio", &cfg.Audio),
	} {
		if err != nil {
			return cfg, err
		}
	}
	if v := q.Get("duration"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid duration %q", v)
		}
		cfg.Duration = d
	}
	if cfg.Channels > 2 {
		return cfg, fmt.Errorf("invalid channels %d", cfg.Channels)
	}
	return cfg, nil
}

// colorBars are the classic eight test bars.
var colorBars = [8][3]byte{
	{235, 235, 235}, {235, 235, 16}, {16, 235, 235}, {16, 235, 16},
	{235, 16, 235}, {235, 16, 16}, {16, 16, 235}, {16, 16, 16},
}

// SyntheticDecoder generates scrolling color bars and a sine tone. It is used
// for headless runs and exercises the pipeline without media files.
type SyntheticDecoder struct {
	opts   Options
	logger *slog.Logger

	cfg    SyntheticConfig
	open   bool
	frame  int64 // next frame index
	sample int64 // next sample frame index
	total  int64 // sample frames in the stream
}

func NewSyntheticDecoder(opts Options) *SyntheticDecoder {
	opts = opts.withDefaults()
	return &SyntheticDecoder{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "synthetic_decoder")),
	}
}

func (d *SyntheticDecoder) Open(source string) (*api.MediaInfo, error) {
	cfg, err := ParseSynthetic(source)
	if err != nil {
		return nil, playerrors.NewPlayerError("open", playerrors.KindInvalidInput, source, err)
	}
	if _, explicit := queryHas(source, "rate"); !explicit && d.opts.SampleRate > 0 {
		cfg.SampleRate = d.opts.SampleRate
	}

	d.cfg = cfg
	d.open = true
	d.frame = 0
	d.sample = 0
	d.total = int64(cfg.Duration.Seconds() * float64(cfg.SampleRate))

	info := &api.MediaInfo{
		Source:   source,
		Duration: cfg.Duration,
		Format:   "testsrc",
		Metadata: api.MediaMetadata{Title: "Test pattern (" + cfg.Name + ")"},
	}
	if cfg.Video {
		info.VideoStreams = []api.VideoStreamInfo{{
			Codec:       "rawvideo",
			Width:       cfg.Width,
			Height:      cfg.Height,
			FrameRate:   cfg.FPS,
			PixelFormat: api.PixelFormatRGBA,
		}}
	}
	if cfg.Audio {
		info.AudioStreams = []api.AudioStreamInfo{{
			Codec:      "pcm_f32",
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}}
	}

	d.logger.Info("synthetic source opened",
		slog.String("source", source),
		slog.Bool("video", cfg.Video),
		slog.Bool("audio", cfg.Audio),
		slog.Duration("duration", cfg.Duration))
	return info, nil
}

func queryHas(source, key string) (string, bool) {
	u, err := url.Parse(source)
	if err != nil {
		return "", false
	}
	q := u.Query()
	return q.Get(key), q.Has(key)
}

func (d *SyntheticDecoder) framePTS(i int64) int64 {
	return int64(float64(i) * 1_000_000 / d.cfg.FPS)
}

func (d *SyntheticDecoder) videoDone() bool {
	return !d.cfg.Video || d.framePTS(d.frame) >= api.PTSFromDuration(d.cfg.Duration)
}

func (d *SyntheticDecoder) audioDone() bool {
	return !d.cfg.Audio || d.sample >= d.total
}

func (d *SyntheticDecoder) DecodeFrame() (*api.VideoFrame, error) {
	if !d.open {
		return nil, playerrors.ErrDecoderNotOpen
	}
	if d.videoDone() {
		return nil, nil
	}

	w, h := d.cfg.Width, d.cfg.Height
	stride := w * 4
	pix := make([]byte, stride*h)
	shift := int(d.frame) % w
	for y := 0; y < h; y++ {
		row := pix[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			bar := colorBars[((x+shift)%w)*len(colorBars)/w]
			row[x*4] = bar[0]
			row[x*4+1] = bar[1]
			row[x*4+2] = bar[2]
			row[x*4+3] = 255
		}
	}

	pts := d.framePTS(d.frame)
	d.frame++
	return &api.VideoFrame{
		Format:   api.PixelFormatRGBA,
		Planes:   [][]byte{pix},
		Strides:  []int{stride},
		Width:    w,
		Height:   h,
		PTS:      pts,
		Duration: d.framePTS(d.frame) - pts,
	}, nil
}

func (d *SyntheticDecoder) DecodeAudio() (*api.AudioSamples, error) {
	if !d.open {
		return nil, playerrors.ErrDecoderNotOpen
	}
	if d.audioDone() {
		return nil, nil
	}

	n := int(min(int64(d.opts.BatchFrames), d.total-d.sample))
	ch := d.cfg.Channels
	rate := float64(d.cfg.SampleRate)
	data := make([]float32, n*ch)
	for i := 0; i < n; i++ {
		t := float64(d.sample+int64(i)) / rate
		v := float32(0.2 * math.Sin(2*math.Pi*d.cfg.Tone*t))
		for c := 0; c < ch; c++ {
			data[i*ch+c] = v
		}
	}

	pts := d.sample * 1_000_000 / int64(d.cfg.SampleRate)
	d.sample += int64(n)
	return &api.AudioSamples{
		Data:        data,
		SampleCount: n,
		Channels:    ch,
		SampleRate:  d.cfg.SampleRate,
		PTS:         pts,
	}, nil
}

// Seek moves both streams to ts, clamped to [0, duration].
func (d *SyntheticDecoder) Seek(ts time.Duration) error {
	if !d.open {
		return playerrors.ErrDecoderNotOpen
	}
	ts = max(0, min(ts, d.cfg.Duration))
	d.frame = int64(math.Ceil(ts.Seconds() * d.cfg.FPS))
	d.sample = min(int64(ts.Seconds()*float64(d.cfg.SampleRate)), d.total)
	return nil
}

func (d *SyntheticDecoder) Flush() error { return nil }

func (d *SyntheticDecoder) IsEOF() bool {
	return d.open && d.videoDone() && d.audioDone()
}

func (d *SyntheticDecoder) Close() error {
	d.open = false
	return nil
}
