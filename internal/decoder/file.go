package decoder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
	"github.com/jscyril/golang_media_player/internal/library"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

// Ensure FileDecoder implements Decoder at compile time
var _ api.Decoder = (*FileDecoder)(nil)

const resampleQuality = 4

// FileDecoder decodes audio files (mp3, wav, flac). It never produces video.
type FileDecoder struct {
	opts   Options
	logger *slog.Logger

	source  string
	stream  beep.StreamSeekCloser
	format  beep.Format
	out     beep.Streamer
	outRate int
	info    *api.MediaInfo

	basePTS int64
	emitted int64 // frames at outRate since basePTS
	eof     bool
}

func NewFileDecoder(opts Options) *FileDecoder {
	opts = opts.withDefaults()
	return &FileDecoder{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "file_decoder")),
	}
}

func (d *FileDecoder) Open(source string) (*api.MediaInfo, error) {
	if d.stream != nil {
		d.Close()
	}

	file, err := os.Open(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, playerrors.NewPlayerError("open", playerrors.KindNotFound, source, playerrors.ErrSourceNotFound)
		}
		return nil, playerrors.NewPlayerError("open", playerrors.KindDecode, source, err)
	}

	stream, format, err := audio.DecodeAudio(file, source)
	if err != nil {
		file.Close()
		kind := playerrors.KindDecode
		if errors.Is(err, playerrors.ErrInvalidFormat) {
			kind = playerrors.KindUnsupportedFormat
		}
		return nil, playerrors.NewPlayerError("open", kind, source, err)
	}

	d.source = source
	d.stream = stream
	d.format = format
	d.outRate = int(format.SampleRate)
	if d.opts.SampleRate > 0 {
		d.outRate = d.opts.SampleRate
	}
	d.rebuild()
	d.basePTS = 0
	d.emitted = 0
	d.eof = false

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(source)), ".")
	d.info = &api.MediaInfo{
		Source:   source,
		Duration: format.SampleRate.D(stream.Len()),
		Format:   ext,
		AudioStreams: []api.AudioStreamInfo{{
			Codec:      ext,
			SampleRate: int(format.SampleRate),
			Channels:   format.NumChannels,
		}},
	}
	if meta, err := library.NewMetadataReader().ReadMetadata(source); err == nil {
		d.info.Metadata = *meta
	}

	d.logger.Info("media opened",
		slog.String("source", source),
		slog.Duration("duration", d.info.Duration),
		slog.Int("sample_rate", int(format.SampleRate)),
		slog.Int("output_rate", d.outRate))
	return d.info, nil
}

// rebuild recreates the resampling stage, discarding anything it buffered.
func (d *FileDecoder) rebuild() {
	if d.outRate == int(d.format.SampleRate) {
		d.out = d.stream
		return
	}
	d.out = beep.Resample(resampleQuality, d.format.SampleRate, beep.SampleRate(d.outRate), d.stream)
}

// DecodeFrame always returns nil: audio files have no video stream.
func (d *FileDecoder) DecodeFrame() (*api.VideoFrame, error) {
	if d.stream == nil {
		return nil, playerrors.ErrDecoderNotOpen
	}
	return nil, nil
}

func (d *FileDecoder) DecodeAudio() (*api.AudioSamples, error) {
	if d.stream == nil {
		return nil, playerrors.ErrDecoderNotOpen
	}
	if d.eof {
		return nil, nil
	}

	data, n, ok := audio.StreamBatch(d.out, d.opts.BatchFrames, d.opts.Channels)
	if n == 0 {
		if err := d.stream.Err(); err != nil {
			return nil, playerrors.NewPlayerError("decode_audio", playerrors.KindDecode, d.source, err)
		}
		d.eof = true
		return nil, nil
	}
	if !ok {
		d.eof = true
	}

	batch := &api.AudioSamples{
		Data:        data,
		SampleCount: n,
		Channels:    d.opts.Channels,
		SampleRate:  d.outRate,
		PTS:         d.basePTS + d.emitted*1_000_000/int64(d.outRate),
	}
	d.emitted += int64(n)
	return batch, nil
}

// Seek moves to ts, clamped to [0, duration].
func (d *FileDecoder) Seek(ts time.Duration) error {
	if d.stream == nil {
		return playerrors.ErrDecoderNotOpen
	}

	pos := d.format.SampleRate.N(ts)
	pos = max(0, min(pos, d.stream.Len()))
	if err := d.stream.Seek(pos); err != nil {
		return playerrors.NewPlayerError("seek", playerrors.KindDecode, d.source, fmt.Errorf("seek to %v: %w", ts, err))
	}

	d.rebuild()
	d.basePTS = api.PTSFromDuration(d.format.SampleRate.D(pos))
	d.emitted = 0
	d.eof = false
	return nil
}

// Flush drops audio buffered in the resampler.
func (d *FileDecoder) Flush() error {
	if d.stream == nil {
		return nil
	}
	d.rebuild()
	d.basePTS = api.PTSFromDuration(d.format.SampleRate.D(d.stream.Position()))
	d.emitted = 0
	return nil
}

func (d *FileDecoder) IsEOF() bool { return d.eof }

func (d *FileDecoder) Close() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	d.out = nil
	if err != nil {
		return playerrors.NewPlayerError("close", playerrors.KindDecode, d.source, err)
	}
	return nil
}
