// Package decoder opens media sources and turns them into PTS-stamped video
// frames and audio batches.
package decoder

import (
	"log/slog"
	"strings"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

const DefaultBatchFrames = 1024

// Options configures decoders created by New.
type Options struct {
	// SampleRate resamples decoded audio to this rate; 0 keeps the source rate.
	SampleRate int
	// Channels of emitted audio, 1 or 2.
	Channels    int
	BatchFrames int
	HWAccel     bool
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Channels != 1 {
		o.Channels = 2
	}
	if o.BatchFrames <= 0 {
		o.BatchFrames = DefaultBatchFrames
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New returns an unopened decoder able to handle source.
func New(source string, opts Options) (api.Decoder, error) {
	opts = opts.withDefaults()
	if opts.HWAccel {
		opts.Logger.Debug("hardware decode requested, using software decode", slog.String("source", source))
	}

	switch {
	case strings.HasPrefix(source, SyntheticScheme):
		return NewSyntheticDecoder(opts), nil
	case audio.IsSupported(source):
		return NewFileDecoder(opts), nil
	default:
		return nil, playerrors.NewPlayerError("open", playerrors.KindUnsupportedFormat, source, playerrors.ErrInvalidFormat)
	}
}

// Open creates and opens a decoder for source.
func Open(source string, opts Options) (api.Decoder, *api.MediaInfo, error) {
	dec, err := New(source, opts)
	if err != nil {
		return nil, nil, err
	}
	info, err := dec.Open(source)
	if err != nil {
		return nil, nil, err
	}
	return dec, info, nil
}
