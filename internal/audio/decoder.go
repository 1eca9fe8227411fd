package audio

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

type decodeFunc func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// codecs maps a lower-case file extension to its beep decoder.
var codecs = map[string]decodeFunc{
	".mp3":  mp3.Decode,
	".wav":  func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) },
	".flac": func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(r) },
}

// SupportedFormats returns the file extensions that can be decoded, sorted.
func SupportedFormats() []string {
	exts := make([]string, 0, len(codecs))
	for ext := range codecs {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// IsSupported reports whether the file extension has a decoder.
func IsSupported(filePath string) bool {
	_, ok := codecs[strings.ToLower(filepath.Ext(filePath))]
	return ok
}

// DecodeAudio opens a beep stream for the file, choosing the codec by extension.
func DecodeAudio(r io.ReadSeekCloser, filePath string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	decode, ok := codecs[ext]
	if !ok {
		return nil, beep.Format{}, fmt.Errorf("%w: %q", playerrors.ErrInvalidFormat, ext)
	}
	stream, format, err := decode(r)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", filepath.Base(filePath), err)
	}
	return stream, format, nil
}

// StreamBatch pulls up to frames stereo frames from s and returns them
// interleaved as float32 with the requested channel count (1 or 2).
// ok is false once the streamer is exhausted.
func StreamBatch(s beep.Streamer, frames, channels int) (data []float32, n int, ok bool) {
	buf := make([][2]float64, frames)
	n, ok = s.Stream(buf)
	if n == 0 {
		return nil, 0, ok
	}

	data = make([]float32, n*channels)
	for i := 0; i < n; i++ {
		if channels == 1 {
			data[i] = float32((buf[i][0] + buf[i][1]) / 2)
			continue
		}
		data[i*channels] = float32(buf[i][0])
		data[i*channels+1] = float32(buf[i][1])
	}
	return data, n, ok
}
