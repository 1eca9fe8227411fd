package api

import "time"

// PTS values are signed microseconds since the start of the stream.

// PTSFromDuration converts a duration to a PTS value.
func PTSFromDuration(d time.Duration) int64 {
	return d.Microseconds()
}

// DurationFromPTS converts a PTS value to a duration.
func DurationFromPTS(pts int64) time.Duration {
	return time.Duration(pts) * time.Microsecond
}

// PixelFormat describes the plane layout of a VideoFrame.
type PixelFormat int

const (
	PixelFormatRGBA PixelFormat = iota
	PixelFormatRGB24
	PixelFormatYUV420P
	PixelFormatYUV422P
	PixelFormatYUV444P
	PixelFormatNV12
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatRGB24:
		return "rgb24"
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatYUV422P:
		return "yuv422p"
	case PixelFormatYUV444P:
		return "yuv444p"
	case PixelFormatNV12:
		return "nv12"
	default:
		return "unknown"
	}
}

// VideoFrame is a decoded picture. It is not modified after the decoder
// hands it over; whichever queue or stage holds the pointer owns it.
type VideoFrame struct {
	Format   PixelFormat
	Planes   [][]byte
	Strides  []int
	Width    int
	Height   int
	PTS      int64
	Duration int64
	// PixelAspect is width/height of a single pixel; 0 means square.
	PixelAspect float32
}

// Size estimates the memory held by the frame as the sum of its plane buffers.
func (f *VideoFrame) Size() int {
	n := 0
	for _, p := range f.Planes {
		n += len(p)
	}
	return n
}

// DisplayAspect returns the aspect ratio the frame should be shown at.
func (f *VideoFrame) DisplayAspect() float32 {
	if f.Height == 0 {
		return 0
	}
	par := f.PixelAspect
	if par <= 0 {
		par = 1
	}
	return float32(f.Width) / float32(f.Height) * par
}

// AudioSamples is a batch of decoded f32 samples.
type AudioSamples struct {
	// Data holds interleaved samples unless Planar is set, in which case
	// it holds SampleCount samples for channel 0, then channel 1, and so on.
	Data        []float32
	SampleCount int
	Channels    int
	SampleRate  int
	PTS         int64
	Planar      bool
}

// Duration returns the playback length of the batch in microseconds.
func (s *AudioSamples) Duration() int64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return int64(s.SampleCount) * 1_000_000 / int64(s.SampleRate)
}

// AudioFormat is the format an AudioOutput is initialized with.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// MediaInfo describes an opened source.
type MediaInfo struct {
	Source       string
	Duration     time.Duration
	Format       string
	VideoStreams []VideoStreamInfo
	AudioStreams []AudioStreamInfo
	Metadata     MediaMetadata
}

// HasVideo reports whether the source carries a video stream.
func (m *MediaInfo) HasVideo() bool { return len(m.VideoStreams) > 0 }

// HasAudio reports whether the source carries an audio stream.
func (m *MediaInfo) HasAudio() bool { return len(m.AudioStreams) > 0 }

type VideoStreamInfo struct {
	Index       int
	Codec       string
	Width       int
	Height      int
	FrameRate   float64
	PixelFormat PixelFormat
	Bitrate     int64
}

type AudioStreamInfo struct {
	Index      int
	Codec      string
	SampleRate int
	Channels   int
	Bitrate    int64
	Language   string
}

type MediaMetadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Year     int    `json:"year,omitempty"`
	TrackNum int    `json:"track_number,omitempty"`
	CoverArt []byte `json:"-"`
}
