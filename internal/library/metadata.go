package library

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dhowden/tag"
	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
)

// MetadataReader extracts metadata from audio files
type MetadataReader struct{}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader() *MetadataReader {
	return &MetadataReader{}
}

// Read extracts metadata from a media file and returns a playlist item
func (r *MetadataReader) Read(filePath string) (*api.PlaylistItem, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	item := &api.PlaylistItem{
		ID:     SourceID(filePath),
		Source: filePath,
		Title:  filepath.Base(filePath),
	}

	// Untagged files still play; they just keep the file name as title
	if meta, err := readTags(file); err == nil {
		item.Metadata = meta
		item.Title = getOrDefault(meta.Title, item.Title)
	}

	if _, err := file.Seek(0, io.SeekStart); err == nil {
		item.Duration = probeDuration(file, filePath)
	}
	return item, nil
}

// ReadMetadata returns the tag metadata of a file, cover art included
func (r *MetadataReader) ReadMetadata(filePath string) (*api.MediaMetadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	meta, err := readTags(file)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return meta, nil
}

// ReadCoverArt extracts cover art from an audio file
func (r *MetadataReader) ReadCoverArt(filePath string) ([]byte, error) {
	meta, err := r.ReadMetadata(filePath)
	if err != nil {
		return nil, err
	}
	return meta.CoverArt, nil
}

func readTags(rs io.ReadSeeker) (*api.MediaMetadata, error) {
	m, err := tag.ReadFrom(rs)
	if err != nil {
		return nil, err
	}

	meta := &api.MediaMetadata{
		Title:  m.Title(),
		Artist: getOrDefault(m.Artist(), "Unknown Artist"),
		Album:  getOrDefault(m.Album(), "Unknown Album"),
		Genre:  m.Genre(),
		Year:   m.Year(),
	}
	meta.TrackNum, _ = m.Track()
	if picture := m.Picture(); picture != nil {
		meta.CoverArt = picture.Data
	}
	return meta, nil
}

// probeDuration decodes just the stream header to learn the length.
// Returns 0 when the format does not report one.
func probeDuration(file *os.File, filePath string) time.Duration {
	streamer, format, err := audio.DecodeAudio(nopCloser{file}, filePath)
	if err != nil {
		return 0
	}
	defer streamer.Close()
	if n := streamer.Len(); n > 0 {
		return format.SampleRate.D(n)
	}
	return 0
}

// nopCloser keeps the decoder from closing a file the caller owns
type nopCloser struct{ io.ReadSeeker }

func (nopCloser) Close() error { return nil }

// SourceID creates a stable ID for a media source based on its path or URL
func SourceID(source string) string {
	hash := md5.Sum([]byte(source))
	return fmt.Sprintf("media-%x", hash[:8])
}

// getOrDefault returns the value if non-empty, otherwise returns the default
func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
