package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jscyril/golang_media_player/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MEDIAPLAYER_CONFIG_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Player defaults
	assert.True(t, cfg.Player.AutoPlay)
	assert.True(t, cfg.Player.RememberPosition)
	assert.InDelta(t, 0.7, cfg.Player.DefaultVolume, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Player.SeekStep)
	assert.Equal(t, 60*time.Second, cfg.Player.FastSeekStep)
	assert.Equal(t, 40*time.Millisecond, cfg.Player.AVSyncThreshold)

	// Video defaults
	assert.Equal(t, 30, cfg.Video.MaxFrames)
	assert.Equal(t, int64(100*1024*1024), cfg.Video.MaxBytes.Bytes())
	assert.Equal(t, 25, cfg.Video.HighWater)
	assert.Equal(t, 50*time.Millisecond, cfg.Video.DropThreshold)

	// Audio defaults
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.Equal(t, 8192, cfg.Audio.RingBufferSize)
	assert.InDelta(t, 0.25, cfg.Audio.MinFillRatio, 1e-9)
	assert.Equal(t, "s-curve", cfg.Audio.RampCurve)
	assert.Equal(t, "speaker", cfg.Audio.Device)

	// Sync defaults
	assert.Equal(t, api.SyncAudioMaster, cfg.Sync.SyncMode())
	assert.True(t, cfg.Sync.Correction)

	// Decoder and history defaults
	assert.True(t, cfg.Decoder.HWAccel)
	assert.Equal(t, 5, cfg.Decoder.MaxRetries)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, "@every 30s", cfg.History.Checkpoint)

	// UI and logging defaults
	assert.Equal(t, " ", cfg.UI.KeyBindings.PlayPause)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
player:
  default_volume: 0.4
  seek_step: 5s
video:
  max_frames: 12
  high_water: 10
  max_bytes: 64MiB
audio:
  device: "null"
  ramp_curve: linear
sync:
  mode: video-master
history:
  driver: json
  path: /tmp/history.json
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.4, cfg.Player.DefaultVolume, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Player.SeekStep)
	assert.Equal(t, 12, cfg.Video.MaxFrames)
	assert.Equal(t, int64(64*1024*1024), cfg.Video.MaxBytes.Bytes())
	assert.Equal(t, "null", cfg.Audio.Device)
	assert.Equal(t, api.SyncVideoMaster, cfg.Sync.SyncMode())
	assert.Equal(t, "json", cfg.History.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEDIAPLAYER_CONFIG_DIR", t.TempDir())
	t.Setenv("MEDIAPLAYER_AUDIO_DEVICE", "null")
	t.Setenv("MEDIAPLAYER_SYNC_MODE", "free-running")
	t.Setenv("MEDIAPLAYER_PLAYER_SEEK_STEP", "3s")
	t.Setenv("MEDIAPLAYER_VIDEO_MAX_BYTES", "8MB")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "null", cfg.Audio.Device)
	assert.Equal(t, api.SyncFreeRunning, cfg.Sync.SyncMode())
	assert.Equal(t, 3*time.Second, cfg.Player.SeekStep)
	assert.Equal(t, int64(8_000_000), cfg.Video.MaxBytes.Bytes())
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("player: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  channels: 6\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio.channels")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"volume above one", func(c *Config) { c.Player.DefaultVolume = 1.5 }, "player.default_volume"},
		{"zero seek step", func(c *Config) { c.Player.SeekStep = 0 }, "player.seek_step"},
		{"tiny sync threshold", func(c *Config) { c.Player.AVSyncThreshold = time.Millisecond }, "player.av_sync_threshold"},
		{"no frames", func(c *Config) { c.Video.MaxFrames = 0 }, "video.max_frames"},
		{"high water over max", func(c *Config) { c.Video.HighWater = 31 }, "video.high_water"},
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "audio.sample_rate"},
		{"small ring", func(c *Config) { c.Audio.RingBufferSize = 16 }, "audio.ring_buffer_size"},
		{"zero fill ratio", func(c *Config) { c.Audio.MinFillRatio = 0 }, "audio.min_fill_ratio"},
		{"unknown curve", func(c *Config) { c.Audio.RampCurve = "cubic" }, "audio.ramp_curve"},
		{"unknown device", func(c *Config) { c.Audio.Device = "alsa" }, "audio.device"},
		{"unknown sync mode", func(c *Config) { c.Sync.Mode = "audio" }, "sync.mode"},
		{"adjustment too fast", func(c *Config) { c.Sync.AdjustmentRate = 0.5 }, "sync.adjustment_rate"},
		{"negative retries", func(c *Config) { c.Decoder.MaxRetries = -1 }, "decoder.max_retries"},
		{"postgres without dsn", func(c *Config) { c.History.Driver = "postgres" }, "history.dsn"},
		{"unknown history driver", func(c *Config) { c.History.Driver = "redis" }, "history.driver"},
		{"history disabled", func(c *Config) { c.History.Driver = "none"; c.History.Path = "" }, ""},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"100MiB", 100 * 1024 * 1024},
		{"5MB", 5_000_000},
		{"1.5 GiB", 1536 * 1024 * 1024},
		{"4096", 4096},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := ParseByteSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Bytes())
		})
	}

	_, err := ParseByteSize("lots")
	assert.Error(t, err)

	assert.Equal(t, "100 MiB", ByteSize(100*1024*1024).String())

	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("2KiB")))
	assert.Equal(t, ByteSize(2048), b)
	text, err := b.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2.0 KiB", string(text))
}

func TestLoadDotEnv(t *testing.T) {
	const key = "MEDIAPLAYER_TEST_DOTENV"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o644))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestDirs(t *testing.T) {
	t.Setenv("MEDIAPLAYER_CONFIG_DIR", "/etc/mp")
	assert.Equal(t, "/etc/mp", ConfigDir())

	t.Setenv("MEDIAPLAYER_CONFIG_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	assert.Equal(t, "/xdg/config/mediaplayer", ConfigDir())

	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	assert.Equal(t, "/xdg/data/mediaplayer", DataDir())
}
