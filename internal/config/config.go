// Package config provides configuration management for the media player using Viper.
// It supports configuration from files, environment variables, a .env file, and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jscyril/golang_media_player/api"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MEDIAPLAYER_AUDIO_DEVICE=null.
const EnvPrefix = "MEDIAPLAYER"

// Default configuration values.
const (
	defaultVolume           = 0.7
	defaultSeekStep         = 10 * time.Second
	defaultFastSeekStep     = 60 * time.Second
	defaultVolumeStep       = 0.05
	defaultSpeedStep        = 0.1
	defaultSyncThreshold    = 40 * time.Millisecond
	defaultFrameInterval    = 16 * time.Millisecond
	defaultRetryDelay       = 10 * time.Millisecond
	defaultMaxFrames        = 30
	defaultMaxBytes         = "100MiB"
	defaultVideoHighWater   = 25
	defaultDropThreshold    = 50 * time.Millisecond
	defaultTargetFPS        = 60
	defaultSampleRate       = 48000
	defaultChannels         = 2
	defaultRingBufferSize   = 8192
	defaultMinFillRatio     = 0.25
	defaultDeviceLatency    = 10 * time.Millisecond
	defaultDeviceBuffer     = 50 * time.Millisecond
	defaultRampSamples      = 512
	defaultAudioQueueSize   = 100
	defaultAudioHighWater   = 90
	defaultAdjustmentRate   = 0.001
	defaultMaxRetries       = 5
	defaultBatchFrames      = 1024
	defaultCheckpoint       = "@every 30s"
	defaultUITick           = 100 * time.Millisecond
	defaultVideoWidth       = 64
	defaultVideoHeight      = 18
	minAdjustmentRate       = 0.0001
	maxAdjustmentRate       = 0.1
	minSampleRate           = 8000
	maxSampleRate           = 192000
	minRingBufferPerChannel = 256
)

// Config holds all configuration for the application.
type Config struct {
	Player  PlayerConfig  `mapstructure:"player"`
	Video   VideoConfig   `mapstructure:"video"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	History HistoryConfig `mapstructure:"history"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PlayerConfig holds playback behavior and control steps.
type PlayerConfig struct {
	AutoPlay         bool          `mapstructure:"auto_play"`
	RememberPosition bool          `mapstructure:"remember_position"`
	LoopPlayback     bool          `mapstructure:"loop_playback"`
	DefaultVolume    float64       `mapstructure:"default_volume"`
	SeekStep         time.Duration `mapstructure:"seek_step"`
	FastSeekStep     time.Duration `mapstructure:"fast_seek_step"`
	VolumeStep       float64       `mapstructure:"volume_step"`
	SpeedStep        float64       `mapstructure:"speed_step"`
	AllowFrameDrop   bool          `mapstructure:"allow_frame_drop"`
	AVSyncThreshold  time.Duration `mapstructure:"av_sync_threshold"`
	FrameInterval    time.Duration `mapstructure:"frame_interval"`
	DecodeRetryDelay time.Duration `mapstructure:"decode_retry_delay"`
}

// VideoConfig holds frame queue and pacing configuration.
type VideoConfig struct {
	MaxFrames int `mapstructure:"max_frames"`
	// MaxBytes bounds the memory held by queued frames.
	// Supports human-readable values like "100MiB" or raw byte counts.
	MaxBytes      ByteSize      `mapstructure:"max_bytes"`
	HighWater     int           `mapstructure:"high_water"`
	DropThreshold time.Duration `mapstructure:"drop_threshold"`
	TargetFPS     float64       `mapstructure:"target_fps"`
}

// AudioConfig holds the device feed configuration.
type AudioConfig struct {
	SampleRate     int           `mapstructure:"sample_rate"`
	Channels       int           `mapstructure:"channels"`
	RingBufferSize int           `mapstructure:"ring_buffer_size"` // samples per channel
	MinFillRatio   float64       `mapstructure:"min_fill_ratio"`
	DeviceLatency  time.Duration `mapstructure:"device_latency"`
	DeviceBuffer   time.Duration `mapstructure:"device_buffer"`
	RampSamples    int           `mapstructure:"ramp_samples"`
	RampCurve      string        `mapstructure:"ramp_curve"` // linear, exponential, s-curve
	QueueSize      int           `mapstructure:"queue_size"`
	HighWater      int           `mapstructure:"high_water"`
	Device         string        `mapstructure:"device"` // speaker, null
	Normalize      bool          `mapstructure:"normalize"`
	Compress       bool          `mapstructure:"compress"`
}

// SyncConfig holds A/V sync configuration.
type SyncConfig struct {
	Mode           string  `mapstructure:"mode"` // audio-master, video-master, external-clock, free-running
	Correction     bool    `mapstructure:"correction"`
	AdjustmentRate float64 `mapstructure:"adjustment_rate"`
}

// DecoderConfig holds decoding configuration.
type DecoderConfig struct {
	HWAccel     bool `mapstructure:"hw_accel"`
	MaxRetries  int  `mapstructure:"max_retries"`
	BatchFrames int  `mapstructure:"batch_frames"`
}

// HistoryConfig holds resume-position storage configuration.
type HistoryConfig struct {
	Driver     string `mapstructure:"driver"` // json, sqlite, postgres, none
	Path       string `mapstructure:"path"`
	DSN        string `mapstructure:"dsn"`
	Checkpoint string `mapstructure:"checkpoint"` // cron spec, e.g. "@every 30s"
}

// UIConfig holds terminal UI configuration.
type UIConfig struct {
	Fullscreen  bool          `mapstructure:"fullscreen"`
	Tick        time.Duration `mapstructure:"tick"`
	VideoWidth  int           `mapstructure:"video_width"`
	VideoHeight int           `mapstructure:"video_height"`
	KeyBindings KeyMap        `mapstructure:"key_bindings"`
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	PlayPause    string `mapstructure:"play_pause"`
	Stop         string `mapstructure:"stop"`
	Next         string `mapstructure:"next"`
	Previous     string `mapstructure:"previous"`
	VolumeUp     string `mapstructure:"volume_up"`
	VolumeDown   string `mapstructure:"volume_down"`
	SeekForward  string `mapstructure:"seek_forward"`
	SeekBack     string `mapstructure:"seek_back"`
	Fullscreen   string `mapstructure:"fullscreen"`
	Mute         string `mapstructure:"mute"`
	SpeedUp      string `mapstructure:"speed_up"`
	SpeedDown    string `mapstructure:"speed_down"`
	Quit         string `mapstructure:"quit"`
	TogglePanels string `mapstructure:"toggle_panels"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`   // empty writes to stderr
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is applied first, then the config file,
// then MEDIAPLAYER_* variables, which take precedence.
// Example: MEDIAPLAYER_SYNC_MODE=video-master.
func Load(configPath string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv applies the given .env files to the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Player defaults
	v.SetDefault("player.auto_play", true)
	v.SetDefault("player.remember_position", true)
	v.SetDefault("player.loop_playback", false)
	v.SetDefault("player.default_volume", defaultVolume)
	v.SetDefault("player.seek_step", defaultSeekStep)
	v.SetDefault("player.fast_seek_step", defaultFastSeekStep)
	v.SetDefault("player.volume_step", defaultVolumeStep)
	v.SetDefault("player.speed_step", defaultSpeedStep)
	v.SetDefault("player.allow_frame_drop", true)
	v.SetDefault("player.av_sync_threshold", defaultSyncThreshold)
	v.SetDefault("player.frame_interval", defaultFrameInterval)
	v.SetDefault("player.decode_retry_delay", defaultRetryDelay)

	// Video defaults
	v.SetDefault("video.max_frames", defaultMaxFrames)
	v.SetDefault("video.max_bytes", defaultMaxBytes)
	v.SetDefault("video.high_water", defaultVideoHighWater)
	v.SetDefault("video.drop_threshold", defaultDropThreshold)
	v.SetDefault("video.target_fps", defaultTargetFPS)

	// Audio defaults
	v.SetDefault("audio.sample_rate", defaultSampleRate)
	v.SetDefault("audio.channels", defaultChannels)
	v.SetDefault("audio.ring_buffer_size", defaultRingBufferSize)
	v.SetDefault("audio.min_fill_ratio", defaultMinFillRatio)
	v.SetDefault("audio.device_latency", defaultDeviceLatency)
	v.SetDefault("audio.device_buffer", defaultDeviceBuffer)
	v.SetDefault("audio.ramp_samples", defaultRampSamples)
	v.SetDefault("audio.ramp_curve", "s-curve")
	v.SetDefault("audio.queue_size", defaultAudioQueueSize)
	v.SetDefault("audio.high_water", defaultAudioHighWater)
	v.SetDefault("audio.device", "speaker")
	v.SetDefault("audio.normalize", false)
	v.SetDefault("audio.compress", false)

	// Sync defaults
	v.SetDefault("sync.mode", api.SyncAudioMaster.String())
	v.SetDefault("sync.correction", true)
	v.SetDefault("sync.adjustment_rate", defaultAdjustmentRate)

	// Decoder defaults
	v.SetDefault("decoder.hw_accel", true)
	v.SetDefault("decoder.max_retries", defaultMaxRetries)
	v.SetDefault("decoder.batch_frames", defaultBatchFrames)

	// History defaults
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.path", filepath.Join(DataDir(), "history.db"))
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.checkpoint", defaultCheckpoint)

	// UI defaults
	v.SetDefault("ui.fullscreen", false)
	v.SetDefault("ui.tick", defaultUITick)
	v.SetDefault("ui.video_width", defaultVideoWidth)
	v.SetDefault("ui.video_height", defaultVideoHeight)
	v.SetDefault("ui.key_bindings.play_pause", " ")
	v.SetDefault("ui.key_bindings.stop", "s")
	v.SetDefault("ui.key_bindings.next", "n")
	v.SetDefault("ui.key_bindings.previous", "p")
	v.SetDefault("ui.key_bindings.volume_up", "up")
	v.SetDefault("ui.key_bindings.volume_down", "down")
	v.SetDefault("ui.key_bindings.seek_forward", "right")
	v.SetDefault("ui.key_bindings.seek_back", "left")
	v.SetDefault("ui.key_bindings.fullscreen", "f")
	v.SetDefault("ui.key_bindings.mute", "m")
	v.SetDefault("ui.key_bindings.speed_up", "+")
	v.SetDefault("ui.key_bindings.speed_down", "-")
	v.SetDefault("ui.key_bindings.quit", "q")
	v.SetDefault("ui.key_bindings.toggle_panels", "tab")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are well-formed; a failure here is a programming error.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Player validation
	if c.Player.DefaultVolume < 0 || c.Player.DefaultVolume > 1 {
		return fmt.Errorf("player.default_volume must be between 0.0 and 1.0")
	}
	if c.Player.SeekStep <= 0 || c.Player.FastSeekStep <= 0 {
		return fmt.Errorf("player.seek_step and player.fast_seek_step must be positive")
	}
	if c.Player.VolumeStep <= 0 || c.Player.VolumeStep > 1 {
		return fmt.Errorf("player.volume_step must be in (0, 1]")
	}
	if c.Player.SpeedStep <= 0 || c.Player.SpeedStep > 1 {
		return fmt.Errorf("player.speed_step must be in (0, 1]")
	}
	if c.Player.AVSyncThreshold <= time.Millisecond {
		return fmt.Errorf("player.av_sync_threshold must be greater than 1ms")
	}
	if c.Player.FrameInterval <= 0 {
		return fmt.Errorf("player.frame_interval must be positive")
	}
	if c.Player.DecodeRetryDelay < 0 {
		return fmt.Errorf("player.decode_retry_delay must not be negative")
	}

	// Video validation
	if c.Video.MaxFrames < 1 {
		return fmt.Errorf("video.max_frames must be at least 1")
	}
	if c.Video.MaxBytes < 1 {
		return fmt.Errorf("video.max_bytes must be at least 1 byte")
	}
	if c.Video.HighWater < 1 || c.Video.HighWater > c.Video.MaxFrames {
		return fmt.Errorf("video.high_water must be between 1 and video.max_frames (%d)", c.Video.MaxFrames)
	}
	if c.Video.TargetFPS <= 0 {
		return fmt.Errorf("video.target_fps must be positive")
	}
	if c.Video.DropThreshold <= 0 {
		return fmt.Errorf("video.drop_threshold must be positive")
	}

	// Audio validation
	if c.Audio.SampleRate < minSampleRate || c.Audio.SampleRate > maxSampleRate {
		return fmt.Errorf("audio.sample_rate must be between %d and %d", minSampleRate, maxSampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2")
	}
	if c.Audio.RingBufferSize < minRingBufferPerChannel {
		return fmt.Errorf("audio.ring_buffer_size must be at least %d", minRingBufferPerChannel)
	}
	if c.Audio.MinFillRatio <= 0 || c.Audio.MinFillRatio > 1 {
		return fmt.Errorf("audio.min_fill_ratio must be in (0, 1]")
	}
	if c.Audio.RampSamples < 1 {
		return fmt.Errorf("audio.ramp_samples must be at least 1")
	}
	validCurves := map[string]bool{"linear": true, "exponential": true, "s-curve": true, "scurve": true}
	if !validCurves[strings.ToLower(c.Audio.RampCurve)] {
		return fmt.Errorf("audio.ramp_curve must be one of: linear, exponential, s-curve")
	}
	if c.Audio.QueueSize < 1 {
		return fmt.Errorf("audio.queue_size must be at least 1")
	}
	if c.Audio.HighWater < 1 || c.Audio.HighWater > c.Audio.QueueSize {
		return fmt.Errorf("audio.high_water must be between 1 and audio.queue_size (%d)", c.Audio.QueueSize)
	}
	validDevices := map[string]bool{"speaker": true, "null": true}
	if !validDevices[c.Audio.Device] {
		return fmt.Errorf("audio.device must be one of: speaker, null")
	}

	// Sync validation
	if _, ok := api.ParseSyncMode(c.Sync.Mode); !ok {
		return fmt.Errorf("sync.mode must be one of: audio-master, video-master, external-clock, free-running")
	}
	if c.Sync.AdjustmentRate < minAdjustmentRate || c.Sync.AdjustmentRate > maxAdjustmentRate {
		return fmt.Errorf("sync.adjustment_rate must be between %g and %g", minAdjustmentRate, maxAdjustmentRate)
	}

	// Decoder validation
	if c.Decoder.MaxRetries < 0 {
		return fmt.Errorf("decoder.max_retries must not be negative")
	}
	if c.Decoder.BatchFrames < 1 {
		return fmt.Errorf("decoder.batch_frames must be at least 1")
	}

	// History validation
	switch c.History.Driver {
	case "none":
	case "json", "sqlite":
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the %s driver", c.History.Driver)
		}
	case "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("history.driver must be one of: json, sqlite, postgres, none")
	}

	// UI validation
	if c.UI.Tick <= 0 {
		return fmt.Errorf("ui.tick must be positive")
	}
	if c.UI.VideoWidth < 1 || c.UI.VideoHeight < 1 {
		return fmt.Errorf("ui.video_width and ui.video_height must be at least 1")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// SyncMode returns the parsed sync mode. Validate guarantees it parses.
func (c *SyncConfig) SyncMode() api.SyncMode {
	mode, _ := api.ParseSyncMode(c.Mode)
	return mode
}

// ConfigDir returns the directory searched for config.yaml
func ConfigDir() string {
	// Check environment variable first
	if dir := os.Getenv("MEDIAPLAYER_CONFIG_DIR"); dir != "" {
		return dir
	}

	// Use XDG config directory if available
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mediaplayer")
	}

	// Fall back to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mediaplayer")
}

// DataDir returns the directory holding playback history
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "mediaplayer")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "mediaplayer")
}
