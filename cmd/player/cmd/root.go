// Package cmd implements the CLI commands for the media player.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jscyril/golang_media_player/internal/config"
	"github.com/spf13/cobra"
)

// rootCmd plays the sources given as arguments.
var rootCmd = &cobra.Command{
	Use:   "player [source...]",
	Short: "Terminal media player with audio/video sync",
	Long: `player decodes media files and plays them with the video drawn in the
terminal and the audio on the default sound device.

Sources may be files, directories (scanned for supported media) or
synthetic test sources such as testsrc://bars?duration=10s.

Configuration is read from config.yaml in the working directory or the
user config directory, then from MEDIAPLAYER_* environment variables.
Flags override both.

Examples:
  # Play a file
  player ~/Videos/clip.wav

  # Play a directory without the UI, video clock as master
  player --headless --sync-mode video-master ~/Music/album`,
	Version:       Version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPlay,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./config.yaml or the user config directory)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")

	f := rootCmd.Flags()
	f.Bool("fullscreen", false, "start fullscreen")
	f.Int("volume", 0, "initial volume, 0-100")
	f.Bool("no-hw-accel", false, "disable hardware decoding")
	f.Bool("headless", false, "play without the terminal UI")
	f.String("sync-mode", "", "clock master (audio-master, video-master, external-clock, free-running)")
}

// loadConfig reads the configuration and applies the flags that were set.
// With tui set, logs go to a file unless one is configured.
func loadConfig(cmd *cobra.Command, tui bool) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("fullscreen") {
		cfg.UI.Fullscreen, _ = flags.GetBool("fullscreen")
	}
	if flags.Changed("volume") {
		v, _ := flags.GetInt("volume")
		if v < 0 || v > 100 {
			return nil, errors.New("--volume must be between 0 and 100")
		}
		cfg.Player.DefaultVolume = float64(v) / 100
	}
	if flags.Changed("no-hw-accel") {
		off, _ := flags.GetBool("no-hw-accel")
		cfg.Decoder.HWAccel = !off
	}
	if flags.Changed("sync-mode") {
		cfg.Sync.Mode, _ = flags.GetString("sync-mode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}

	// The terminal belongs to the UI; keep log lines out of it.
	if tui && cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(config.DataDir(), "player.log")
	}
	return cfg, nil
}
