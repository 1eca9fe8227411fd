// Package main is the entry point for the media player.
//
// The player decodes a local file or synthetic source, keeps audio and video
// in sync and draws the picture in the terminal.
package main

import (
	"os"

	"github.com/jscyril/golang_media_player/cmd/player/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
