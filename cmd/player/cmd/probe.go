package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/decoder"
	"github.com/jscyril/golang_media_player/internal/observability"
	"github.com/jscyril/golang_media_player/internal/ui/components"
	"github.com/spf13/cobra"
)

// probeCmd opens a source and prints what the decoder reports about it.
var probeCmd = &cobra.Command{
	Use:   "probe <source>",
	Short: "Print stream information for a source",
	Long: `Open a source with the player's decoder and print its duration,
streams and tags without playing it.

Examples:
  player probe ~/Music/track.flac
  player probe --json "testsrc://bars?duration=5s&fps=25"`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().Bool("json", false, "print JSON")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Logging)

	dec, info, err := decoder.Open(args[0], decoder.Options{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		BatchFrames: cfg.Decoder.BatchFrames,
		HWAccel:     cfg.Decoder.HWAccel,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer dec.Close()

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	return printMediaInfo(cmd.OutOrStdout(), info)
}

func printMediaInfo(w io.Writer, info *api.MediaInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Source:\t%s\n", info.Source)
	fmt.Fprintf(tw, "Format:\t%s\n", info.Format)
	fmt.Fprintf(tw, "Duration:\t%s\n", components.FormatDuration(info.Duration))

	m := info.Metadata
	for _, tag := range []struct{ name, value string }{
		{"Title", m.Title},
		{"Artist", m.Artist},
		{"Album", m.Album},
		{"Genre", m.Genre},
	} {
		if tag.value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", tag.name, tag.value)
		}
	}
	if m.Year > 0 {
		fmt.Fprintf(tw, "Year:\t%d\n", m.Year)
	}

	for _, v := range info.VideoStreams {
		fmt.Fprintf(tw, "Video #%d:\t%s %dx%d %.3g fps %s\n", v.Index, v.Codec, v.Width, v.Height, v.FrameRate, v.PixelFormat)
	}
	for _, a := range info.AudioStreams {
		fmt.Fprintf(tw, "Audio #%d:\t%s %d Hz, %d ch\n", a.Index, a.Codec, a.SampleRate, a.Channels)
	}
	return tw.Flush()
}
