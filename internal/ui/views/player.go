package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/player"
	"github.com/jscyril/golang_media_player/internal/ui/components"
)

// PlayerView displays the current playback state under the video area.
type PlayerView struct {
	Width       int
	Snapshot    player.Snapshot
	ShowStats   bool
	ProgressBar components.ProgressBar

	// Styles
	TitleStyle    lipgloss.Style
	StatusStyle   lipgloss.Style
	DimStyle      lipgloss.Style
	WarnStyle     lipgloss.Style
	ErrorStyle    lipgloss.Style
	ControlsStyle lipgloss.Style
	GaugeOn       lipgloss.Style
	GaugeOff      lipgloss.Style
}

// NewPlayerView creates a new player view
func NewPlayerView(width int) PlayerView {
	return PlayerView{
		Width:       width,
		ShowStats:   true,
		ProgressBar: components.NewProgressBar(width),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		StatusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		DimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		WarnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		ErrorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		ControlsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		GaugeOn:  lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		GaugeOff: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetSnapshot updates the displayed state
func (v *PlayerView) SetSnapshot(s player.Snapshot) {
	v.Snapshot = s
	v.ProgressBar.SetProgress(s.Position, s.Duration)
}

// SetWidth resizes the view and its progress bar.
func (v *PlayerView) SetWidth(width int) {
	v.Width = width
	v.ProgressBar.Width = width
}

// View renders the player view
func (v PlayerView) View() string {
	s := v.Snapshot
	var sb strings.Builder

	if s.Item == nil {
		sb.WriteString(v.TitleStyle.Render("No media loaded"))
		sb.WriteString("\n")
		sb.WriteString(v.ControlsStyle.Render("Pass a file or directory on the command line, or paste a path"))
		return sb.String()
	}

	sb.WriteString(v.StatusStyle.Render(stateIcon(s.State) + " "))
	sb.WriteString(v.TitleStyle.Render(s.Item.DisplayName()))
	if s.State == api.StateBuffering {
		sb.WriteString(v.WarnStyle.Render(fmt.Sprintf("  buffering %d%%", int(s.Stats.BufferHealth*100))))
	}
	sb.WriteString("\n")
	sb.WriteString(v.ProgressBar.View())
	sb.WriteString("\n")

	vol := fmt.Sprintf("%d%%", int(s.Volume*100+0.5))
	if s.Muted {
		vol = "muted"
	}
	line := []string{
		"Vol " + components.Gauge(float64(s.Volume), 10, v.GaugeOn, v.GaugeOff) + " " + vol,
		strconv.FormatFloat(s.Speed, 'f', -1, 64) + "x",
		s.SyncMode.String(),
	}
	if s.Repeat != api.RepeatNone {
		line = append(line, "repeat "+s.Repeat.String())
	}
	if s.Shuffled {
		line = append(line, "shuffle")
	}
	sb.WriteString(v.DimStyle.Render(strings.Join(line, "  ")))

	if v.ShowStats {
		sb.WriteString("\n")
		sb.WriteString(v.DimStyle.Render(statsLine(s.Stats)))
	}
	if s.Err != nil {
		sb.WriteString("\n")
		sb.WriteString(v.ErrorStyle.Render("Error: " + s.Err.Error()))
	}
	return sb.String()
}

// Controls renders the key help line.
func (v PlayerView) Controls() string {
	return v.ControlsStyle.Render(
		"[Space] Play/Pause  [s] Stop  [←/→] Seek  [↑/↓] Volume  [+/-] Speed  [f] Fullscreen  [n/p] Next/Prev  [q] Quit",
	)
}

func statsLine(st api.PlaybackStats) string {
	parts := []string{
		fmt.Sprintf("frames %d", st.FramesRendered),
		fmt.Sprintf("drop %d", st.FramesDropped),
		fmt.Sprintf("rep %d", st.FramesRepeated),
		"a/v " + components.FormatSyncError(st.SyncError),
		fmt.Sprintf("q %d/%d", st.VideoQueueDepth, st.AudioQueueDepth),
	}
	if st.AudioUnderruns > 0 {
		parts = append(parts, fmt.Sprintf("underruns %d", st.AudioUnderruns))
	}
	if st.MemoryUsage > 0 {
		parts = append(parts, fmt.Sprintf("cpu %.0f%%", st.CPUUsage), "rss "+components.FormatBytes(st.MemoryUsage))
	}
	return strings.Join(parts, "  ")
}

func stateIcon(s api.PlaybackState) string {
	switch s {
	case api.StatePlaying:
		return "▶"
	case api.StatePaused:
		return "⏸"
	case api.StateBuffering, api.StateSeeking:
		return "…"
	case api.StateEnded:
		return "■"
	case api.StateError:
		return "✖"
	default:
		return "⏹"
	}
}
