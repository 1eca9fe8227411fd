package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/ui/components"
)

// PlaylistView lists the queued items around the current one.
type PlaylistView struct {
	Width   int
	Height  int
	Items   []*api.PlaylistItem
	Current int

	BorderStyle   lipgloss.Style
	TitleStyle    lipgloss.Style
	CurrentStyle  lipgloss.Style
	NormalStyle   lipgloss.Style
	DurationStyle lipgloss.Style
}

// NewPlaylistView creates a new playlist view
func NewPlaylistView(width, height int) PlaylistView {
	return PlaylistView{
		Width:   width,
		Height:  height,
		Current: -1,
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		CurrentStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Bold(true),
		NormalStyle:   lipgloss.NewStyle(),
		DurationStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetItems sets the playlist contents and the current index.
func (v *PlaylistView) SetItems(items []*api.PlaylistItem, current int) {
	v.Items = items
	v.Current = current
}

// window returns the slice bounds of the rows that fit, keeping the current
// item visible.
func (v PlaylistView) window() (int, int) {
	rows := max(v.Height-4, 1)
	n := len(v.Items)
	if n <= rows {
		return 0, n
	}
	start := max(v.Current-rows/2, 0)
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}

// View renders the playlist view
func (v PlaylistView) View() string {
	var sb strings.Builder
	sb.WriteString(v.TitleStyle.Render(fmt.Sprintf("Playlist (%d)", len(v.Items))))
	sb.WriteString("\n")

	if len(v.Items) == 0 {
		sb.WriteString(v.DurationStyle.Render("Empty"))
		return v.BorderStyle.Width(max(v.Width-2, 10)).Render(sb.String())
	}

	inner := max(v.Width-4, 10)
	start, end := v.window()
	for i := start; i < end; i++ {
		item := v.Items[i]
		dur := ""
		if item.Duration > 0 {
			dur = " " + components.FormatDuration(item.Duration)
		}
		name := truncate(fmt.Sprintf("%d. %s", i+1, item.DisplayName()), inner-lipgloss.Width(dur))

		style := v.NormalStyle
		if i == v.Current {
			style = v.CurrentStyle
		}
		sb.WriteString(style.Render(name))
		sb.WriteString(v.DurationStyle.Render(dur))
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return v.BorderStyle.Width(max(v.Width-2, 10)).Render(sb.String())
}

func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
