package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// ProgressBar shows the playback position against the media duration.
type ProgressBar struct {
	Width       int
	Current     time.Duration
	Total       time.Duration
	BarChar     string
	EmptyChar   string
	ShowTime    bool
	Style       lipgloss.Style
	FilledStyle lipgloss.Style
	EmptyStyle  lipgloss.Style
}

// NewProgressBar creates a new progress bar
func NewProgressBar(width int) ProgressBar {
	return ProgressBar{
		Width:       width,
		BarChar:     "█",
		EmptyChar:   "░",
		ShowTime:    true,
		Style:       lipgloss.NewStyle(),
		FilledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		EmptyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetProgress sets the current position
func (p *ProgressBar) SetProgress(current, total time.Duration) {
	p.Current = current
	p.Total = total
}

// Percent returns the played fraction in [0, 1].
func (p ProgressBar) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return clamp01(float64(p.Current) / float64(p.Total))
}

// View renders the progress bar
func (p ProgressBar) View() string {
	var sb strings.Builder

	timeText := ""
	if p.ShowTime {
		timeText = " " + FormatDuration(p.Current) + "/" + FormatDuration(p.Total)
	}

	barWidth := max(p.Width-lipgloss.Width(timeText), 10)
	filled := int(float64(barWidth) * p.Percent())

	sb.WriteString(p.FilledStyle.Render(strings.Repeat(p.BarChar, filled)))
	sb.WriteString(p.EmptyStyle.Render(strings.Repeat(p.EmptyChar, barWidth-filled)))
	sb.WriteString(timeText)

	return p.Style.Render(sb.String())
}

// Gauge renders a fraction as a short bar of cells, used for volume and
// buffer health.
func Gauge(fraction float64, cells int, on, off lipgloss.Style) string {
	if cells <= 0 {
		return ""
	}
	filled := int(clamp01(fraction)*float64(cells) + 0.5)
	return on.Render(strings.Repeat("●", filled)) + off.Render(strings.Repeat("○", cells-filled))
}

// FormatDuration formats a duration as MM:SS, or H:MM:SS past an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatBytes renders a memory figure such as "42 MiB".
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}

// FormatSyncError renders a signed microsecond offset in milliseconds.
func FormatSyncError(us int64) string {
	return fmt.Sprintf("%+.1fms", float64(us)/1000)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
