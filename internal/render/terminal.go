// Package render presents decoded video frames.
package render

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/golang_media_player/api"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
	"golang.org/x/image/draw"
)

// Ensure TerminalRenderer implements Renderer at compile time
var _ api.Renderer = (*TerminalRenderer)(nil)

const (
	DefaultCols = 64
	DefaultRows = 18
)

// upperHalf paints the top pixel as foreground and the bottom as background,
// so each terminal cell shows two square-ish pixels.
const upperHalf = "▀"

// TerminalRenderer draws frames as colored half-block characters. The render
// loop calls RenderFrame and Present; the UI reads the result through View.
type TerminalRenderer struct {
	logger *slog.Logger

	mu          sync.Mutex
	cols        int
	rows        int
	aspect      float32 // 0 follows the frame
	pending     image.Image
	pendingPTS  int64
	frameAspect float32
	canvas      *image.RGBA
	view        string

	rendered  uint64
	presented uint64
	lastPTS   int64
}

func NewTerminalRenderer(cols, rows int, logger *slog.Logger) *TerminalRenderer {
	if cols <= 0 {
		cols = DefaultCols
	}
	if rows <= 0 {
		rows = DefaultRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TerminalRenderer{
		logger: logger.With(slog.String("component", "renderer")),
		cols:   cols,
		rows:   rows,
		canvas: image.NewRGBA(image.Rect(0, 0, cols, rows*2)),
	}
}

// RenderFrame converts the frame and holds it until Present.
func (r *TerminalRenderer) RenderFrame(frame *api.VideoFrame) error {
	img, err := FrameImage(frame)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.pending = img
	r.pendingPTS = frame.PTS
	r.frameAspect = frame.DisplayAspect()
	r.rendered++
	r.mu.Unlock()
	return nil
}

// Present scales the pending frame onto the cell grid, letterboxed to the
// display aspect, and rebuilds the view.
func (r *TerminalRenderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		return nil
	}

	aspect := r.aspect
	if aspect <= 0 {
		aspect = r.frameAspect
	}
	draw.Draw(r.canvas, r.canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	dst := fitRect(r.canvas.Bounds(), aspect)
	draw.ApproxBiLinear.Scale(r.canvas, dst, r.pending, r.pending.Bounds(), draw.Src, nil)

	r.view = paint(r.canvas, r.cols, r.rows)
	r.lastPTS = r.pendingPTS
	r.pending = nil
	r.presented++
	return nil
}

// SetAspectRatio forces a display aspect; 0 restores the frame's own.
func (r *TerminalRenderer) SetAspectRatio(ratio float32) error {
	if ratio < 0 {
		return playerrors.NewPlayerError("set_aspect", playerrors.KindInvalidInput, "",
			fmt.Errorf("aspect ratio %v is negative", ratio))
	}
	r.mu.Lock()
	r.aspect = ratio
	r.mu.Unlock()
	return nil
}

// Resize changes the cell grid. The next Present draws at the new size.
func (r *TerminalRenderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return playerrors.NewPlayerError("resize", playerrors.KindInvalidInput, "",
			fmt.Errorf("invalid size %dx%d", width, height))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.cols && height == r.rows {
		return nil
	}
	r.cols = width
	r.rows = height
	r.canvas = image.NewRGBA(image.Rect(0, 0, width, height*2))
	r.view = ""
	r.logger.Debug("renderer resized", slog.Int("cols", width), slog.Int("rows", height))
	return nil
}

// View returns the most recently presented picture.
func (r *TerminalRenderer) View() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Size returns the grid in cells.
func (r *TerminalRenderer) Size() (cols, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cols, r.rows
}

// Canvas returns a copy of the pixel canvas behind the view.
func (r *TerminalRenderer) Canvas() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := image.NewRGBA(r.canvas.Bounds())
	copy(c.Pix, r.canvas.Pix)
	return c
}

// Counters returns frames accepted, frames presented and the last presented PTS.
func (r *TerminalRenderer) Counters() (rendered, presented uint64, lastPTS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered, r.presented, r.lastPTS
}

// fitRect centers the largest rectangle of the given aspect inside bounds.
func fitRect(bounds image.Rectangle, aspect float32) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	if aspect <= 0 || w == 0 || h == 0 {
		return bounds
	}
	if float32(w)/float32(h) > aspect {
		fw := int(float32(h)*aspect + 0.5)
		x := (w - fw) / 2
		return image.Rect(x, 0, x+fw, h)
	}
	fh := int(float32(w)/aspect + 0.5)
	y := (h - fh) / 2
	return image.Rect(0, y, w, y+fh)
}

func paint(canvas *image.RGBA, cols, rows int) string {
	var sb strings.Builder
	styles := make(map[[2]color.RGBA]lipgloss.Style)
	for y := 0; y < rows; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < cols; x++ {
			key := [2]color.RGBA{canvas.RGBAAt(x, 2*y), canvas.RGBAAt(x, 2*y+1)}
			style, ok := styles[key]
			if !ok {
				style = lipgloss.NewStyle().
					Foreground(lipgloss.Color(hex(key[0]))).
					Background(lipgloss.Color(hex(key[1])))
				styles[key] = style
			}
			sb.WriteString(style.Render(upperHalf))
		}
	}
	return sb.String()
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
