// Package ui is the terminal front end: a bubbletea program that turns key,
// mouse and resize messages into api.WindowEvents and draws the video area
// with the playback status underneath.
package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/config"
	"github.com/jscyril/golang_media_player/internal/player"
	"github.com/jscyril/golang_media_player/internal/ui/views"
)

// Ensure Window implements api.Window at compile time
var _ api.Window = (*Window)(nil)

const (
	eventBuffer   = 64
	playlistWidth = 36
	// statusRows is the height of the status block below the video.
	statusRows = 6
)

// Source supplies the state shown in the status view.
type Source interface {
	Snapshot() player.Snapshot
}

// VideoView supplies the rendered picture.
type VideoView interface {
	View() string
}

// Window runs the bubbletea program and exposes its input as a WindowEvent stream.
type Window struct {
	cfg     config.UIConfig
	logger  *slog.Logger
	events  chan api.WindowEvent
	program *tea.Program

	mu         sync.Mutex
	started    bool
	closed     bool
	fullscreen bool
}

// NewWindow builds the program. Extra options are passed to bubbletea.
func NewWindow(cfg config.UIConfig, src Source, video VideoView, logger *slog.Logger, opts ...tea.ProgramOption) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Window{
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "ui")),
		events:     make(chan api.WindowEvent, eventBuffer),
		fullscreen: cfg.Fullscreen,
	}
	opts = append([]tea.ProgramOption{tea.WithMouseCellMotion()}, opts...)
	w.program = tea.NewProgram(newModel(w, src, video), opts...)
	return w
}

// Events returns the input stream. It is closed when the program exits.
func (w *Window) Events() <-chan api.WindowEvent { return w.events }

// SetFullscreen switches the alternate screen and hides the side panels.
func (w *Window) SetFullscreen(fullscreen bool) error {
	w.mu.Lock()
	w.fullscreen = fullscreen
	running := w.started && !w.closed
	w.mu.Unlock()
	if running {
		w.program.Send(fullscreenMsg(fullscreen))
	}
	return nil
}

// Close asks the program to exit.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	running := w.started
	w.mu.Unlock()
	if running {
		w.program.Quit()
	}
	return nil
}

// Run blocks until the program exits, Close is called or ctx is done.
func (w *Window) Run(ctx context.Context) error {
	defer close(w.events)

	stop := context.AfterFunc(ctx, func() { _ = w.Close() })
	defer stop()

	_, err := w.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// emit never blocks the program loop; events are dropped when the reader lags.
func (w *Window) emit(ev api.WindowEvent) {
	select {
	case w.events <- ev:
	default:
		w.logger.Debug("window event dropped", slog.Int("type", int(ev.Type)))
	}
}

// start marks the program as running and reports whether it should quit at once.
func (w *Window) start() (fullscreen, quit bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	return w.fullscreen, w.closed
}

type tickMsg time.Time

type fullscreenMsg bool

// Model is the bubbletea model behind Window.
type Model struct {
	w     *Window
	src   Source
	video VideoView
	keys  map[string]api.WindowEvent
	quit  map[string]bool

	width      int
	height     int
	fullscreen bool
	showPanels bool

	playerView   views.PlayerView
	playlistView views.PlaylistView
}

func newModel(w *Window, src Source, video VideoView) Model {
	width := w.cfg.VideoWidth + playlistWidth
	height := w.cfg.VideoHeight + statusRows
	m := Model{
		w:            w,
		src:          src,
		video:        video,
		keys:         bindings(w.cfg.KeyBindings),
		quit:         map[string]bool{"ctrl+c": true},
		width:        width,
		height:       height,
		fullscreen:   w.cfg.Fullscreen,
		showPanels:   true,
		playerView:   views.NewPlayerView(w.cfg.VideoWidth),
		playlistView: views.NewPlaylistView(playlistWidth, w.cfg.VideoHeight),
	}
	if q := w.cfg.KeyBindings.Quit; q != "" {
		m.quit[q] = true
	}
	return m
}

// bindings maps bubbletea key names to the events the player understands.
// Configured keys are applied last so they win over the fixed ones.
func bindings(km config.KeyMap) map[string]api.WindowEvent {
	press := func(k api.Key) api.WindowEvent {
		return api.WindowEvent{Type: api.WindowKeyPressed, Key: k}
	}
	m := map[string]api.WindowEvent{
		"esc":    press(api.KeyEscape),
		"enter":  press(api.KeyEnter),
		"f11":    press(api.KeyF11),
		"pgup":   press(api.KeyPageUp),
		"pgdown": press(api.KeyPageDown),
		"home":   press(api.KeyHome),
		"=":      press(api.KeyPlus),
		"r":      press(api.KeyR),
		"z":      press(api.KeyZ),
		"ctrl+q": {Type: api.WindowKeyPressed, Key: api.KeyQ, Mods: api.Modifiers{Ctrl: true}},
	}
	for name, k := range map[string]api.Key{
		km.PlayPause:   api.KeySpace,
		km.Stop:        api.KeyS,
		km.Next:        api.KeyN,
		km.Previous:    api.KeyP,
		km.VolumeUp:    api.KeyUp,
		km.VolumeDown:  api.KeyDown,
		km.SeekForward: api.KeyRight,
		km.SeekBack:    api.KeyLeft,
		km.Fullscreen:  api.KeyF,
		km.Mute:        api.KeyM,
		km.SpeedUp:     api.KeyPlus,
		km.SpeedDown:   api.KeyMinus,
	} {
		if name != "" {
			m[name] = press(k)
		}
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	fullscreen, quit := m.w.start()
	if quit {
		return tea.Quit
	}
	cmds := []tea.Cmd{m.tick()}
	if fullscreen {
		cmds = append(cmds, func() tea.Msg { return fullscreenMsg(true) })
	}
	return tea.Batch(cmds...)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.w.cfg.Tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case fullscreenMsg:
		m.fullscreen = bool(msg)
		m.layout()
		if m.fullscreen {
			return m, tea.EnterAltScreen
		}
		return m, tea.ExitAltScreen

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			break
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.w.emit(api.WindowEvent{Type: api.WindowMouseWheel, Delta: 1})
		case tea.MouseButtonWheelDown:
			m.w.emit(api.WindowEvent{Type: api.WindowMouseWheel, Delta: -1})
		}

	case tea.KeyMsg:
		// Terminals deliver dropped files as a bracketed paste of their paths.
		if msg.Paste {
			if paths := ParseDropped(string(msg.Runes)); len(paths) > 0 {
				m.w.emit(api.WindowEvent{Type: api.WindowFilesDropped, Paths: paths})
			}
			break
		}
		key := msg.String()
		switch {
		case m.quit[key]:
			m.w.emit(api.WindowEvent{Type: api.WindowCloseRequested})
		case key == m.w.cfg.KeyBindings.TogglePanels:
			m.showPanels = !m.showPanels
			m.layout()
		default:
			if ev, ok := m.keys[key]; ok {
				m.w.emit(ev)
			}
		}
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.src == nil {
		return
	}
	s := m.src.Snapshot()
	m.playerView.SetSnapshot(s)
	m.playlistView.SetItems(s.Playlist, s.Index)
}

func (m Model) panelsVisible() bool {
	return m.showPanels && !m.fullscreen
}

// videoSize is the cell grid left for the picture once the panels are placed.
func (m Model) videoSize() (int, int) {
	cols, rows := m.width, m.height-1
	if m.panelsVisible() {
		rows = m.height - statusRows
		if m.width-playlistWidth >= playlistWidth {
			cols = m.width - playlistWidth
		}
	}
	return max(cols, 1), max(rows, 1)
}

// layout resizes the views and tells the player about the new video area.
func (m *Model) layout() {
	cols, rows := m.videoSize()
	m.playerView.SetWidth(m.width)
	m.playlistView.Width = playlistWidth
	m.playlistView.Height = rows
	m.w.emit(api.WindowEvent{Type: api.WindowResized, Width: cols, Height: rows})
}

// View renders the UI
func (m Model) View() string {
	video := ""
	if m.video != nil {
		video = m.video.View()
	}
	cols, rows := m.videoSize()
	video = lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, video)

	if !m.panelsVisible() {
		return video + "\n" + m.playerView.ProgressBar.View()
	}

	top := video
	if cols < m.width {
		top = lipgloss.JoinHorizontal(lipgloss.Top, video, m.playlistView.View())
	}
	return strings.Join([]string{top, m.playerView.View(), m.playerView.Controls()}, "\n")
}

// ParseDropped splits pasted text into paths. Quoted paths, backslash escapes
// and file:// URLs are accepted.
func ParseDropped(text string) []string {
	var (
		paths []string
		cur   strings.Builder
		quote rune
		esc   bool
		have  bool
	)
	flush := func() {
		if have {
			p := strings.TrimPrefix(cur.String(), "file://")
			if p != "" {
				paths = append(paths, p)
			}
		}
		cur.Reset()
		have = false
	}
	for _, r := range text {
		switch {
		case esc:
			cur.WriteRune(r)
			esc = false
		case r == '\\' && quote != '\'':
			esc = true
			have = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			have = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	flush()
	return paths
}
