package ui

import (
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/config"
	"github.com/jscyril/golang_media_player/internal/observability"
	"github.com/jscyril/golang_media_player/internal/player"
)

type staticSource struct{ snap player.Snapshot }

func (s staticSource) Snapshot() player.Snapshot { return s.snap }

type staticVideo string

func (v staticVideo) View() string { return string(v) }

func testWindow(t *testing.T, src Source) *Window {
	t.Helper()
	cfg := config.Default().UI
	return NewWindow(cfg, src, staticVideo("VIDEO"), observability.NewNopLogger(),
		tea.WithInput(nil), tea.WithOutput(io.Discard))
}

func drain(w *Window) []api.WindowEvent {
	var out []api.WindowEvent
	for {
		select {
		case ev := <-w.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "pgup":
		return tea.KeyMsg{Type: tea.KeyPgUp}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+q":
		return tea.KeyMsg{Type: tea.KeyCtrlQ}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestModel_KeysBecomeEvents(t *testing.T) {
	w := testWindow(t, nil)
	m := newModel(w, nil, nil)

	cases := []struct {
		key  string
		want api.Key
	}{
		{" ", api.KeySpace},
		{"s", api.KeyS},
		{"left", api.KeyLeft},
		{"pgup", api.KeyPageUp},
		{"f", api.KeyF},
		{"+", api.KeyPlus},
		{"=", api.KeyPlus},
		{"-", api.KeyMinus},
		{"r", api.KeyR},
		{"z", api.KeyZ},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			m, _ = update(t, m, keyMsg(tc.key))
			evs := drain(w)
			require.Len(t, evs, 1)
			assert.Equal(t, api.WindowKeyPressed, evs[0].Type)
			assert.Equal(t, tc.want, evs[0].Key)
		})
	}

	m, _ = update(t, m, keyMsg("x"))
	assert.Empty(t, drain(w), "unbound keys are ignored")
}

func TestModel_QuitKeys(t *testing.T) {
	w := testWindow(t, nil)
	m := newModel(w, nil, nil)

	for _, k := range []string{"q", "ctrl+c"} {
		m, _ = update(t, m, keyMsg(k))
		evs := drain(w)
		require.Len(t, evs, 1, k)
		assert.Equal(t, api.WindowCloseRequested, evs[0].Type)
	}

	m, _ = update(t, m, keyMsg("ctrl+q"))
	evs := drain(w)
	require.Len(t, evs, 1)
	assert.Equal(t, api.KeyQ, evs[0].Key)
	assert.True(t, evs[0].Mods.Ctrl)
}

func TestModel_CustomBindings(t *testing.T) {
	cfg := config.Default().UI
	cfg.KeyBindings.PlayPause = "k"
	cfg.KeyBindings.Quit = "x"
	w := NewWindow(cfg, nil, nil, observability.NewNopLogger(), tea.WithInput(nil), tea.WithOutput(io.Discard))
	m := newModel(w, nil, nil)

	m, _ = update(t, m, keyMsg("k"))
	m, _ = update(t, m, keyMsg("x"))
	evs := drain(w)
	require.Len(t, evs, 2)
	assert.Equal(t, api.KeySpace, evs[0].Key)
	assert.Equal(t, api.WindowCloseRequested, evs[1].Type)
}

func TestModel_MouseWheel(t *testing.T) {
	w := testWindow(t, nil)
	m := newModel(w, nil, nil)

	m, _ = update(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	m, _ = update(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	m, _ = update(t, m, tea.MouseMsg{Action: tea.MouseActionMotion, Button: tea.MouseButtonNone})

	evs := drain(w)
	require.Len(t, evs, 2)
	assert.Equal(t, float32(1), evs[0].Delta)
	assert.Equal(t, float32(-1), evs[1].Delta)
}

func TestModel_PasteDropsFiles(t *testing.T) {
	w := testWindow(t, nil)
	m := newModel(w, nil, nil)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'/tmp/a b.mp4' /tmp/c.mkv"), Paste: true})
	evs := drain(w)
	require.Len(t, evs, 1)
	assert.Equal(t, api.WindowFilesDropped, evs[0].Type)
	assert.Equal(t, []string{"/tmp/a b.mp4", "/tmp/c.mkv"}, evs[0].Paths)
}

func TestModel_ResizeReportsVideoArea(t *testing.T) {
	w := testWindow(t, nil)
	m := newModel(w, nil, nil)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	evs := drain(w)
	require.Len(t, evs, 1)
	assert.Equal(t, api.WindowResized, evs[0].Type)
	assert.Equal(t, 120-playlistWidth, evs[0].Width)
	assert.Equal(t, 40-statusRows, evs[0].Height)

	// Too narrow for the side panel: the video takes the full width.
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 50, Height: 20})
	evs = drain(w)
	require.Len(t, evs, 1)
	assert.Equal(t, 50, evs[0].Width)

	m, _ = update(t, m, keyMsg("tab"))
	evs = drain(w)
	require.Len(t, evs, 1)
	assert.Equal(t, 50, evs[0].Width)
	assert.Equal(t, 19, evs[0].Height, "hidden panels leave one line for progress")
}

func TestModel_Fullscreen(t *testing.T) {
	w := testWindow(t, nil)
	m := newModel(w, nil, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	drain(w)

	m, cmd := update(t, m, fullscreenMsg(true))
	require.NotNil(t, cmd)
	assert.True(t, m.fullscreen)
	evs := drain(w)
	require.Len(t, evs, 1)
	assert.Equal(t, 100, evs[0].Width)
	assert.Equal(t, 29, evs[0].Height)

	m, cmd = update(t, m, fullscreenMsg(false))
	require.NotNil(t, cmd)
	assert.False(t, m.fullscreen)
}

func TestModel_ViewShowsSnapshot(t *testing.T) {
	item := &api.PlaylistItem{Source: "/media/clip.mp4", Title: "Clip", Duration: 90 * time.Second}
	src := staticSource{snap: player.Snapshot{
		State:    api.StatePlaying,
		Item:     item,
		Position: 30 * time.Second,
		Duration: 90 * time.Second,
		Volume:   0.8,
		Speed:    1,
		Index:    0,
		Playlist: []*api.PlaylistItem{item, {Source: "/media/next.mp4"}},
	}}
	w := testWindow(t, src)
	m := newModel(w, src, staticVideo("VIDEO"))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, cmd := update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd, "ticks reschedule themselves")

	out := m.View()
	assert.Contains(t, out, "VIDEO")
	assert.Contains(t, out, "Clip")
	assert.Contains(t, out, "00:30/01:30")
	assert.Contains(t, out, "Playlist (2)")
	assert.Contains(t, out, "next.mp4")
	assert.Contains(t, out, "80%")

	m, _ = update(t, m, fullscreenMsg(true))
	out = m.View()
	assert.Contains(t, out, "VIDEO")
	assert.NotContains(t, out, "Playlist")
}

func TestWindow_CloseBeforeRun(t *testing.T) {
	w := testWindow(t, nil)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.NoError(t, w.SetFullscreen(true))

	done := make(chan error, 1)
	go func() { done <- w.Run(t.Context()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	_, open := <-w.Events()
	assert.False(t, open, "events are closed when the program exits")
}

func TestParseDropped(t *testing.T) {
	cases := map[string][]string{
		"/a.mp4":                       {"/a.mp4"},
		"/a.mp4 /b.mkv\n":              {"/a.mp4", "/b.mkv"},
		`/my\ movie.mp4`:               {"/my movie.mp4"},
		`"/quoted path/x.wav"`:         {"/quoted path/x.wav"},
		"file:///srv/media/song.flac":  {"/srv/media/song.flac"},
		"  ":                           nil,
		`'it''s' "a\"b"`:               {"its", `a"b`},
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDropped(in), strings.TrimSpace(in))
	}
}
