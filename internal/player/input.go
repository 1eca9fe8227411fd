package player

import (
	"context"
	"log/slog"
	"time"

	"github.com/jscyril/golang_media_player/api"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

// Enqueue appends items to the playlist. If nothing is loaded yet, or
// loadFirst is set, the first appended item is loaded.
func (c *Controller) Enqueue(loadFirst bool, items ...*api.PlaylistItem) error {
	if len(items) == 0 {
		return nil
	}
	first := c.queue.Add(items...)
	if !loadFirst && c.currentItem() != nil {
		return nil
	}
	item, err := c.queue.JumpTo(first)
	if err != nil {
		return err
	}
	_, err = c.LoadItem(item)
	return err
}

// Next loads the next playlist item. At the end of the playlist it does nothing.
func (c *Controller) Next() error {
	item := c.queue.Next()
	if item == nil {
		return nil
	}
	return c.switchTo(item)
}

// Previous restarts the current item if it has played for a while,
// otherwise loads the previous playlist item.
func (c *Controller) Previous() error {
	if c.Position() > 3*time.Second || !c.queue.HasPrevious() {
		return c.Seek(0)
	}
	item := c.queue.Previous()
	if item == nil {
		return nil
	}
	return c.switchTo(item)
}

// switchTo loads item and keeps playing if the player was playing.
func (c *Controller) switchTo(item *api.PlaylistItem) error {
	wasPlaying := c.State().IsActive() || c.State() == api.StateEnded
	if _, err := c.LoadItem(item); err != nil {
		return err
	}
	if wasPlaying {
		return c.Play()
	}
	return nil
}

// CycleRepeat steps the playlist repeat mode none → all → one → none.
func (c *Controller) CycleRepeat() api.RepeatMode {
	next := api.RepeatAll
	switch c.queue.RepeatMode() {
	case api.RepeatAll:
		next = api.RepeatOne
	case api.RepeatOne:
		next = api.RepeatNone
	}
	c.queue.SetRepeatMode(next)
	return next
}

// ToggleShuffle shuffles or restores the playlist order, keeping the current item.
func (c *Controller) ToggleShuffle() bool {
	if c.queue.IsShuffled() {
		c.queue.Unshuffle()
		return false
	}
	c.queue.Shuffle()
	return true
}

// advance continues after end of media. It reports false when there is
// nothing more to play.
func (c *Controller) advance() bool {
	current := c.currentItem()
	next := c.queue.Advance()
	if next == nil && c.cfg.Player.LoopPlayback && c.queue.Len() > 0 {
		next, _ = c.queue.JumpTo(0)
	}
	if next == nil {
		return false
	}

	var err error
	if next == current {
		err = c.Play()
	} else {
		if _, err = c.LoadItem(next); err == nil {
			err = c.Play()
		}
	}
	if err != nil {
		c.log().Warn("advance failed", slog.String("source", next.Source), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Run dispatches window events and advances through the playlist until the
// window asks to quit or ctx is done. Without a window it returns once the
// playlist is finished.
func (c *Controller) Run(ctx context.Context) error {
	ends := c.bus.Subscribe(api.EventEndOfMedia)
	defer c.bus.Unsubscribe(ends)

	c.mu.RLock()
	w := c.window
	c.mu.RUnlock()
	var input <-chan api.WindowEvent
	if w != nil {
		input = w.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-input:
			if !ok {
				return nil
			}
			if c.HandleEvent(ev) {
				return nil
			}
		case _, ok := <-ends:
			if !ok {
				return nil
			}
			if !c.advance() && w == nil {
				return nil
			}
		}
	}
}

// HandleEvent maps a window event to a command. It reports true when the
// event asks the player to quit.
func (c *Controller) HandleEvent(ev api.WindowEvent) bool {
	var err error
	switch ev.Type {
	case api.WindowCloseRequested:
		return true
	case api.WindowResized:
		if c.renderer != nil {
			err = c.renderer.Resize(ev.Width, ev.Height)
		}
	case api.WindowMouseWheel:
		err = c.SetVolume(c.Volume() + ev.Delta*float32(c.cfg.Player.VolumeStep))
	case api.WindowFilesDropped:
		err = c.dropFiles(ev.Paths)
	case api.WindowKeyPressed:
		var quit bool
		quit, err = c.handleKey(ev.Key, ev.Mods)
		if quit {
			return true
		}
	}
	if err != nil {
		c.log().Warn("command failed", slog.String("error", err.Error()))
	}
	return false
}

func (c *Controller) handleKey(key api.Key, mods api.Modifiers) (bool, error) {
	p := c.cfg.Player
	switch key {
	case api.KeyQ:
		return mods.Ctrl, nil
	case api.KeySpace:
		return false, c.TogglePlay()
	case api.KeyS:
		return false, c.Stop()
	case api.KeyF, api.KeyF11:
		return false, c.SetFullscreen(!c.Fullscreen())
	case api.KeyEscape:
		if c.Fullscreen() {
			return false, c.SetFullscreen(false)
		}
	case api.KeyM:
		c.ToggleMute()
	case api.KeyLeft:
		return false, c.SeekRelative(-p.SeekStep)
	case api.KeyRight:
		return false, c.SeekRelative(p.SeekStep)
	case api.KeyPageUp:
		return false, c.SeekRelative(p.FastSeekStep)
	case api.KeyPageDown:
		return false, c.SeekRelative(-p.FastSeekStep)
	case api.KeyHome:
		return false, c.Seek(0)
	case api.KeyUp:
		return false, c.SetVolume(c.Volume() + float32(p.VolumeStep))
	case api.KeyDown:
		return false, c.SetVolume(c.Volume() - float32(p.VolumeStep))
	case api.KeyPlus:
		return false, c.SetSpeed(clampSpeed(c.Speed() + p.SpeedStep))
	case api.KeyMinus:
		return false, c.SetSpeed(clampSpeed(c.Speed() - p.SpeedStep))
	case api.KeyN:
		return false, c.Next()
	case api.KeyP:
		return false, c.Previous()
	case api.KeyR:
		c.CycleRepeat()
	case api.KeyZ:
		c.ToggleShuffle()
	}
	return false, nil
}

// dropFiles expands dropped files and directories into the playlist and
// loads the first of them.
func (c *Controller) dropFiles(paths []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	items, errs := c.scanner.Expand(ctx, paths)
	for _, err := range errs {
		c.log().Warn("skipping dropped entry", slog.String("error", err.Error()))
	}
	if len(items) == 0 {
		return playerrors.NewPlayerError("drop", playerrors.KindNotFound, "", playerrors.ErrSourceNotFound)
	}
	return c.Enqueue(true, items...)
}

func clampSpeed(s float64) float64 {
	// Round to hundredths; repeated steps would otherwise drift.
	s = float64(int64(s*100+0.5)) / 100
	switch {
	case s < MinSpeed:
		return MinSpeed
	case s > MaxSpeed:
		return MaxSpeed
	}
	return s
}
