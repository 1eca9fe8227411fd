// Package playlist holds the ordered list of sources the player works through.
package playlist

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/jscyril/golang_media_player/api"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

// Queue represents a playback queue
type Queue struct {
	items      []*api.PlaylistItem
	index      int
	repeatMode api.RepeatMode
	shuffle    bool
	original   []*api.PlaylistItem // Original order before shuffle
	mu         sync.RWMutex
}

// NewQueue creates a new empty queue
func NewQueue() *Queue {
	return &Queue{
		items:      make([]*api.PlaylistItem, 0),
		index:      0,
		repeatMode: api.RepeatNone,
		shuffle:    false,
	}
}

// Add adds items to the end of the queue and returns the index of the first
// one added.
func (q *Queue) Add(items ...*api.PlaylistItem) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	first := len(q.items)
	q.items = append(q.items, items...)
	if q.original != nil {
		q.original = append(q.original, items...)
	}
	return first
}

// Set replaces the entire queue with new items
func (q *Queue) Set(items []*api.PlaylistItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make([]*api.PlaylistItem, len(items))
	copy(q.items, items)
	q.original = nil
	q.shuffle = false
	q.index = 0
}

// Clear removes all items from the queue
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make([]*api.PlaylistItem, 0)
	q.original = nil
	q.shuffle = false
	q.index = 0
}

// Current returns the current item
func (q *Queue) Current() *api.PlaylistItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.items) == 0 || q.index < 0 || q.index >= len(q.items) {
		return nil
	}
	return q.items[q.index]
}

// Advance picks the item to play after the current one finished on its own.
// RepeatOne replays the current item; nil means the queue is done.
func (q *Queue) Advance() *api.PlaylistItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	if q.repeatMode == api.RepeatOne {
		return q.items[q.index]
	}
	return q.stepLocked(1)
}

// Next moves to the next item at the user's request and returns it.
// RepeatOne does not hold the user on the current item.
func (q *Queue) Next() *api.PlaylistItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return q.stepLocked(1)
}

// Previous moves to the previous item and returns it
func (q *Queue) Previous() *api.PlaylistItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return q.stepLocked(-1)
}

// stepLocked moves by delta, wrapping only in RepeatAll. It returns nil when
// stepping past the end; stepping before the start stays on the first item.
func (q *Queue) stepLocked(delta int) *api.PlaylistItem {
	n := len(q.items)
	next := q.index + delta
	switch {
	case q.repeatMode == api.RepeatAll:
		next = (next%n + n) % n
	case next >= n:
		return nil // End of queue
	case next < 0:
		next = 0
	}
	q.index = next
	return q.items[q.index]
}

// JumpTo jumps to a specific index
func (q *Queue) JumpTo(index int) (*api.PlaylistItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.checkIndexLocked("jump", index); err != nil {
		return nil, err
	}
	q.index = index
	return q.items[index], nil
}

// Remove removes an item at the specified index
func (q *Queue) Remove(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.checkIndexLocked("remove", index); err != nil {
		return err
	}

	removed := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)
	if q.original != nil {
		for i, item := range q.original {
			if item == removed {
				q.original = append(q.original[:i], q.original[i+1:]...)
				break
			}
		}
	}

	// Adjust current index if needed
	if q.index > index {
		q.index--
	} else if q.index >= len(q.items) && len(q.items) > 0 {
		q.index = len(q.items) - 1
	}

	return nil
}

func (q *Queue) checkIndexLocked(op string, index int) error {
	if len(q.items) == 0 {
		return playerrors.ErrEmptyQueue
	}
	if index < 0 || index >= len(q.items) {
		return playerrors.NewPlayerError(op, playerrors.KindInvalidInput, "",
			fmt.Errorf("index %d out of range [0, %d)", index, len(q.items)))
	}
	return nil
}

// Shuffle shuffles the queue (Fisher-Yates algorithm), keeping the current
// item first.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) <= 1 {
		q.shuffle = len(q.items) == 1
		return
	}

	// Save original order if not already shuffled
	if q.original == nil {
		q.original = make([]*api.PlaylistItem, len(q.items))
		copy(q.original, q.items)
	}

	current := q.items[q.index]

	n := len(q.items)
	for i := n - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		q.items[i], q.items[j] = q.items[j], q.items[i]
	}

	// Move current item to front
	for i, item := range q.items {
		if item == current {
			q.items[0], q.items[i] = q.items[i], q.items[0]
			break
		}
	}
	q.index = 0
	q.shuffle = true
}

// Unshuffle restores original order
func (q *Queue) Unshuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shuffle = false
	if q.original == nil {
		return
	}

	current := q.items[q.index]
	q.items = q.original
	q.original = nil

	for i, item := range q.items {
		if item == current {
			q.index = i
			break
		}
	}
}

// SetRepeatMode sets the repeat mode
func (q *Queue) SetRepeatMode(mode api.RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeatMode = mode
}

// RepeatMode returns the current repeat mode
func (q *Queue) RepeatMode() api.RepeatMode {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.repeatMode
}

// IsShuffled returns whether the queue is shuffled
func (q *Queue) IsShuffled() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuffle
}

// All returns a copy of all items in the queue
func (q *Queue) All() []*api.PlaylistItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*api.PlaylistItem, len(q.items))
	copy(result, q.items)
	return result
}

// Len returns the number of items in the queue
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Index returns the current index
func (q *Queue) Index() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.index
}

// HasNext returns true if there's a next item
func (q *Queue) HasNext() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.repeatMode == api.RepeatAll {
		return len(q.items) > 0
	}
	return q.index < len(q.items)-1
}

// HasPrevious returns true if there's a previous item
func (q *Queue) HasPrevious() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.repeatMode == api.RepeatAll {
		return len(q.items) > 0
	}
	return q.index > 0
}
