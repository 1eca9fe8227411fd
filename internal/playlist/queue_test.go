package playlist

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jscyril/golang_media_player/api"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
)

func items(n int) []*api.PlaylistItem {
	out := make([]*api.PlaylistItem, n)
	for i := range out {
		out[i] = &api.PlaylistItem{ID: fmt.Sprintf("item-%d", i), Source: fmt.Sprintf("/media/%d.wav", i)}
	}
	return out
}

func TestQueue_Empty(t *testing.T) {
	q := NewQueue()
	assert.Nil(t, q.Current())
	assert.Nil(t, q.Next())
	assert.Nil(t, q.Previous())
	assert.Nil(t, q.Advance())
	assert.False(t, q.HasNext())

	_, err := q.JumpTo(0)
	assert.ErrorIs(t, err, playerrors.ErrEmptyQueue)
	assert.ErrorIs(t, q.Remove(0), playerrors.ErrEmptyQueue)
}

func TestQueue_AddReturnsFirstIndex(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, 0, q.Add(items(2)...))
	assert.Equal(t, 2, q.Add(items(3)...))
	assert.Equal(t, 5, q.Len())
}

func TestQueue_NextStopsAtEnd(t *testing.T) {
	q := NewQueue()
	all := items(3)
	q.Set(all)

	assert.Same(t, all[0], q.Current())
	assert.Same(t, all[1], q.Next())
	assert.Same(t, all[2], q.Next())
	assert.False(t, q.HasNext())
	assert.Nil(t, q.Next())
	assert.Equal(t, 2, q.Index())

	assert.Same(t, all[1], q.Previous())
	assert.Same(t, all[0], q.Previous())
	assert.Same(t, all[0], q.Previous())
	assert.False(t, q.HasPrevious())
}

func TestQueue_RepeatModes(t *testing.T) {
	all := items(2)

	t.Run("all wraps both ways", func(t *testing.T) {
		q := NewQueue()
		q.Set(all)
		q.SetRepeatMode(api.RepeatAll)
		assert.Same(t, all[1], q.Previous())
		assert.Same(t, all[0], q.Next())
		assert.Same(t, all[1], q.Advance())
		assert.Same(t, all[0], q.Advance())
	})

	t.Run("one replays on advance but not on next", func(t *testing.T) {
		q := NewQueue()
		q.Set(all)
		q.SetRepeatMode(api.RepeatOne)
		assert.Equal(t, api.RepeatOne, q.RepeatMode())
		assert.Same(t, all[0], q.Advance())
		assert.Same(t, all[1], q.Next())
		assert.Same(t, all[1], q.Advance())
		assert.Nil(t, q.Next())
	})

	t.Run("none ends after last", func(t *testing.T) {
		q := NewQueue()
		q.Set(all)
		assert.Same(t, all[1], q.Advance())
		assert.Nil(t, q.Advance())
	})
}

func TestQueue_JumpTo(t *testing.T) {
	q := NewQueue()
	all := items(3)
	q.Set(all)

	item, err := q.JumpTo(2)
	require.NoError(t, err)
	assert.Same(t, all[2], item)
	assert.Equal(t, 2, q.Index())

	_, err = q.JumpTo(3)
	require.Error(t, err)
	assert.Equal(t, playerrors.KindInvalidInput, playerrors.KindOf(err))
	_, err = q.JumpTo(-1)
	assert.Error(t, err)
}

func TestQueue_RemoveAdjustsIndex(t *testing.T) {
	q := NewQueue()
	all := items(4)
	q.Set(all)
	_, err := q.JumpTo(2)
	require.NoError(t, err)

	require.NoError(t, q.Remove(0))
	assert.Same(t, all[2], q.Current())

	_, err = q.JumpTo(2)
	require.NoError(t, err)
	require.NoError(t, q.Remove(2))
	assert.Equal(t, 1, q.Index())
	assert.Same(t, all[2], q.Current())
	assert.Error(t, q.Remove(5))
}

func TestQueue_ShuffleKeepsCurrentFirst(t *testing.T) {
	q := NewQueue()
	all := items(10)
	q.Set(all)
	_, err := q.JumpTo(4)
	require.NoError(t, err)

	q.Shuffle()
	assert.True(t, q.IsShuffled())
	assert.Equal(t, 0, q.Index())
	assert.Same(t, all[4], q.Current())
	assert.ElementsMatch(t, all, q.All())

	extra := items(1)[0]
	q.Add(extra)

	q.Unshuffle()
	assert.False(t, q.IsShuffled())
	assert.Same(t, all[4], q.Current())
	assert.Equal(t, 4, q.Index())
	got := q.All()
	require.Len(t, got, 11)
	assert.Equal(t, all, got[:10])
	assert.Same(t, extra, got[10])
}

func TestQueue_ClearAndAllIsCopy(t *testing.T) {
	q := NewQueue()
	q.Set(items(2))
	snapshot := q.All()
	snapshot[0] = nil
	assert.NotNil(t, q.Current())

	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Current())
}
