package buffer

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/jscyril/golang_media_player/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameAt(pts int64) *api.VideoFrame {
	return &api.VideoFrame{
		Format:   api.PixelFormatRGBA,
		Planes:   [][]byte{make([]byte, 16)},
		Width:    2,
		Height:   2,
		PTS:      pts,
		Duration: 16667,
	}
}

func popAll(q *FrameQueue) []int64 {
	var out []int64
	for {
		f, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, f.PTS)
	}
}

func TestPushOutOfOrderPopsSorted(t *testing.T) {
	q := NewFrameQueue(10, 0, nil)
	for _, pts := range []int64{5000, 1000, 3000} {
		require.NoError(t, q.Push(frameAt(pts)))
	}

	assert.Equal(t, []int64{1000, 3000, 5000}, popAll(q))
}

func TestPushEvictsOldestWhenFull(t *testing.T) {
	q := NewFrameQueue(3, 0, nil)
	for _, pts := range []int64{0, 16667, 33334, 50001} {
		require.NoError(t, q.Push(frameAt(pts)))
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(1), q.Stats().FramesDropped)
	assert.Equal(t, []int64{16667, 33334, 50001}, popAll(q))
}

func TestFullQueueDropsIncomingOlderFrame(t *testing.T) {
	q := NewFrameQueue(3, 0, nil)
	for _, pts := range []int64{100, 200, 300} {
		require.NoError(t, q.Push(frameAt(pts)))
	}

	// Inserted first, then evicted as the oldest: the newer frames survive.
	require.NoError(t, q.Push(frameAt(50)))
	assert.Equal(t, uint64(1), q.Stats().FramesDropped)
	assert.Equal(t, []int64{100, 200, 300}, popAll(q))
}

func TestPopOrderIsNonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		q := NewFrameQueue(64, 0, nil)
		for i := 0; i < 40; i++ {
			q.Push(frameAt(rng.Int63n(1_000_000)))
		}
		got := popAll(q)
		assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }), "round %d: %v", round, got)
	}
}

func TestCapacityKeepsHighestPTS(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const maxFrames = 8

	for round := 0; round < 50; round++ {
		q := NewFrameQueue(maxFrames, 0, nil)
		var pushed []int64
		for i := 0; i < 30; i++ {
			pts := rng.Int63n(100_000)
			pushed = append(pushed, pts)
			q.Push(frameAt(pts))
			require.LessOrEqual(t, q.Len(), maxFrames)
		}

		sort.Slice(pushed, func(i, j int) bool { return pushed[i] < pushed[j] })
		want := pushed[len(pushed)-maxFrames:]
		assert.Equal(t, want, popAll(q), "round %d", round)
	}
}

func TestByteBound(t *testing.T) {
	q := NewFrameQueue(100, 40, nil)
	for i := int64(0); i < 5; i++ {
		q.Push(frameAt(i * 1000)) // 16 bytes each
	}

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 32, q.TotalBytes())
	assert.Equal(t, uint64(3), q.Stats().FramesDropped)

	big := frameAt(10_000)
	big.Planes = [][]byte{make([]byte, 100)}
	q.Push(big)
	assert.Equal(t, 1, q.Len(), "an oversized frame is kept alone")

	q.SetMaxBytes(50)
	assert.Equal(t, 1, q.Len())
}

func TestPeekGetAndPopIf(t *testing.T) {
	q := NewFrameQueue(10, 0, nil)
	_, ok := q.Peek()
	assert.False(t, ok)

	q.Push(frameAt(2000))
	q.Push(frameAt(1000))

	front, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(1000), front.PTS)

	second, ok := q.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(2000), second.PTS)
	_, ok = q.Get(2)
	assert.False(t, ok)

	assert.False(t, q.PopIf(second))
	assert.True(t, q.PopIf(front))
	assert.Equal(t, 1, q.Len())

	q.Clear()
	assert.False(t, q.PopIf(second))
	assert.True(t, q.IsEmpty())
}

func TestFindByPTSAndDropBefore(t *testing.T) {
	q := NewFrameQueue(10, 0, nil)
	for _, pts := range []int64{0, 40_000, 80_000, 120_000} {
		q.Push(frameAt(pts))
	}

	f, ok := q.FindByPTS(70_000)
	require.True(t, ok)
	assert.Equal(t, int64(80_000), f.PTS)

	first, last, ok := q.PTSRange()
	require.True(t, ok)
	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(120_000), last)
	assert.Equal(t, int64(120_000+16667), q.BufferedDuration())

	assert.Equal(t, 2, q.DropBefore(80_000))
	assert.Equal(t, []int64{80_000, 120_000}, popAll(q))

	_, ok = q.FindByPTS(0)
	assert.False(t, ok)
	_, _, ok = q.PTSRange()
	assert.False(t, ok)
	assert.Equal(t, int64(0), q.BufferedDuration())
}

func TestQueueStats(t *testing.T) {
	q := NewFrameQueue(2, 0, nil)
	q.Push(frameAt(0))
	q.Push(frameAt(1))
	q.Push(frameAt(2))
	q.Pop()

	stats := q.Stats()
	assert.Equal(t, uint64(3), stats.FramesAdded)
	assert.Equal(t, uint64(1), stats.FramesDropped)
	assert.Equal(t, uint64(1), stats.FramesConsumed)
	assert.Equal(t, 1, stats.CurrentSize)
	assert.Equal(t, 2, stats.MaxSize)
	assert.Equal(t, 16, stats.TotalBytes)
	assert.Greater(t, stats.AvgSize, 0.0)
	assert.False(t, q.IsFull())
}

func TestDefaults(t *testing.T) {
	q := NewFrameQueue(0, 0, nil)
	assert.Equal(t, DefaultMaxFrames, q.MaxFrames())
	for i := 0; i < DefaultMaxFrames; i++ {
		q.Push(frameAt(int64(i)))
	}
	assert.True(t, q.IsFull())
}
