// Package buffer holds the bounded queues between the decode stage and the
// render and audio stages.
package buffer

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/jscyril/golang_media_player/api"
)

const (
	DefaultMaxFrames = 30
	DefaultMaxBytes  = 100 * 1024 * 1024

	sizeEMAAlpha = 0.1
)

// QueueStats describes FrameQueue activity since creation.
type QueueStats struct {
	FramesAdded    uint64
	FramesDropped  uint64
	FramesConsumed uint64
	CurrentSize    int
	AvgSize        float64
	MaxSize        int
	TotalBytes     int
}

// FrameQueue is a PTS-ordered, length and byte bounded queue of video frames.
// When full it evicts the oldest frames to make room; Push never fails.
type FrameQueue struct {
	mu         sync.Mutex
	frames     []*api.VideoFrame
	maxFrames  int
	maxBytes   int
	totalBytes int
	lastPTS    int64
	seenAny    bool
	stats      QueueStats
	logger     *slog.Logger
}

// NewFrameQueue creates a queue bounded to maxFrames and maxBytes.
// Non-positive limits fall back to the defaults.
func NewFrameQueue(maxFrames, maxBytes int, logger *slog.Logger) *FrameQueue {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameQueue{
		frames:    make([]*api.VideoFrame, 0, maxFrames),
		maxFrames: maxFrames,
		maxBytes:  maxBytes,
		logger:    logger.With(slog.String("component", "frame_queue")),
	}
}

// Push inserts frame in PTS order, then evicts from the front (oldest PTS)
// until the queue is back within its bounds. A frame older than everything
// retained in a full queue is therefore the one evicted. Push never fails.
func (q *FrameQueue) Push(frame *api.VideoFrame) error {
	size := frame.Size()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seenAny && frame.PTS < q.lastPTS {
		q.logger.Warn("frame pts out of order",
			slog.Int64("pts", frame.PTS),
			slog.Int64("last_pts", q.lastPTS))
	}
	if !q.seenAny || frame.PTS > q.lastPTS {
		q.lastPTS = frame.PTS
	}
	q.seenAny = true

	i := sort.Search(len(q.frames), func(i int) bool { return q.frames[i].PTS > frame.PTS })
	q.frames = append(q.frames, nil)
	copy(q.frames[i+1:], q.frames[i:])
	q.frames[i] = frame
	q.totalBytes += size
	q.stats.FramesAdded++

	// A single frame larger than maxBytes is still kept on its own.
	for len(q.frames) > q.maxFrames || (len(q.frames) > 1 && q.totalBytes > q.maxBytes) {
		q.removeFrontLocked()
		q.stats.FramesDropped++
	}

	q.updateSizeStatsLocked()
	return nil
}

// Pop removes and returns the frame with the lowest PTS.
func (q *FrameQueue) Pop() (*api.VideoFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.removeFrontLocked()
	q.stats.FramesConsumed++
	q.updateSizeStatsLocked()
	return frame, true
}

// PopIf pops the front frame only if it is frame. It reports whether it did.
// The render stage uses it to consume exactly the frame it peeked even if the
// queue was cleared in between.
func (q *FrameQueue) PopIf(frame *api.VideoFrame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 || q.frames[0] != frame {
		return false
	}
	q.removeFrontLocked()
	q.stats.FramesConsumed++
	q.updateSizeStatsLocked()
	return true
}

// Peek returns the front frame without removing it.
func (q *FrameQueue) Peek() (*api.VideoFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}
	return q.frames[0], true
}

// Get returns the frame at index i in PTS order.
func (q *FrameQueue) Get(i int) (*api.VideoFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.frames) {
		return nil, false
	}
	return q.frames[i], true
}

// FindByPTS returns the frame whose PTS is closest to target.
func (q *FrameQueue) FindByPTS(target int64) (*api.VideoFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *api.VideoFrame
	bestDiff := int64(math.MaxInt64)
	for _, f := range q.frames {
		d := f.PTS - target
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = f, d
		}
	}
	return best, best != nil
}

// DropBefore evicts every frame with PTS below pts and returns how many were dropped.
func (q *FrameQueue) DropBefore(pts int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for len(q.frames) > 0 && q.frames[0].PTS < pts {
		q.removeFrontLocked()
		n++
	}
	if n > 0 {
		q.stats.FramesDropped += uint64(n)
		q.updateSizeStatsLocked()
	}
	return n
}

func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *FrameQueue) IsEmpty() bool { return q.Len() == 0 }

// IsFull reports whether the next Push would evict.
func (q *FrameQueue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames) >= q.maxFrames || q.totalBytes >= q.maxBytes
}

func (q *FrameQueue) MaxFrames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxFrames
}

// TotalBytes returns the estimated bytes held.
func (q *FrameQueue) TotalBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalBytes
}

// SetMaxBytes changes the byte bound, evicting immediately if it is exceeded.
func (q *FrameQueue) SetMaxBytes(n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maxBytes = n
	for len(q.frames) > 1 && q.totalBytes > q.maxBytes {
		q.removeFrontLocked()
		q.stats.FramesDropped++
	}
	q.updateSizeStatsLocked()
}

// Clear removes every frame and forgets the last seen PTS.
func (q *FrameQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.frames)
	q.frames = q.frames[:0]
	q.totalBytes = 0
	q.seenAny = false
	q.lastPTS = 0
	q.updateSizeStatsLocked()
}

// PTSRange returns the lowest and highest queued PTS.
func (q *FrameQueue) PTSRange() (first, last int64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return 0, 0, false
	}
	return q.frames[0].PTS, q.frames[len(q.frames)-1].PTS, true
}

// BufferedDuration returns the span covered by queued frames in µs.
func (q *FrameQueue) BufferedDuration() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return 0
	}
	last := q.frames[len(q.frames)-1]
	return last.PTS + last.Duration - q.frames[0].PTS
}

// Stats returns a snapshot of the queue statistics.
func (q *FrameQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *FrameQueue) removeFrontLocked() *api.VideoFrame {
	frame := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	q.totalBytes -= frame.Size()
	return frame
}

func (q *FrameQueue) updateSizeStatsLocked() {
	n := len(q.frames)
	q.stats.CurrentSize = n
	q.stats.TotalBytes = q.totalBytes
	q.stats.AvgSize = q.stats.AvgSize*(1-sizeEMAAlpha) + float64(n)*sizeEMAAlpha
	if n > q.stats.MaxSize {
		q.stats.MaxSize = n
	}
}
