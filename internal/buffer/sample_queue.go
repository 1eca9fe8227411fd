package buffer

import (
	"sync"

	"github.com/jscyril/golang_media_player/api"
)

const DefaultSampleQueueSize = 100

// SampleQueue is a bounded FIFO of decoded audio batches. When full, Push
// discards the oldest batch.
type SampleQueue struct {
	mu       sync.Mutex
	batches  []*api.AudioSamples
	capacity int
	pushed   uint64
	dropped  uint64
	consumed uint64
}

func NewSampleQueue(capacity int) *SampleQueue {
	if capacity <= 0 {
		capacity = DefaultSampleQueueSize
	}
	return &SampleQueue{
		batches:  make([]*api.AudioSamples, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a batch, evicting the oldest one if the queue is full.
func (q *SampleQueue) Push(s *api.AudioSamples) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) >= q.capacity {
		q.batches[0] = nil
		q.batches = q.batches[1:]
		q.dropped++
	}
	q.batches = append(q.batches, s)
	q.pushed++
}

// Pop removes and returns the oldest batch.
func (q *SampleQueue) Pop() (*api.AudioSamples, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return nil, false
	}
	s := q.batches[0]
	q.batches[0] = nil
	q.batches = q.batches[1:]
	q.consumed++
	return s, true
}

func (q *SampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

func (q *SampleQueue) Cap() int { return q.capacity }

// BufferedDuration returns the total duration of queued batches in µs.
func (q *SampleQueue) BufferedDuration() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	var d int64
	for _, s := range q.batches {
		d += s.Duration()
	}
	return d
}

func (q *SampleQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.batches)
	q.batches = q.batches[:0]
}

// Counters returns how many batches were pushed, evicted and consumed.
func (q *SampleQueue) Counters() (pushed, dropped, consumed uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed, q.dropped, q.consumed
}
