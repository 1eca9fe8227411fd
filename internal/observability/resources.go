package observability

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultSampleInterval bounds how often the process is actually queried.
const DefaultSampleInterval = time.Second

// ResourceUsage is a snapshot of this process's footprint.
type ResourceUsage struct {
	CPUPercent float64
	RSS        uint64
	SampledAt  time.Time
}

// ResourceSampler reports CPU and resident memory of the current process.
// Calls within the sample interval return the cached snapshot.
type ResourceSampler struct {
	proc     *process.Process
	interval time.Duration

	mu   sync.Mutex
	last ResourceUsage
}

// NewResourceSampler attaches to the current process.
func NewResourceSampler(interval time.Duration) (*ResourceSampler, error) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attach to process: %w", err)
	}
	return &ResourceSampler{proc: proc, interval: interval}, nil
}

// Sample returns the current usage. CPU is the percentage of one core used
// since the previous query; the first query reports usage since start.
func (s *ResourceSampler) Sample(ctx context.Context) (ResourceUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.SampledAt.IsZero() && time.Since(s.last.SampledAt) < s.interval {
		return s.last, nil
	}

	cpuPct, err := s.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return s.last, fmt.Errorf("sample cpu: %w", err)
	}
	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return s.last, fmt.Errorf("sample memory: %w", err)
	}

	s.last = ResourceUsage{CPUPercent: cpuPct, RSS: mem.RSS, SampledAt: time.Now()}
	return s.last, nil
}
