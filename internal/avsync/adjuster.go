package avsync

import (
	"math"
	"sync/atomic"
)

const (
	DefaultAdjustmentRate = 0.001
	MinAdjustmentRate     = 0.0001
	MaxAdjustmentRate     = 0.1
)

// SyncAdjuster converts a residual sync error into a small pacing correction.
type SyncAdjuster struct {
	rate atomic.Uint64 // float64 bits
}

func NewSyncAdjuster(rate float64) *SyncAdjuster {
	a := &SyncAdjuster{}
	a.SetRate(rate)
	return a
}

// SetRate sets the proportional gain, clamped to [MinAdjustmentRate, MaxAdjustmentRate].
func (a *SyncAdjuster) SetRate(rate float64) {
	if rate < MinAdjustmentRate {
		rate = MinAdjustmentRate
	}
	if rate > MaxAdjustmentRate {
		rate = MaxAdjustmentRate
	}
	a.rate.Store(math.Float64bits(rate))
}

func (a *SyncAdjuster) Rate() float64 { return math.Float64frombits(a.rate.Load()) }

// Adjust returns the correction in µs for an error in µs.
func (a *SyncAdjuster) Adjust(errorUS int64) int64 {
	return int64(float64(errorUS) * a.Rate())
}
