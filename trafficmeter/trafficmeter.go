// Package trafficmeter implements the Traffic Meter: a monotonic
// counter read and reset on a fixed cadence to compute TPS. It is the
// one piece of shared state in the system that is synchronized with a
// bare atomic rather than a lock.
package trafficmeter

import (
	"sync/atomic"
	"time"
)

// Meter is an atomic add/get-and-reset counter.
type Meter struct {
	count int64
}

// New constructs a zeroed Meter.
func New() *Meter {
	return &Meter{}
}

// Add increments the counter by n.
func (m *Meter) Add(n int64) {
	atomic.AddInt64(&m.count, n)
}

// GetAndReset atomically reads the counter and resets it to zero.
func (m *Meter) GetAndReset() int64 {
	return atomic.SwapInt64(&m.count, 0)
}

// TPS computes transactions-per-second from a GetAndReset() value
// sampled at interval elapsed, rounded down.
func TPS(count int64, elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	return int64(float64(count) / elapsed.Seconds())
}
