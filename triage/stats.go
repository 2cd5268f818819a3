package triage

import (
	"context"
	"sync"
	"time"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/pushbus"
	"github.com/deriv-labs/fraud-triage/trafficmeter"
)

// StatsFrame is the periodic aggregate published on the stats topic
// and served from GET /dashboard/stats.
type StatsFrame struct {
	TotalCases   int   `json:"total_cases"`
	AutoApproved int   `json:"auto_approved"`
	AutoBlocked  int   `json:"auto_blocked"`
	ManualCases  int   `json:"manual_cases"`
	TPS          int64 `json:"tps"`
}

// StatsBroadcaster samples the Case Store and Traffic Meter on a
// fixed cadence, publishes a StatsFrame on the Push Bus, and caches
// the latest frame for REST reconciliation on subscriber connect.
type StatsBroadcaster struct {
	Store    *casestore.Store
	Meter    *trafficmeter.Meter
	Bus      *pushbus.Bus
	Interval time.Duration

	mu     sync.RWMutex
	latest StatsFrame
}

// Run samples and publishes once per Interval until ctx is cancelled.
func (b *StatsBroadcaster) Run(ctx context.Context) {
	interval := b.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sample(ctx, interval)
		}
	}
}

func (b *StatsBroadcaster) sample(ctx context.Context, interval time.Duration) {
	counts, err := b.Store.Stats(ctx)
	if err != nil {
		return
	}
	frame := StatsFrame{
		AutoApproved: counts[model.StatusAutoApproved],
		AutoBlocked:  counts[model.StatusAutoBlocked],
		ManualCases:  counts[model.StatusUnderInvestigation] + counts[model.StatusEscalated],
		TPS:          trafficmeter.TPS(b.Meter.GetAndReset(), interval),
	}
	for _, n := range counts {
		frame.TotalCases += n
	}

	b.mu.Lock()
	b.latest = frame
	b.mu.Unlock()

	b.Bus.Publish(pushbus.Frame{Topic: pushbus.TopicStats, Payload: frame})
}

// Snapshot returns the most recently published frame, used to answer
// GET /dashboard/stats without resetting the Traffic Meter.
func (b *StatsBroadcaster) Snapshot() StatsFrame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}
