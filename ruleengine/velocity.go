package ruleengine

import (
	"sync"
	"time"

	"github.com/deriv-labs/fraud-triage/model"
)

// VelocityTracker replaces a stubbed-out rapid-deposit-withdrawal check
// with a real one: a per-user sliding window that remembers the type and
// time of each observed transaction and reports a rapid-churn hit when a
// deposit and a withdrawal for the same user land within window of one
// another.
//
// Evaluate records every Phase B event it scores into the tracker, so
// with a tracker its result depends on the events already observed;
// with a nil tracker Evaluate is a pure function of the event.
type VelocityTracker struct {
	window time.Duration

	mu      sync.Mutex
	history map[string][]velocityEntry
}

type velocityEntry struct {
	at  time.Time
	typ model.TransactionType
}

// NewVelocityTracker returns a tracker with the given sliding window.
func NewVelocityTracker(window time.Duration) *VelocityTracker {
	return &VelocityTracker{
		window:  window,
		history: make(map[string][]velocityEntry),
	}
}

// Observe records ev and reports whether it forms a rapid deposit+
// withdrawal churn with a prior transaction for the same user inside
// the window — two transactions of opposite type within window.
func (t *VelocityTracker) Observe(ev model.TransactionEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.history[ev.UserID]
	entries = pruneBefore(entries, ev.Timestamp.Add(-t.window))

	churn := false
	if ev.Type == model.TransactionDeposit || ev.Type == model.TransactionWithdrawal {
		opposite := model.TransactionDeposit
		if ev.Type == model.TransactionDeposit {
			opposite = model.TransactionWithdrawal
		}
		for _, e := range entries {
			if e.typ == opposite {
				churn = true
				break
			}
		}
	}

	entries = append(entries, velocityEntry{at: ev.Timestamp, typ: ev.Type})
	t.history[ev.UserID] = entries
	return churn
}

func pruneBefore(entries []velocityEntry, cutoff time.Time) []velocityEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.at.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
