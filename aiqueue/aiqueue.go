// Package aiqueue is the AI Queue Producer: it writes escalation
// records for gray-area cases onto a second durable stream consumed
// by the external AI investigator, behind a circuit breaker so a
// stalled investigator cannot back up the triage loop.
package aiqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"

	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/redisclient"
)

// Escalation is the record enqueued for a gray-area case: only the
// triggering event, never the accumulated history of prior gray
// cases.
type Escalation struct {
	CaseID string
	UserID string
	Event  model.TransactionEvent
}

// Producer publishes Escalations onto the AI queue stream.
type Producer struct {
	rc     *redisclient.Client
	stream string
	cb     *gobreaker.CircuitBreaker
}

// New constructs a Producer. The circuit breaker trips after 5
// consecutive publish failures and probes again after 30s.
func New(rc *redisclient.Client, stream string) *Producer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aiqueue-publish",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Producer{rc: rc, stream: stream, cb: cb}
}

// Enqueue publishes one Escalation. Failures (including an open
// circuit) are returned to the caller, which per the backpressure
// policy must log and continue — enqueue failure never blocks the
// triage loop or withholds the ack.
func (p *Producer) Enqueue(ctx context.Context, esc Escalation) error {
	payload, err := json.Marshal(esc.Event)
	if err != nil {
		return err
	}
	_, err = p.cb.Execute(func() (interface{}, error) {
		return p.rc.Add(ctx, p.stream, map[string]interface{}{
			"case_id":    esc.CaseID,
			"user_id":    esc.UserID,
			"event_data": string(payload),
		})
	})
	return err
}
