// Package triage implements the Triage Pipeline: the loop binding the
// Event Source Adapter, Rule Engine, Case Store, AI Queue Producer,
// and Push Bus. It owns idempotency, ack ordering, and per-record
// error recovery.
package triage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/aiqueue"
	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/observability"
	"github.com/deriv-labs/fraud-triage/pushbus"
	"github.com/deriv-labs/fraud-triage/ruleengine"
	"github.com/deriv-labs/fraud-triage/streamsource"
	"github.com/deriv-labs/fraud-triage/trafficmeter"
)

// Pipeline binds every collaborator of one triage worker.
type Pipeline struct {
	Source   *streamsource.Source
	Store    *casestore.Store
	Queue    *aiqueue.Producer
	Bus      *pushbus.Bus
	Meter    *trafficmeter.Meter
	Tracker  *ruleengine.VelocityTracker
	Log      zerolog.Logger
	Metrics  *observability.Metrics

	// PoisonRetryLimit is the delivery count past which an unparseable
	// record is acked with a synthetic case instead of redelivered
	// forever.
	PoisonRetryLimit int64
}

// Tick runs one batch: pull, evaluate, persist, enqueue, publish,
// ack. A transient read error is returned to the caller, which should
// log and retry on the next tick; it never panics on a single bad
// record.
func (p *Pipeline) Tick(ctx context.Context) error {
	if p.Metrics != nil {
		start := time.Now()
		defer func() { p.Metrics.TriageTickLatency.Observe(time.Since(start).Seconds()) }()
	}

	recs, err := p.Source.Read(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	p.Meter.Add(int64(len(recs)))

	for _, rec := range recs {
		p.processRecordSafely(ctx, rec)
	}
	return nil
}

// processRecordSafely runs processRecord behind a recover() guard so a
// panic on one malformed record (e.g. an unexpected nil deep in
// evidence-building) cannot take down the whole tick.
func (p *Pipeline) processRecordSafely(ctx context.Context, rec streamsource.Record) {
	defer func() {
		if r := recover(); r != nil {
			p.Log.Error().Interface("panic", r).Str("record_id", rec.ID).Msg("panic while processing record, skipping")
		}
	}()
	p.processRecord(ctx, rec)
}

func (p *Pipeline) processRecord(ctx context.Context, rec streamsource.Record) {
	ev, err := rec.Parse()
	if err != nil {
		p.handlePoison(ctx, rec)
		return
	}

	c := &model.Case{
		CaseID:               newCaseID(),
		UserID:               ev.UserID,
		TriggerTransactionID: ev.TransactionID,
		TriggeredBy:          model.TriggeredByRuleEngine,
		InvestigationLayers:  []string{model.LayerRuleBased},
		TransactionSummary:   transactionSummary(ev),
		IdentityFlags:        identityFlags(ev),
		BehavioralFlags:      behavioralFlags(ev),
		NetworkFlags:         networkFlags(ev),
	}

	result := ruleengine.Evaluate(ev, p.Tracker)
	c.DetectionSignals = result.Signals

	gray := !result.IsDefinitive()
	if gray {
		c.Status = model.StatusUnderInvestigation
		c.FraudProbability = model.ClampUnit(result.RiskScore)
		c.ConfidenceScore = model.ClampUnit(result.Confidence)
	} else {
		if result.Decision == model.DecisionApprove {
			c.Status = model.StatusAutoApproved
		} else {
			c.Status = model.StatusAutoBlocked
		}
		c.FraudProbability = model.ClampUnit(result.Confidence)
		c.ConfidenceScore = model.ClampUnit(result.Confidence)
	}

	created, err := p.Store.Create(ctx, c)
	if errors.Is(err, casestore.ErrDuplicateTrigger) {
		// Redelivery after a commit-then-crash must not create a second
		// case, must not re-enqueue, and must still ack.
		existing, getErr := p.Store.GetByTriggerTransactionID(ctx, ev.TransactionID)
		if getErr != nil {
			p.Log.Warn().Err(getErr).Str("transaction_id", ev.TransactionID).Msg("duplicate trigger but lookup failed")
			return
		}
		p.ackRecord(ctx, rec)
		p.publishCase(existing)
		return
	}
	if err != nil {
		p.Log.Warn().Err(err).Str("transaction_id", ev.TransactionID).Msg("case store unavailable, will redeliver")
		return
	}

	if p.Metrics != nil {
		p.Metrics.EventsProcessed.WithLabelValues("processed").Inc()
		p.Metrics.CasesByStatus.WithLabelValues(string(created.Status)).Inc()
	}

	p.publishCase(created)

	if gray {
		if err := p.Queue.Enqueue(ctx, aiqueue.Escalation{CaseID: created.CaseID, UserID: created.UserID, Event: ev}); err != nil {
			p.Log.Warn().Err(err).Str("case_id", created.CaseID).Msg("ai queue enqueue failed, case remains under investigation")
			if p.Metrics != nil {
				p.Metrics.AIQueueRejected.Inc()
			}
		} else if p.Metrics != nil {
			p.Metrics.AIQueueEnqueued.Inc()
		}
		correlateFraudRing(ctx, p.Store, p.Log, created, ev)
	}

	p.ackRecord(ctx, rec)
}

// handlePoison logs and withholds the ack until delivery count exceeds
// the retry limit, at which point a synthetic case is written and the
// record is acked so it does not block the stream forever.
func (p *Pipeline) handlePoison(ctx context.Context, rec streamsource.Record) {
	if p.Metrics != nil {
		p.Metrics.PoisonRecords.Inc()
		p.Metrics.EventsProcessed.WithLabelValues("poison").Inc()
	}

	count, cerrCount := p.Source.DeliveryCount(ctx, rec.ID)
	if cerrCount != nil {
		p.Log.Error().Err(cerrCount).Str("record_id", rec.ID).Msg("poison record: delivery count lookup failed")
	}
	if count <= p.PoisonRetryLimit {
		p.Log.Error().Str("record_id", rec.ID).Int64("delivery_count", count).Msg("poison record, awaiting redelivery")
		return
	}

	c := &model.Case{
		CaseID:               newCaseID(),
		UserID:               "",
		TriggerTransactionID: "poison-" + rec.ID,
		Status:               model.StatusUnderInvestigation,
		TriggeredBy:          model.TriggeredByRuleEngine,
		InvestigationLayers:  []string{model.LayerRuleBased},
		DetectionSignals:     map[string]interface{}{"poison": true},
	}
	created, err := p.Store.Create(ctx, c)
	if err != nil && !errors.Is(err, casestore.ErrDuplicateTrigger) {
		p.Log.Error().Err(err).Str("record_id", rec.ID).Msg("poison record: synthetic case create failed")
		return
	}
	if created != nil {
		p.publishCase(created)
	}
	p.Log.Error().Str("record_id", rec.ID).Int64("delivery_count", count).Msg("poison record retry limit exceeded, acking with synthetic case")
	p.ackRecord(ctx, rec)
}

func (p *Pipeline) ackRecord(ctx context.Context, rec streamsource.Record) {
	if err := p.Source.Ack(ctx, rec.ID); err != nil {
		p.Log.Warn().Err(err).Str("record_id", rec.ID).Msg("ack failed")
	}
}

func (p *Pipeline) publishCase(c *model.Case) {
	if p.Bus == nil || c == nil {
		return
	}
	p.Bus.Publish(pushbus.Frame{Topic: pushbus.TopicCaseEvents, Payload: c})
}
