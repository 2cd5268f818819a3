// Package streamsource is the Event Source Adapter: a pull-style
// reader over a durable, ordered, partitioned stream with
// consumer-group semantics, backed by Redis Streams.
package streamsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/redisclient"
)

// ErrBadPayload is returned by Record.Parse when the event_data field
// is missing or not valid JSON.
var ErrBadPayload = errors.New("streamsource: missing or unparseable event_data")

// Record is one batch entry: the opaque, strictly increasing record
// ID and its raw fields as delivered off the stream.
type Record struct {
	ID     string
	Fields map[string]interface{}
}

// Parse decodes the record's event_data field into a TransactionEvent.
func (r Record) Parse() (model.TransactionEvent, error) {
	var ev model.TransactionEvent
	raw, ok := r.Fields["event_data"]
	if !ok {
		return ev, ErrBadPayload
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return ev, ErrBadPayload
	}
	if err := json.Unmarshal([]byte(s), &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return ev, nil
}

// Source reads TransactionEvents off the inbound stream for a fixed
// (stream, group, consumer) triple.
type Source struct {
	rc       *redisclient.Client
	stream   string
	group    string
	consumer string
	batch    int64
	block    time.Duration
}

// New constructs a Source. Call EnsureGroup once before the first Read.
func New(rc *redisclient.Client, stream, group, consumer string, batch int64, block time.Duration) *Source {
	return &Source{rc: rc, stream: stream, group: group, consumer: consumer, batch: batch, block: block}
}

// EnsureGroup creates the consumer group at the LATEST cursor if it
// does not already exist. Idempotent.
func (s *Source) EnsureGroup(ctx context.Context) error {
	return s.rc.EnsureGroup(ctx, s.stream, s.group, "$")
}

// Read pulls up to the configured batch size of pending-or-new
// records. An empty, nil-error result means nothing was available —
// the caller's tick should simply return.
func (s *Source) Read(ctx context.Context) ([]Record, error) {
	msgs, err := s.rc.ReadBatch(ctx, s.stream, s.group, s.consumer, s.batch, s.block)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Record{ID: m.ID, Fields: m.Fields})
	}
	return out, nil
}

// Ack removes id from the group's pending list.
func (s *Source) Ack(ctx context.Context, id string) error {
	return s.rc.Ack(ctx, s.stream, s.group, id)
}

// DeliveryCount reports how many times id has been delivered to the
// group, used by the pipeline's poison-record accounting.
func (s *Source) DeliveryCount(ctx context.Context, id string) (int64, error) {
	return s.rc.DeliveryCount(ctx, s.stream, s.group, id)
}
