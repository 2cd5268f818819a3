package streamsource_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/redisclient"
	"github.com/deriv-labs/fraud-triage/streamsource"
)

func newSource(t *testing.T) *streamsource.Source {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })
	s := streamsource.New(rc, "deriv:transactions", "fraud-detector1", "processor-1", 10, 50*time.Millisecond)
	require.NoError(t, s.EnsureGroup(context.Background()))
	return s
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	s := newSource(t)
	require.NoError(t, s.EnsureGroup(context.Background()))
}

func TestReadReturnsEmptyWithoutError(t *testing.T) {
	s := newSource(t)
	recs, err := s.Read(context.Background())
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestReadThenAckRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	s := streamsource.New(rc, "deriv:transactions", "fraud-detector1", "processor-1", 10, 50*time.Millisecond)
	require.NoError(t, s.EnsureGroup(context.Background()))

	ev := model.TransactionEvent{TransactionID: "tx-1", UserID: "user-1"}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	_, err = rc.Add(context.Background(), "deriv:transactions", map[string]interface{}{"event_data": string(payload)})
	require.NoError(t, err)

	recs, err := s.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	parsed, err := recs[0].Parse()
	require.NoError(t, err)
	require.Equal(t, "tx-1", parsed.TransactionID)

	require.NoError(t, s.Ack(context.Background(), recs[0].ID))
}

func TestParseRejectsMissingEventData(t *testing.T) {
	r := streamsource.Record{ID: "1-0", Fields: map[string]interface{}{}}
	_, err := r.Parse()
	require.ErrorIs(t, err, streamsource.ErrBadPayload)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	r := streamsource.Record{ID: "1-0", Fields: map[string]interface{}{"event_data": "{not json"}}
	_, err := r.Parse()
	require.ErrorIs(t, err, streamsource.ErrBadPayload)
}
