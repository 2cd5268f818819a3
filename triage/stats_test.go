package triage_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/pushbus"
	"github.com/deriv-labs/fraud-triage/trafficmeter"
	"github.com/deriv-labs/fraud-triage/triage"
)

func TestStatsBroadcasterPublishesAndSnapshots(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	store := casestore.New(sqlx.NewDb(db, "postgres"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM fraud_cases GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("AUTO_APPROVED", 3).
			AddRow("AUTO_BLOCKED", 1).
			AddRow("UNDER_INVESTIGATION", 2))

	meter := trafficmeter.New()
	meter.Add(10)
	bus := pushbus.New(4)
	sub := bus.Subscribe(pushbus.TopicStats)

	b := &triage.StatsBroadcaster{Store: store, Meter: meter, Bus: bus, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	b.Run(ctx)

	snap := b.Snapshot()
	assert.Equal(t, 6, snap.TotalCases)
	assert.Equal(t, 3, snap.AutoApproved)
	assert.Equal(t, 1, snap.AutoBlocked)
	assert.Equal(t, 2, snap.ManualCases)

	select {
	case f := <-sub.C():
		frame := f.Payload.(triage.StatsFrame)
		assert.Equal(t, snap, frame)
	default:
		t.Fatal("expected a stats frame to be published")
	}
}
