package observability_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deriv-labs/fraud-triage/observability"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := observability.New()
	m.EventsProcessed.WithLabelValues("parsed").Inc()
	m.CasesByStatus.WithLabelValues("AUTO_BLOCKED").Inc()
	m.TPS.Set(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	require.True(t, strings.Contains(body, "fraud_triage_events_processed_total"))
	require.True(t, strings.Contains(body, "fraud_triage_transactions_per_second 42"))
}
