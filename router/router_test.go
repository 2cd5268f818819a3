package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/deriv-labs/fraud-triage/config"
	"github.com/deriv-labs/fraud-triage/observability"
	"github.com/deriv-labs/fraud-triage/pushbus"
	"github.com/deriv-labs/fraud-triage/router"
	"github.com/deriv-labs/fraud-triage/triage"
)

func TestHealthzAndMetricsAreMounted(t *testing.T) {
	cfg := &config.Config{}
	bus := pushbus.New(1)
	h := router.New(cfg, zerolog.Nop(), router.Deps{
		Bus:         bus,
		Broadcaster: &triage.StatsBroadcaster{Bus: bus},
		Metrics:     observability.New(),
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDashboardRoutesAreMountedUnderAPIV1(t *testing.T) {
	cfg := &config.Config{}
	bus := pushbus.New(1)
	h := router.New(cfg, zerolog.Nop(), router.Deps{
		Bus:         bus,
		Broadcaster: &triage.StatsBroadcaster{Bus: bus},
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/queue", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code, "unprefixed dashboard routes must not be reachable")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/queue", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.NotEqual(t, http.StatusNotFound, w.Code, "dashboard routes must be reachable under /api/v1")
}

func TestCORSPreflightIsHandled(t *testing.T) {
	cfg := &config.Config{}
	bus := pushbus.New(1)
	h := router.New(cfg, zerolog.Nop(), router.Deps{
		Bus:         bus,
		Broadcaster: &triage.StatsBroadcaster{Bus: bus},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard/stats", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
