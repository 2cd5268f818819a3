package router

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/config"
	"github.com/deriv-labs/fraud-triage/handler"
	trmw "github.com/deriv-labs/fraud-triage/middleware"
	"github.com/deriv-labs/fraud-triage/observability"
	"github.com/deriv-labs/fraud-triage/pushbus"
	"github.com/deriv-labs/fraud-triage/triage"
)

// Deps bundles the wired components the router mounts handlers against.
type Deps struct {
	Store       *casestore.Store
	Bus         *pushbus.Bus
	Broadcaster *triage.StatsBroadcaster
	Metrics     *observability.Metrics
}

// New returns a configured chi Router with the full middleware chain
// and all dashboard/ingress routes mounted.
func New(cfg *config.Config, appLogger zerolog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware chain (order matters) ---
	r.Use(trmw.CORSMiddleware([]string{"*"}))
	r.Use(trmw.SecurityHeadersMiddleware)
	r.Use(trmw.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger, deps.Metrics))
	r.Use(mwMaxBodySize(1 * 1024 * 1024))

	// --- Health + metrics (no auth) ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"fraud-triage"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"fraud-triage"}`))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	dashboard := &handler.Dashboard{Store: deps.Store, Broadcaster: deps.Broadcaster, Log: appLogger}
	resolution := &handler.Resolution{Store: deps.Store, Bus: deps.Bus, Log: appLogger}
	aiUpdate := &handler.AIUpdate{Store: deps.Store, Bus: deps.Bus, Log: appLogger}
	ws := &handler.WebSocket{Bus: deps.Bus, Log: appLogger}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/dashboard/stats", dashboard.Stats)
		r.Get("/dashboard/queue", dashboard.Queue)
		r.Get("/dashboard/cases/{case_id}", dashboard.GetCase)
		r.Post("/dashboard/cases/{case_id}/resolve", resolution.Resolve)

		r.Post("/fraud-cases/ai-update", aiUpdate.Apply)
		r.Get("/fraud-cases/{case_id}", dashboard.GetCase)
	})

	r.Get("/ws-fraud", ws.Serve)

	return r
}

// mwMaxBodySize returns middleware that limits the request body size.
func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			max := maxBytes
			if v := os.Getenv("TRIAGE_MAX_BODY_BYTES"); v != "" {
				if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
					max = parsed
				}
			}

			if r.ContentLength > 0 && r.ContentLength > max {
				http.Error(w, `{"error":"request_too_large","message":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			reqID := r.Header.Get("X-Request-ID")
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", reqID).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")

			if metrics != nil {
				route := chi.RouteContext(r.Context()).RoutePattern()
				if route == "" {
					route = r.URL.Path
				}
				metrics.ObserveHTTP(route, strconv.Itoa(rw.Status()), dur.Seconds())
			}
		})
	}
}
