// Package handler implements the HTTP surface: the dashboard REST
// endpoints, the AI Update and Resolution ingresses, and the
// WebSocket push transport.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/triage"
)

// Dashboard serves the read-side of the fraud case surface: stats,
// the investigation queue, and single-case lookup.
type Dashboard struct {
	Store       *casestore.Store
	Broadcaster *triage.StatsBroadcaster
	Log         zerolog.Logger
}

// Stats handles GET /dashboard/stats.
func (d *Dashboard) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Broadcaster.Snapshot())
}

// Queue handles GET /dashboard/queue.
func (d *Dashboard) Queue(w http.ResponseWriter, r *http.Request) {
	cases, err := d.Store.ListByStatusDescCreated(r.Context(), []model.CaseStatus{
		model.StatusUnderInvestigation, model.StatusEscalated,
	})
	if err != nil {
		writeError(w, d.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

// GetCase handles GET /dashboard/cases/{case_id} and GET
// /fraud-cases/{case_id}.
func (d *Dashboard) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "case_id")
	c, err := d.Store.GetByCaseID(r.Context(), caseID)
	if err != nil {
		writeError(w, d.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
