package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/pushbus"
)

// Resolution is the Resolution Ingress: a human reviewer's final
// decision, closing a case.
type Resolution struct {
	Store *casestore.Store
	Bus   *pushbus.Bus
	Log   zerolog.Logger
}

type resolveRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

// Resolve handles POST /dashboard/cases/{case_id}/resolve.
func (h *Resolution) Resolve(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "case_id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, ErrBadPayload)
		return
	}

	updated, err := h.Store.Update(r.Context(), caseID, func(current *model.Case) (*model.Case, error) {
		next := *current
		next.Status = model.StatusResolved
		decision := req.Decision
		next.HumanDecision = &decision
		notes := req.Notes
		next.ResolutionNotes = &notes
		return &next, nil
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Bus.Publish(pushbus.Frame{Topic: pushbus.TopicCaseEvents, Payload: updated})
	writeJSON(w, http.StatusOK, updated)
}
