package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
	"github.com/deriv-labs/fraud-triage/pushbus"
)

// AIUpdate is the AI Update Ingress: it applies an external
// investigator's verdict onto an existing case under the
// state-machine rules.
type AIUpdate struct {
	Store *casestore.Store
	Bus   *pushbus.Bus
	Log   zerolog.Logger
}

type aiUpdateRequest struct {
	CaseID              string                 `json:"case_id"`
	Decision            *string                `json:"decision"`
	ConfidenceScore     *float64               `json:"confidence_score"`
	AIReasoning         *string                `json:"ai_reasoning"`
	AIRecommendations   *string                `json:"ai_recommendations"`
	InvestigationLayers []string               `json:"investigation_layers"`
	DetectionSignals    map[string]interface{} `json:"detection_signals"`
	AISignals           map[string]interface{} `json:"ai_signals"`
}

// Apply handles POST /fraud-cases/ai-update.
func (h *AIUpdate) Apply(w http.ResponseWriter, r *http.Request) {
	var req aiUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, ErrBadPayload)
		return
	}
	if req.CaseID == "" {
		writeError(w, h.Log, ErrBadPayload)
		return
	}

	updated, err := h.Store.Update(r.Context(), req.CaseID, func(current *model.Case) (*model.Case, error) {
		next := *current

		if req.Decision != nil {
			switch model.CaseStatus(*req.Decision) {
			case model.StatusAutoApproved:
				next.Status = model.StatusAutoApproved
			case model.StatusAutoBlocked:
				next.Status = model.StatusAutoBlocked
			default:
				next.Status = model.StatusUnderInvestigation
			}
		}
		if req.ConfidenceScore != nil {
			next.ConfidenceScore = model.ClampUnit(*req.ConfidenceScore)
		}
		if req.AIReasoning != nil {
			next.AIReasoning = req.AIReasoning
		}
		if req.AIRecommendations != nil {
			next.AIRecommendations = req.AIRecommendations
		}
		if len(req.InvestigationLayers) > 0 {
			next.InvestigationLayers = model.UnionLayers(current.InvestigationLayers, req.InvestigationLayers...)
		}
		if req.DetectionSignals != nil {
			next.DetectionSignals = mergeMaps(current.DetectionSignals, req.DetectionSignals)
		}
		if req.AISignals != nil {
			next.AISignals = mergeMaps(current.AISignals, req.AISignals)
		}

		return &next, nil
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Bus.Publish(pushbus.Frame{Topic: pushbus.TopicCaseEvents, Payload: updated})
	writeJSON(w, http.StatusOK, updated)
}

func mergeMaps(existing, incoming map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}
