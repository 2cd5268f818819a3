package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
)

// ErrBadPayload is returned by handlers when a request body fails
// validation — unparseable JSON (including a non-numeric confidence) or
// a missing case_id. An out-of-range numeric confidence is clamped, not
// rejected.
var ErrBadPayload = errors.New("handler: bad payload")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors onto HTTP status codes.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, casestore.ErrCaseNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "case_not_found"})
	case errors.Is(err, model.ErrIllegalTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "illegal_transition"})
	case errors.Is(err, ErrBadPayload):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_payload", "message": err.Error()})
	default:
		log.Error().Err(err).Msg("unhandled handler error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	}
}
