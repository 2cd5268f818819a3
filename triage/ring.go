package triage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
)

// correlateFraudRing is a narrow, best-effort heuristic, not a graph
// database or ML clustering system: it scans currently open cases for
// ones sharing the triggering event's device_id or ip_address, and if
// at least two other cases match, tags every case in the group with a
// deterministic fraud_ring_id. Failures are logged and swallowed —
// this never touches status and never blocks the triage tick.
func correlateFraudRing(ctx context.Context, store *casestore.Store, log zerolog.Logger, current *model.Case, ev model.TransactionEvent) {
	open, err := store.ListByStatus(ctx, []model.CaseStatus{model.StatusUnderInvestigation, model.StatusEscalated})
	if err != nil {
		log.Warn().Err(err).Msg("fraud ring correlation: list open cases failed")
		return
	}

	matches := []*model.Case{current}
	for _, c := range open {
		if c.CaseID == current.CaseID {
			continue
		}
		if sharesFingerprint(c, ev) {
			matches = append(matches, c)
		}
	}
	if len(matches) < 3 { // current + at least 2 others
		return
	}

	ringID := ringID(ev)
	userSet := map[string]bool{}
	for _, c := range matches {
		userSet[c.UserID] = true
	}

	for _, c := range matches {
		related := relatedAccountsFor(c.UserID, userSet)
		_, err := store.Update(ctx, c.CaseID, func(cur *model.Case) (*model.Case, error) {
			next := *cur
			next.RelatedAccounts = related
			next.FraudRingID = &ringID
			return &next, nil
		})
		if err != nil {
			log.Warn().Err(err).Str("case_id", c.CaseID).Msg("fraud ring correlation: tag update failed")
		}
	}
}

func sharesFingerprint(c *model.Case, ev model.TransactionEvent) bool {
	if c.NetworkFlags == nil {
		return false
	}
	if deviceID, ok := c.NetworkFlags["device_id"].(string); ok && ev.DeviceID != "" && deviceID == ev.DeviceID {
		return true
	}
	if ip, ok := c.NetworkFlags["ip_address"].(string); ok && ev.IPAddress != "" && ip == ev.IPAddress {
		return true
	}
	return false
}

func relatedAccountsFor(userID string, userSet map[string]bool) []string {
	out := make([]string, 0, len(userSet))
	for u := range userSet {
		if u != userID {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func ringID(ev model.TransactionEvent) string {
	parts := []string{ev.DeviceID, ev.IPAddress}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "RING-" + hex.EncodeToString(sum[:])[:12]
}
