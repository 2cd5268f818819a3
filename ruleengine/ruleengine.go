// Package ruleengine implements a two-phase rule/scoring engine: a
// short-circuiting set of definitive rules, falling through to an
// additive risk score when none match.
package ruleengine

import (
	"github.com/shopspring/decimal"

	"github.com/deriv-labs/fraud-triage/model"
)

const (
	approveThreshold = 0.15
	blockThreshold   = 0.75

	vpnHighRiskDelta      = 0.25
	multipleDevicesDelta  = 0.15
	rapidChurnDelta       = 0.30
	documentIssuesDelta   = 0.20

	sharedDeviceThreshold   = 5
	documentScoreThreshold  = 0.70
	incomeMultiplier        = 15
)

// Evaluate runs the Phase A / Phase B rules against ev. tracker supplies
// the velocity check's sliding-window state; pass nil to skip it (the
// corresponding +0.30 contribution is simply never applied).
func Evaluate(ev model.TransactionEvent, tracker *VelocityTracker) model.RuleResult {
	if result, ok := evaluatePhaseA(ev); ok {
		return result
	}
	return evaluatePhaseB(ev, tracker)
}

// evaluatePhaseA evaluates the definitive, short-circuiting rules in
// order. The first match wins; later rules are not evaluated.
func evaluatePhaseA(ev model.TransactionEvent) (model.RuleResult, bool) {
	if ev.Ip.SanctionedCountry {
		return model.RuleResult{
			Decision:   model.DecisionBlock,
			Confidence: 1.00,
			Signals: map[string]interface{}{
				"sanctions_match": true,
			},
		}, true
	}

	income := ev.User.DeclaredMonthlyIncome
	if income.IsPositive() {
		threshold := income.Mul(decimal.NewFromInt(incomeMultiplier))
		if ev.Amount.GreaterThan(threshold) {
			return model.RuleResult{
				Decision:   model.DecisionBlock,
				Confidence: 0.98,
				Signals: map[string]interface{}{
					"income_mismatch": true,
					"declared_monthly_income": income.String(),
					"amount": ev.Amount.String(),
				},
			}, true
		}
	}

	return model.RuleResult{}, false
}

// evaluatePhaseB computes the additive risk score when no Phase A rule
// matched, then thresholds it into a decision.
func evaluatePhaseB(ev model.TransactionEvent, tracker *VelocityTracker) model.RuleResult {
	risk := 0.0
	signals := map[string]interface{}{}

	if ev.Ip.VPN && ev.Ip.HighRiskCountry {
		risk += vpnHighRiskDelta
		signals["vpn_detected"] = true
	}

	if ev.Device.TotalUsersCount > sharedDeviceThreshold {
		risk += multipleDevicesDelta
		signals["multiple_devices"] = ev.Device.TotalUsersCount
	}

	if tracker != nil && tracker.Observe(ev) {
		risk += rapidChurnDelta
		signals["rapid_churn"] = true
	}

	if ev.Document.ConfidenceScore < documentScoreThreshold {
		risk += documentIssuesDelta
		signals["document_issues"] = ev.Document.ConfidenceScore
	}

	var decision model.Decision
	var confidence float64
	switch {
	case risk < approveThreshold:
		decision = model.DecisionApprove
		confidence = 0.95
	case risk > blockThreshold:
		decision = model.DecisionBlock
		confidence = 0.96
	default:
		decision = model.DecisionInvestigate
		confidence = 0.50
	}

	return model.RuleResult{
		Decision:   decision,
		Confidence: confidence,
		RiskScore:  risk,
		Signals:    signals,
	}
}
