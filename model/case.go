package model

import (
	"errors"
	"time"
)

// Decision is the outcome of a Rule Engine evaluation.
type Decision string

const (
	DecisionApprove    Decision = "APPROVE"
	DecisionBlock      Decision = "BLOCK"
	DecisionInvestigate Decision = "INVESTIGATE"
)

// RuleResult is the transient output of evaluating the Rule Engine
// against one TransactionEvent.
type RuleResult struct {
	Decision   Decision
	Confidence float64
	RiskScore  float64
	Signals    map[string]interface{}
}

// IsDefinitive reports whether the decision is APPROVE or BLOCK, whether
// from a Phase A rule or from the Phase B thresholds, rather than the
// gray-area INVESTIGATE.
func (r RuleResult) IsDefinitive() bool {
	return r.Decision == DecisionApprove || r.Decision == DecisionBlock
}

// CaseStatus is the authoritative state of a Case record.
type CaseStatus string

const (
	StatusAutoApproved        CaseStatus = "AUTO_APPROVED"
	StatusAutoBlocked         CaseStatus = "AUTO_BLOCKED"
	StatusUnderInvestigation  CaseStatus = "UNDER_INVESTIGATION"
	StatusEscalated           CaseStatus = "ESCALATED"
	StatusResolved            CaseStatus = "RESOLVED"
)

// TriggeredBy identifies what produced or mutated a Case.
type TriggeredBy string

const (
	TriggeredByRuleEngine   TriggeredBy = "RULE_ENGINE"
	TriggeredByMLModel      TriggeredBy = "ML_MODEL"
	TriggeredByPatternMatch TriggeredBy = "PATTERN_MATCH"
	TriggeredByManualFlag   TriggeredBy = "MANUAL_FLAG"
)

// Investigation layer names, unioned in insertion order onto a Case.
const (
	LayerRuleBased    = "RULE_BASED"
	LayerMLModels     = "ML_MODELS"
	LayerLLMReasoning = "LLM_REASONING"
)

// ErrIllegalTransition is returned when a status mutation does not
// follow one of the legal edges of the state machine below.
var ErrIllegalTransition = errors.New("illegal case status transition")

// legalTransitions enumerates, for each current status, the set of
// statuses it may move to. RESOLVED has no outgoing edges — terminal.
var legalTransitions = map[CaseStatus]map[CaseStatus]bool{
	StatusAutoApproved: {
		StatusResolved: true,
	},
	StatusAutoBlocked: {
		StatusResolved: true,
	},
	StatusUnderInvestigation: {
		StatusAutoApproved:       true,
		StatusAutoBlocked:        true,
		StatusUnderInvestigation: true, // AI verdict still ambiguous — evidence merges, state unchanged
		StatusEscalated:          true,
		StatusResolved:           true,
	},
	StatusEscalated: {
		StatusEscalated: true, // ring correlator may re-tag an already-escalated case
		StatusResolved:  true,
	},
}

// CanTransition reports whether moving a Case from `from` to `to` is a
// legal edge in the state machine.
func CanTransition(from, to CaseStatus) bool {
	edges, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Case is the persistent, authoritative record of one triage outcome.
type Case struct {
	CaseID               string
	UserID                string
	TriggerTransactionID  string

	CreatedAt time.Time
	UpdatedAt time.Time
	ResolvedAt *time.Time

	Status CaseStatus

	ConfidenceScore  float64
	FraudProbability float64

	TriggeredBy          TriggeredBy
	InvestigationLayers  []string

	DetectionSignals    map[string]interface{}
	TransactionSummary  map[string]interface{}
	IdentityFlags       map[string]interface{}
	BehavioralFlags     map[string]interface{}
	NetworkFlags        map[string]interface{}
	AISignals           map[string]interface{}

	AIReasoning        *string
	AIRecommendations  *string

	AssignedTo       *string
	HumanDecision    *string
	ResolutionNotes  *string

	RelatedAccounts []string
	FraudRingID     *string
}

// UnionLayers appends entries from extra to layers, preserving
// first-seen order and deduping under string equality. A nil layers
// slice is treated as the empty set.
func UnionLayers(layers []string, extra ...string) []string {
	seen := make(map[string]bool, len(layers)+len(extra))
	out := make([]string, 0, len(layers)+len(extra))
	for _, l := range layers {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range extra {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// ClampUnit clamps v into [0,1] for storage in a confidence or
// probability field.
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
