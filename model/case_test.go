package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deriv-labs/fraud-triage/model"
)

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, model.ClampUnit(-0.5))
	assert.Equal(t, 1.0, model.ClampUnit(1.5))
	assert.Equal(t, 0.4, model.ClampUnit(0.4))
}

func TestUnionLayersPreservesOrderAndDedupes(t *testing.T) {
	got := model.UnionLayers([]string{model.LayerRuleBased}, model.LayerMLModels, model.LayerLLMReasoning, model.LayerRuleBased)
	assert.Equal(t, []string{model.LayerRuleBased, model.LayerMLModels, model.LayerLLMReasoning}, got)
}

func TestUnionLayersTreatsNilAsEmpty(t *testing.T) {
	got := model.UnionLayers(nil, model.LayerMLModels)
	assert.Equal(t, []string{model.LayerMLModels}, got)
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to model.CaseStatus
		want     bool
	}{
		{model.StatusUnderInvestigation, model.StatusAutoBlocked, true},
		{model.StatusUnderInvestigation, model.StatusAutoApproved, true},
		{model.StatusUnderInvestigation, model.StatusUnderInvestigation, true},
		{model.StatusUnderInvestigation, model.StatusEscalated, true},
		{model.StatusAutoApproved, model.StatusResolved, true},
		{model.StatusAutoBlocked, model.StatusUnderInvestigation, false},
		{model.StatusResolved, model.StatusUnderInvestigation, false},
		{model.StatusResolved, model.StatusResolved, false},
		{model.StatusEscalated, model.StatusAutoBlocked, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, model.CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestRuleResultIsDefinitive(t *testing.T) {
	assert.True(t, model.RuleResult{Decision: model.DecisionApprove}.IsDefinitive())
	assert.True(t, model.RuleResult{Decision: model.DecisionBlock}.IsDefinitive())
	assert.False(t, model.RuleResult{Decision: model.DecisionInvestigate}.IsDefinitive())
}
