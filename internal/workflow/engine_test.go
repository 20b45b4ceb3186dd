package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(EngineOptions{Clock: fixedClock, NewID: sequentialIDs()})
}

func criticalEscalationRule() domain.WorkflowRule {
	return domain.WorkflowRule{
		ID:       "r-critical",
		Name:     "Escalate critical",
		Priority: 10,
		IsActive: true,
		Conditions: []domain.Condition{
			{Field: "priority", Operator: domain.OperatorEquals, Value: "critical"},
		},
		Actions: domain.Actions{domain.EscalateAction{Target: domain.EscalateNextLevel}},
	}
}

func TestEvaluateEscalatesCriticalTicket(t *testing.T) {
	tk := &domain.Ticket{ID: "t-1", Priority: domain.TicketPriorityCritical, CurrentLevel: domain.LevelL1, Status: domain.TicketStatusUnassigned}

	res := newTestEngine().Evaluate(Input{Ticket: tk, Rules: []domain.WorkflowRule{criticalEscalationRule()}})

	require.NotNil(t, res.AppliedRule)
	assert.Equal(t, "r-critical", res.AppliedRule.ID)
	assert.Equal(t, domain.LevelL2, res.Ticket.CurrentLevel)
	assert.Equal(t, domain.LevelL1, tk.CurrentLevel)
}

func TestEvaluateAppliesHighestPriorityOnly(t *testing.T) {
	low := domain.WorkflowRule{
		ID: "r-low", Name: "Tag everything", Priority: 5, IsActive: true,
		Actions: domain.Actions{domain.AddTagAction{Tag: "low"}},
	}
	high := domain.WorkflowRule{
		ID: "r-high", Name: "Tag critical", Priority: 10, IsActive: true,
		Conditions: []domain.Condition{{Field: "priority", Operator: domain.OperatorEquals, Value: "critical"}},
		Actions:    domain.Actions{domain.AddTagAction{Tag: "high"}},
	}
	tk := sampleTicket()
	tk.Tags = nil

	res := newTestEngine().Evaluate(Input{Ticket: tk, Rules: []domain.WorkflowRule{low, high}})

	require.NotNil(t, res.AppliedRule)
	assert.Equal(t, "r-high", res.AppliedRule.ID)
	assert.Equal(t, []string{"high"}, res.Ticket.Tags)
	require.Len(t, res.MatchedRules, 2)
	assert.Contains(t, res.Recommendations, Recommendation{
		Message: `Rule "Tag everything" also matched but was not applied`,
		Impact:  ImpactLow,
		Source:  "rule:r-low",
	})
}

func TestEvaluateTiesKeepInputOrder(t *testing.T) {
	first := domain.WorkflowRule{ID: "a", Priority: 3, IsActive: true, Actions: domain.Actions{domain.AddTagAction{Tag: "a"}}}
	second := domain.WorkflowRule{ID: "b", Priority: 3, IsActive: true, Actions: domain.Actions{domain.AddTagAction{Tag: "b"}}}

	res := newTestEngine().Evaluate(Input{Ticket: sampleTicket(), Rules: []domain.WorkflowRule{first, second}})
	require.NotNil(t, res.AppliedRule)
	assert.Equal(t, "a", res.AppliedRule.ID)

	res = newTestEngine().Evaluate(Input{Ticket: sampleTicket(), Rules: []domain.WorkflowRule{second, first}})
	assert.Equal(t, "b", res.AppliedRule.ID)
}

func TestEvaluateIgnoresInactiveRules(t *testing.T) {
	rule := criticalEscalationRule()
	rule.IsActive = false

	res := newTestEngine().Evaluate(Input{Ticket: sampleTicket(), Rules: []domain.WorkflowRule{rule}})
	assert.Nil(t, res.AppliedRule)
	assert.Empty(t, res.MatchedRules)
	assert.Equal(t, domain.LevelL1, res.Ticket.CurrentLevel)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	rules := []domain.WorkflowRule{
		criticalEscalationRule(),
		{ID: "r-respond", Name: "Auto reply", Priority: 10, IsActive: true,
			Actions: domain.Actions{domain.AutoRespondAction{Message: "hello"}, domain.AssignAction{Assignee: domain.AssignAuto}}},
	}
	in := Input{Ticket: sampleTicket(), Rules: rules, Candidates: candidates, Workload: Workload{CurrentLoad: 4, MaxCapacity: 15}}

	first := newTestEngine().Evaluate(in)
	second := newTestEngine().Evaluate(in)
	assert.Equal(t, first, second)
}

func TestEvaluateWithoutRulesStillRecommends(t *testing.T) {
	res := newTestEngine().Evaluate(Input{
		Ticket:   sampleTicket(),
		Workload: Workload{CurrentLoad: 12, MaxCapacity: 15},
	})
	assert.Nil(t, res.AppliedRule)
	assert.Equal(t, 20, res.Workload.Efficiency)
	assert.NotEmpty(t, res.Recommendations)

	var sources []string
	for _, r := range res.Recommendations {
		sources = append(sources, r.Source)
	}
	assert.Contains(t, sources, "pattern")
	assert.Contains(t, sources, "workload")
	assert.Contains(t, sources, "history")
}

func TestWorkloadEfficiency(t *testing.T) {
	tests := []struct {
		load Workload
		want int
	}{
		{Workload{CurrentLoad: 12, MaxCapacity: 15}, 20},
		{Workload{CurrentLoad: 0, MaxCapacity: 15}, 100},
		{Workload{CurrentLoad: 20, MaxCapacity: 15}, 0},
		{Workload{CurrentLoad: -5, MaxCapacity: 15}, 100},
		{Workload{CurrentLoad: 1, MaxCapacity: 0}, 0},
		{Workload{CurrentLoad: 1, MaxCapacity: 3}, 67},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.load.Efficiency(), "%+v", tt.load)
	}
}

func TestKeywordClassifierIsSorted(t *testing.T) {
	labels := NewKeywordClassifier().Classify(&domain.Ticket{Title: "Printer down", Description: "urgent: wifi also flaky"})
	var names []string
	for _, l := range labels {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"category:hardware", "category:network", LabelNegativeSentiment, LabelOutage}, names)
}
