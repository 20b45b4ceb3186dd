package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util/errorutil"
)

func criticalRule() domain.WorkflowRule {
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

func TestWorkflowApplyPersistsTopRule(t *testing.T) {
	f := newFixture(t)
	f.rules.Put(criticalRule())
	f.rules.Put(domain.WorkflowRule{
		ID: "r-tag", Name: "Tag everything", Priority: 5, IsActive: true,
		Actions: domain.Actions{domain.AddTagAction{Tag: "triaged"}},
	})
	ticket := f.create(t, TicketCreateInput{Title: "Payroll export broken", Priority: domain.TicketPriorityCritical})

	eval, err := f.workflow.Apply(context.Background(), nil, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, eval.AppliedRule)
	assert.Equal(t, "r-critical", eval.AppliedRule.ID)
	assert.True(t, eval.Persisted)
	assert.False(t, eval.Degraded)

	stored := f.stored(t, ticket.ID)
	assert.Equal(t, domain.LevelL2, stored.CurrentLevel)
	assert.Equal(t, []domain.Level{domain.LevelL1, domain.LevelL2}, stored.AvailableToLevels)
	assert.Empty(t, stored.Tags, "lower priority rule is not applied")
	assert.Equal(t, int64(2), stored.Version)
	require.Len(t, stored.EscalationHistory, 1)
	assert.Equal(t, domain.SystemActorID, stored.EscalationHistory[0].FromUser)
	assert.Equal(t, 1, countKind(stored.ActivityLog, domain.ActivityWorkflowApplied))
	assert.Equal(t, domain.SystemActorID, stored.ActivityLog[len(stored.ActivityLog)-1].ActorID)
	assert.Equal(t, domain.NotificationEscalation, stored.ClientNotifications[len(stored.ClientNotifications)-1].Type)
	assert.Len(t, f.eventsOf(events.EventWorkflowApplied), 1)
}

func TestWorkflowEvaluateIsDryRun(t *testing.T) {
	f := newFixture(t)
	f.rules.Put(criticalRule())
	ticket := f.create(t, TicketCreateInput{Priority: domain.TicketPriorityCritical})

	first, err := f.workflow.Evaluate(context.Background(), &alice, ticket.ID)
	require.NoError(t, err)
	second, err := f.workflow.Evaluate(context.Background(), &alice, ticket.ID)
	require.NoError(t, err)

	require.NotNil(t, first.AppliedRule)
	assert.Equal(t, first.AppliedRule.ID, second.AppliedRule.ID)
	assert.Equal(t, first.Ticket.CurrentLevel, second.Ticket.CurrentLevel)
	assert.False(t, first.Persisted)

	stored := f.stored(t, ticket.ID)
	assert.Equal(t, domain.LevelL1, stored.CurrentLevel)
	assert.Equal(t, int64(1), stored.Version)
}

func TestWorkflowApplyWithoutMatchWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.rules.Put(criticalRule())
	ticket := f.create(t, TicketCreateInput{Priority: domain.TicketPriorityLow})

	eval, err := f.workflow.Apply(context.Background(), nil, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, eval.AppliedRule)
	assert.False(t, eval.Persisted)
	assert.Equal(t, int64(1), f.stored(t, ticket.ID).Version)
}

type failingRuleRepo struct{}

func (failingRuleRepo) ListActive(context.Context) ([]domain.WorkflowRule, error) {
	return nil, errors.New("rule store timeout")
}

func TestWorkflowEvaluateFailsSoft(t *testing.T) {
	f := newFixture(t)
	svc := NewWorkflowService(WorkflowDependencies{
		TicketRepo:  f.tickets,
		RuleRepo:    failingRuleRepo{},
		UserRepo:    f.users,
		Assignment:  f.assignment,
		MaxCapacity: 15,
	})
	ticket := f.create(t, TicketCreateInput{
		Title:    "Email outage for the whole office",
		Priority: domain.TicketPriorityCritical,
	})

	eval, err := svc.Evaluate(context.Background(), &alice, ticket.ID)
	require.NoError(t, err)
	assert.True(t, eval.Degraded)
	assert.Nil(t, eval.AppliedRule)
	assert.Empty(t, eval.MatchedRules)
	assert.NotEmpty(t, eval.Recommendations)
	assert.Equal(t, 100, eval.Workload.Efficiency)

	_, err = svc.ListRules(context.Background())
	assert.True(t, apperrors.IsDependency(err), "direct rule listing is not fail-soft")
}

func TestWorkflowWorkloadUsesAssignee(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		tk := f.create(t, TicketCreateInput{})
		_, err := f.svc.Take(context.Background(), &alice, tk.ID)
		require.NoError(t, err)
	}
	ticket := f.create(t, TicketCreateInput{})
	_, err := f.svc.Take(context.Background(), &alice, ticket.ID)
	require.NoError(t, err)

	eval, err := f.workflow.Evaluate(context.Background(), &ada, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Workload{CurrentLoad: 3, MaxCapacity: 15}, eval.Workload.Workload)
	assert.Equal(t, 80, eval.Workload.Efficiency)
}

func TestWorkflowApplyRejectsDeescalation(t *testing.T) {
	f := newFixture(t)
	f.rules.Put(domain.WorkflowRule{
		ID: "r-down", Name: "Send back", Priority: 1, IsActive: true,
		Conditions: []domain.Condition{{Field: "currentLevel", Operator: domain.OperatorEquals, Value: "l2"}},
		Actions:    domain.Actions{domain.EscalateAction{Target: "l1"}},
	})
	ticket := f.create(t, TicketCreateInput{})
	_, err := f.svc.Escalate(context.Background(), &alice, ticket.ID, domain.LevelL2, "hard")
	require.NoError(t, err)

	_, err = f.workflow.Apply(context.Background(), nil, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, domain.LevelL2, f.stored(t, ticket.ID).CurrentLevel)
}

func TestWorkflowApplyAutoAssignOpensTicket(t *testing.T) {
	f := newFixture(t)
	f.rules.Put(domain.WorkflowRule{
		ID: "r-auto", Name: "Auto assign", Priority: 1, IsActive: true,
		Actions: domain.Actions{domain.AssignAction{Assignee: domain.AssignAuto}},
	})
	ticket := f.create(t, TicketCreateInput{})

	_, err := f.workflow.Apply(context.Background(), nil, ticket.ID)
	require.NoError(t, err)

	stored := f.stored(t, ticket.ID)
	require.True(t, stored.HasAssignee())
	assert.Equal(t, alice.ID, *stored.AssignedTo)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.False(t, stored.IsAvailableForAssignment)
}

func TestWorkflowApplyResolvingSetsResolvedDate(t *testing.T) {
	f := newFixture(t)
	f.rules.Put(domain.WorkflowRule{
		ID: "r-close", Name: "Auto resolve duplicates", Priority: 1, IsActive: true,
		Conditions: []domain.Condition{{Field: "title", Operator: domain.OperatorContains, Value: "DUPLICATE"}},
		Actions:    domain.Actions{domain.ChangeStatusAction{Status: domain.TicketStatusResolved}},
	})
	ticket := f.create(t, TicketCreateInput{Title: "duplicate of #12"})
	taken, err := f.svc.Take(context.Background(), &alice, ticket.ID)
	require.NoError(t, err)

	_, err = f.workflow.Apply(context.Background(), nil, ticket.ID)
	require.NoError(t, err)

	stored := f.stored(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	require.NotNil(t, stored.ResolvedDate)
	assert.True(t, stored.ResolvedDate.After(taken.LastUpdated))
	assert.Equal(t, *stored.ResolvedDate, stored.LastUpdated)
}

func TestWorkflowApplyRejectsIllegalStatusChanges(t *testing.T) {
	cases := []struct {
		name   string
		status domain.TicketStatus
	}{
		{name: "in-progress without an assignee", status: domain.TicketStatusInProgress},
		{name: "resolved without work", status: domain.TicketStatusResolved},
		{name: "closed without resolution", status: domain.TicketStatusClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.rules.Put(domain.WorkflowRule{
				ID: "r-status", Name: "Force status", Priority: 1, IsActive: true,
				Actions: domain.Actions{domain.ChangeStatusAction{Status: tc.status}},
			})
			ticket := f.create(t, TicketCreateInput{})

			_, err := f.workflow.Apply(context.Background(), nil, ticket.ID)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))

			stored := f.stored(t, ticket.ID)
			assert.Equal(t, domain.TicketStatusUnassigned, stored.Status)
			assert.Nil(t, stored.ResolvedDate)
			assert.Equal(t, ticket.Version, stored.Version)

			taken, err := f.svc.Take(context.Background(), &alice, ticket.ID)
			require.NoError(t, err, "ticket stays workable")
			assert.Equal(t, domain.TicketStatusInProgress, taken.Status)
		})
	}
}

func TestWorkflowApplyAssignAndStartWork(t *testing.T) {
	f := newFixture(t)
	f.rules.Put(domain.WorkflowRule{
		ID: "r-start", Name: "Assign and start", Priority: 1, IsActive: true,
		Actions: domain.Actions{
			domain.AssignAction{Assignee: domain.AssignAuto},
			domain.ChangeStatusAction{Status: domain.TicketStatusInProgress},
		},
	})
	ticket := f.create(t, TicketCreateInput{})

	_, err := f.workflow.Apply(context.Background(), nil, ticket.ID)
	require.NoError(t, err)

	stored := f.stored(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
	require.True(t, stored.HasAssignee())

	resolved, err := f.svc.Resolve(context.Background(), &alice, ticket.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Status)
}
