package repository

import (
	"time"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// DemoUsers is a small staffed helpdesk for local runs.
func DemoUsers() []domain.User {
	return []domain.User{
		{ID: "demo-client", Name: "Demo Client", Email: "client@example.com", Role: domain.RoleClient, Active: true},
		{ID: "demo-l1-a", Name: "Avery L1", Email: "avery@example.com", Role: domain.RoleL1, Active: true},
		{ID: "demo-l1-b", Name: "Blake L1", Email: "blake@example.com", Role: domain.RoleL1, Active: true},
		{ID: "demo-l2", Name: "Casey L2", Email: "casey@example.com", Role: domain.RoleL2, Active: true},
		{ID: "demo-l3", Name: "Drew L3", Email: "drew@example.com", Role: domain.RoleL3, Active: true},
		{ID: "demo-admin", Name: "Emery Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Active: true},
	}
}

// DemoRules escalates critical tickets and tags billing questions.
func DemoRules(now time.Time) []domain.WorkflowRule {
	return []domain.WorkflowRule{
		{
			ID:          "demo-critical",
			Name:        "Escalate critical tickets",
			Description: "Critical tickets go straight to the next level.",
			Priority:    100,
			IsActive:    true,
			Conditions:  []domain.Condition{{Field: "priority", Operator: domain.OperatorEquals, Value: "critical"}},
			Actions: domain.Actions{
				domain.EscalateAction{Target: domain.EscalateNextLevel},
				domain.AddTagAction{Tag: "urgent"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "demo-billing",
			Name:        "Route billing questions",
			Description: "Billing tickets are tagged and auto-assigned.",
			Priority:    10,
			IsActive:    true,
			Conditions:  []domain.Condition{{Field: "category", Operator: domain.OperatorEquals, Value: "billing"}},
			Actions: domain.Actions{
				domain.AddTagAction{Tag: "billing"},
				domain.AssignAction{Assignee: domain.AssignAuto},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
