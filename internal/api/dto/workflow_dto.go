package dto

import (
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/service"
	"github.com/spec-kit/helpdesk-engine/internal/workflow"
)

// WorkflowEvaluationResponse is what the dashboard renders after an
// evaluation.
type WorkflowEvaluationResponse struct {
	AppliedRuleID   *string                   `json:"applied_rule_id"`
	AppliedRuleName *string                   `json:"applied_rule_name,omitempty"`
	MatchedRuleIDs  []string                  `json:"matched_rule_ids"`
	Ticket          TicketDetailResponse      `json:"ticket"`
	Labels          []workflow.Label          `json:"labels"`
	Recommendations []workflow.Recommendation `json:"recommendations"`
	Workload        WorkloadResponse          `json:"workload"`
	Degraded        bool                      `json:"degraded"`
	Persisted       bool                      `json:"persisted"`
}

// WorkloadResponse reports capacity use.
type WorkloadResponse struct {
	CurrentLoad int `json:"current_load"`
	MaxCapacity int `json:"max_capacity"`
	Efficiency  int `json:"efficiency"`
}

// AssigneeResponse is a candidate assignee and their open ticket count.
type AssigneeResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	OpenCount int         `json:"open_tickets"`
}

// NewWorkflowEvaluation maps a service evaluation.
func NewWorkflowEvaluation(eval *service.Evaluation) WorkflowEvaluationResponse {
	resp := WorkflowEvaluationResponse{
		MatchedRuleIDs:  make([]string, 0, len(eval.MatchedRules)),
		Ticket:          NewTicketDetail(eval.Ticket),
		Labels:          orEmpty(eval.Labels),
		Recommendations: orEmpty(eval.Recommendations),
		Workload: WorkloadResponse{
			CurrentLoad: eval.Workload.CurrentLoad,
			MaxCapacity: eval.Workload.MaxCapacity,
			Efficiency:  eval.Workload.Efficiency,
		},
		Degraded:  eval.Degraded,
		Persisted: eval.Persisted,
	}
	if eval.AppliedRule != nil {
		resp.AppliedRuleID = &eval.AppliedRule.ID
		resp.AppliedRuleName = &eval.AppliedRule.Name
	}
	for _, rule := range eval.MatchedRules {
		resp.MatchedRuleIDs = append(resp.MatchedRuleIDs, rule.ID)
	}
	return resp
}

// NewAssignee maps a candidate load.
func NewAssignee(c service.CandidateLoad) AssigneeResponse {
	return AssigneeResponse{
		ID:        c.User.ID,
		Name:      c.User.Name,
		Role:      c.User.Role,
		OpenCount: c.OpenCount,
	}
}
