package workflow

import (
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// Impact grades a recommendation.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Recommendation is advisory only and never applied automatically.
type Recommendation struct {
	Message string `json:"message"`
	Impact  Impact `json:"impact"`
	Source  string `json:"source"`
}

// nearCapacity is the load ratio at which redistribution is suggested.
const nearCapacity = 0.8

func recommend(t *domain.Ticket, labels []Label, load Workload, skipped []domain.WorkflowRule) []Recommendation {
	recs := []Recommendation{}
	has := func(name string) bool {
		for _, l := range labels {
			if l.Name == name {
				return true
			}
		}
		return false
	}

	urgent := t.Priority == domain.TicketPriorityHigh || t.Priority == domain.TicketPriorityCritical
	if has(LabelOutage) && urgent {
		if next, ok := t.CurrentLevel.Next(); ok {
			recs = append(recs, Recommendation{
				Message: fmt.Sprintf("Possible service outage reported: consider escalating to %s", strings.ToUpper(string(next))),
				Impact:  ImpactHigh,
				Source:  "pattern",
			})
		}
	}
	if has(LabelAccountAccess) {
		recs = append(recs, Recommendation{
			Message: "Account access issue detected: send the self-service password reset guide",
			Impact:  ImpactMedium,
			Source:  "pattern",
		})
	}
	if has(LabelNegativeSentiment) {
		recs = append(recs, Recommendation{
			Message: "Client sentiment looks negative: follow up personally",
			Impact:  ImpactMedium,
			Source:  "sentiment",
		})
	}
	for _, l := range labels {
		if category, ok := strings.CutPrefix(l.Name, categoryPrefix); ok {
			recs = append(recs, Recommendation{
				Message: fmt.Sprintf("Looks like a %s issue: route to %s specialists", category, category),
				Impact:  ImpactLow,
				Source:  "category",
			})
		}
	}
	if load.MaxCapacity > 0 && load.Ratio() >= nearCapacity {
		recs = append(recs, Recommendation{
			Message: fmt.Sprintf("Assignee near capacity (%d/%d): consider redistributing", load.CurrentLoad, load.MaxCapacity),
			Impact:  ImpactHigh,
			Source:  "workload",
		})
	}
	if n := len(t.EscalationHistory); n >= 2 {
		recs = append(recs, Recommendation{
			Message: fmt.Sprintf("Escalated %d times: capture the fix in the knowledge base", n),
			Impact:  ImpactLow,
			Source:  "history",
		})
	}
	for _, rule := range skipped {
		recs = append(recs, Recommendation{
			Message: fmt.Sprintf("Rule %q also matched but was not applied", rule.Name),
			Impact:  ImpactLow,
			Source:  "rule:" + rule.ID,
		})
	}
	return recs
}
