package workflow

import (
	"cmp"
	"slices"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// EngineOptions configures an Engine. Zero values use defaults.
type EngineOptions struct {
	Clock      Clock
	NewID      IDGenerator
	Classifier Classifier
}

// Engine matches workflow rules against tickets and applies the winner.
type Engine struct {
	applier    *Applier
	classifier Classifier
}

// NewEngine constructs an engine.
func NewEngine(opts EngineOptions) *Engine {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Engine{
		applier:    NewApplier(opts.Clock, opts.NewID),
		classifier: classifier,
	}
}

// Input is everything one evaluation needs.
type Input struct {
	Ticket     *domain.Ticket
	Rules      []domain.WorkflowRule
	Candidates []domain.User
	Workload   Workload
}

// Result is the outcome of an evaluation.
type Result struct {
	AppliedRule     *domain.WorkflowRule
	MatchedRules    []domain.WorkflowRule
	Ticket          *domain.Ticket
	Labels          []Label
	Recommendations []Recommendation
	Workload        WorkloadBalance
}

// Evaluate finds the active rules matching the ticket, applies only the
// highest-priority one and computes advisory recommendations. Equal
// priorities keep their input order. The input ticket is never modified.
func (e *Engine) Evaluate(in Input) Result {
	matched := MatchingRules(in.Ticket, in.Rules)

	res := Result{
		MatchedRules: matched,
		Workload: WorkloadBalance{
			Workload:   in.Workload,
			Efficiency: in.Workload.Efficiency(),
		},
	}
	if len(matched) > 0 {
		top := matched[0]
		res.AppliedRule = &top
		res.Ticket = e.applier.Apply(in.Ticket, top.Actions, in.Candidates)
	} else {
		res.Ticket = in.Ticket.Clone()
	}

	var skipped []domain.WorkflowRule
	if len(matched) > 1 {
		skipped = matched[1:]
	}
	res.Labels = e.classifier.Classify(in.Ticket)
	res.Recommendations = recommend(in.Ticket, res.Labels, in.Workload, skipped)
	return res
}

// MatchingRules returns the active rules whose conditions hold, ordered by
// priority descending with a stable tie-break.
func MatchingRules(t *domain.Ticket, rules []domain.WorkflowRule) []domain.WorkflowRule {
	matched := make([]domain.WorkflowRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if Matches(t, rule.Conditions) {
			matched = append(matched, rule)
		}
	}
	slices.SortStableFunc(matched, func(a, b domain.WorkflowRule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return matched
}
