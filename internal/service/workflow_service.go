package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	"github.com/spec-kit/helpdesk-engine/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util/errorutil"
)

// Evaluation outcomes recorded in metrics.
const (
	OutcomeMatched   = "matched"
	OutcomeNoMatch   = "no_match"
	OutcomeDegraded  = "degraded"
	OutcomePersisted = "persisted"
)

// WorkflowService runs the rule engine against stored tickets.
type WorkflowService struct {
	tickets     repository.TicketRepository
	rules       repository.WorkflowRuleRepository
	users       repository.UserRepository
	assignment  *AssignmentService
	engine      *workflow.Engine
	maxCapacity int
	rt          Runtime
}

// WorkflowDependencies bundles collaborators.
type WorkflowDependencies struct {
	TicketRepo  repository.TicketRepository
	RuleRepo    repository.WorkflowRuleRepository
	UserRepo    repository.UserRepository
	Assignment  *AssignmentService
	Engine      *workflow.Engine
	MaxCapacity int
	Runtime     Runtime
}

// Evaluation is an engine result plus how it was obtained.
type Evaluation struct {
	workflow.Result
	// Degraded is set when active rules could not be fetched and the
	// evaluation ran with none.
	Degraded  bool
	Persisted bool
}

// NewWorkflowService builds the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	rt := deps.Runtime.withDefaults()
	engine := deps.Engine
	if engine == nil {
		engine = workflow.NewEngine(workflow.EngineOptions{Clock: rt.Now, NewID: rt.NewID})
	}
	return &WorkflowService{
		tickets:     deps.TicketRepo,
		rules:       deps.RuleRepo,
		users:       deps.UserRepo,
		assignment:  deps.Assignment,
		engine:      engine,
		maxCapacity: deps.MaxCapacity,
		rt:          rt,
	}
}

// ListRules returns the active rules.
func (s *WorkflowService) ListRules(ctx context.Context) ([]domain.WorkflowRule, error) {
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	rules, err := s.rules.ListActive(sctx)
	if err != nil {
		return nil, apperrors.NewDependencyError("workflow rule store", err)
	}
	return rules, nil
}

// Evaluate runs the engine without persisting anything.
func (s *WorkflowService) Evaluate(ctx context.Context, actor *domain.User, ticketID string) (*Evaluation, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, actor, ticket), nil
}

// Apply evaluates the ticket and persists the top rule's result. A ticket no
// rule matches is returned unchanged and nothing is written.
func (s *WorkflowService) Apply(ctx context.Context, actor *domain.User, ticketID string) (*Evaluation, error) {
	original, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	eval := s.evaluate(ctx, actor, original)
	if eval.AppliedRule == nil {
		return eval, nil
	}

	updated := eval.Ticket
	if updated.HasAssignee() && updated.Status == domain.TicketStatusUnassigned {
		updated.Status = domain.TicketStatusOpen
	}
	if err := checkAutomatedChange(original, updated); err != nil {
		return nil, err
	}
	now := s.rt.Now()
	if now.Before(original.LastUpdated) {
		now = original.LastUpdated
	}
	if updated.ResolvedDate != nil && original.ResolvedDate == nil {
		resolved := now
		updated.ResolvedDate = &resolved
	}
	if updated.CurrentLevel != original.CurrentLevel {
		s.recordAutomatedEscalation(updated, original, eval.AppliedRule, now)
	}
	updated.ActivityLog = append(updated.ActivityLog, newActivity(s.rt, domain.ActivityWorkflowApplied, nil, now,
		fmt.Sprintf("Workflow rule %q applied", eval.AppliedRule.Name),
		map[string]any{
			"status":        original.Status,
			"current_level": original.CurrentLevel,
			"assigned_to":   assigneeOf(original),
		},
		map[string]any{
			"rule_id":       eval.AppliedRule.ID,
			"status":        updated.Status,
			"current_level": updated.CurrentLevel,
			"assigned_to":   assigneeOf(updated),
		}))
	updated.LastUpdated = now
	updated.RefreshAvailability()

	if err := commitTicket(ctx, s.rt, s.tickets, ActionWorkflow, updated, repository.ExpectFrom(original)); err != nil {
		return nil, err
	}
	s.rt.Metrics.RecordEvaluation(OutcomePersisted)
	eval.Persisted = true

	actorRef := userActor(actor)
	s.rt.publishEvent(ctx, events.Event{
		Type:     events.EventWorkflowApplied,
		TicketID: updated.ID,
		Actor:    actorRef,
		Payload: events.WorkflowAppliedPayload{
			RuleID:   eval.AppliedRule.ID,
			RuleName: eval.AppliedRule.Name,
		},
	})
	if original.Status != updated.Status {
		s.rt.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			Actor:    actorRef,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: original.Status,
				NewStatus: updated.Status,
			},
		})
	}
	publishNewNotifications(ctx, s.rt, actorRef, original, updated)
	return eval, nil
}

func (s *WorkflowService) evaluate(ctx context.Context, actor *domain.User, ticket *domain.Ticket) *Evaluation {
	eval := &Evaluation{}

	sctx, cancel := s.rt.storeContext(ctx)
	rules, err := s.rules.ListActive(sctx)
	cancel()
	if err != nil {
		s.rt.Logger.Warn("workflow rules unavailable; evaluating without rules",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		rules = nil
		eval.Degraded = true
	}

	sctx, cancel = s.rt.storeContext(ctx)
	candidates, err := s.users.ListCandidates(sctx, nil)
	cancel()
	if err != nil {
		s.rt.Logger.Warn("assignee candidates unavailable",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		candidates = nil
	}

	eval.Result = s.engine.Evaluate(workflow.Input{
		Ticket:     ticket,
		Rules:      rules,
		Candidates: candidates,
		Workload:   s.workload(ctx, actor, ticket),
	})

	switch {
	case eval.Degraded:
		s.rt.Metrics.RecordEvaluation(OutcomeDegraded)
	case eval.AppliedRule != nil:
		s.rt.Metrics.RecordEvaluation(OutcomeMatched)
	default:
		s.rt.Metrics.RecordEvaluation(OutcomeNoMatch)
	}
	return eval
}

// workload measures the assignee, or the acting staff member when the ticket
// is unowned. Store failures degrade to an empty load.
func (s *WorkflowService) workload(ctx context.Context, actor *domain.User, t *domain.Ticket) workflow.Workload {
	load := workflow.Workload{MaxCapacity: s.maxCapacity}
	subject := ""
	switch {
	case t.HasAssignee():
		subject = *t.AssignedTo
	case actor != nil && actor.Role.IsSupport():
		subject = actor.ID
	}
	if subject == "" || s.assignment == nil {
		return load
	}
	count, err := s.assignment.OpenCount(ctx, subject)
	if err != nil {
		s.rt.Logger.Warn("workload unavailable", zap.String("user_id", subject), zap.Error(err))
		return load
	}
	load.CurrentLoad = count
	return load
}

func (s *WorkflowService) recordAutomatedEscalation(updated, original *domain.Ticket, rule *domain.WorkflowRule, now time.Time) {
	updated.EscalationHistory = append(updated.EscalationHistory, domain.EscalationRecord{
		ID:        s.rt.NewID(),
		FromLevel: original.CurrentLevel,
		ToLevel:   updated.CurrentLevel,
		FromUser:  domain.SystemActorID,
		ToUser:    ptrString(updated.AssignedTo),
		Reason:    fmt.Sprintf("workflow rule %q", rule.Name),
		Timestamp: now,
	})
	updated.ClientNotifications = append(updated.ClientNotifications, domain.ClientNotification{
		ID:        s.rt.NewID(),
		Type:      domain.NotificationEscalation,
		Message:   fmt.Sprintf("Your ticket has been escalated to %s support", upper(updated.CurrentLevel)),
		Timestamp: now,
	})
}

// automatedTransitions lists the status moves a rule may make. Finished
// tickets never move and resolution needs a ticket someone is working on.
var automatedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusUnassigned: {domain.TicketStatusOpen, domain.TicketStatusInProgress},
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {},
	domain.TicketStatusClosed:     {},
}

func isAutomatedTransition(current, next domain.TicketStatus) bool {
	return slices.Contains(automatedTransitions[current], next)
}

// checkAutomatedChange rejects rule outcomes the state machine forbids.
func checkAutomatedChange(original, updated *domain.Ticket) error {
	if !updated.Status.Valid() {
		return apperrors.NewValidationError("workflow produced an unknown status", map[string]any{"status": updated.Status})
	}
	if updated.Status != original.Status && !isAutomatedTransition(original.Status, updated.Status) {
		return apperrors.NewValidationError(
			fmt.Sprintf("workflow cannot move a %s ticket to %s", original.Status, updated.Status),
			map[string]any{"ticket_id": original.ID})
	}
	if !updated.HasAssignee() &&
		(updated.Status == domain.TicketStatusInProgress || updated.Status == domain.TicketStatusResolved) {
		return apperrors.NewValidationError(
			fmt.Sprintf("workflow cannot leave a %s ticket without an assignee", updated.Status),
			map[string]any{"ticket_id": original.ID})
	}
	if updated.CurrentLevel != original.CurrentLevel && !original.CurrentLevel.Precedes(updated.CurrentLevel) {
		return apperrors.NewValidationError(
			fmt.Sprintf("workflow cannot move a ticket from %s to %s", original.CurrentLevel, updated.CurrentLevel),
			map[string]any{"ticket_id": original.ID})
	}
	return nil
}

func (s *WorkflowService) loadTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	ticket, err := s.tickets.GetByID(sctx, id)
	if err != nil {
		return nil, mapStoreError(err, "ticket", id)
	}
	return ticket, nil
}
