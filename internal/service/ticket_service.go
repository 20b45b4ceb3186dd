package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util/errorutil"
)

// Lifecycle actions, used as metric labels and in error details.
const (
	ActionCreate   = "create"
	ActionTake     = "take"
	ActionStart    = "start"
	ActionResolve  = "resolve"
	ActionClose    = "close"
	ActionEscalate = "escalate"
	ActionDelegate = "delegate"
	ActionWorkflow = "workflow"
)

// TicketService owns the ticket state machine. Every transition is computed
// on a copy and written back with one guarded update, so the ticket fields,
// the activity entry and any notification land together or not at all.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	assignment *AssignmentService
	rt         Runtime
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Assignment *AssignmentService
	Runtime    Runtime
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
	Tags        []string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses []domain.TicketStatus
	Mine     bool
	Limit    int
	Offset   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		assignment: deps.Assignment,
		rt:         deps.Runtime.withDefaults(),
	}
}

// CreateTicket opens a ticket for the acting client at l1.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	now := s.rt.Now()
	ticket := &domain.Ticket{
		ID:                       s.rt.NewID(),
		Title:                    title,
		Description:              strings.TrimSpace(input.Description),
		Category:                 strings.TrimSpace(input.Category),
		ClientID:                 actor.ID,
		ClientName:               actor.Name,
		Status:                   domain.TicketStatusUnassigned,
		Priority:                 priority,
		CurrentLevel:             domain.LevelL1,
		AvailableToLevels:        []domain.Level{domain.LevelL1},
		IsAvailableForAssignment: true,
		Tags:                     input.Tags,
		SubmittedDate:            now,
		LastUpdated:              now,
		Version:                  1,
	}
	ticket.ActivityLog = append(ticket.ActivityLog, s.activity(domain.ActivityCreated, actor, now,
		fmt.Sprintf("Ticket submitted by %s", actor.Name), nil, nil))
	ticket.ClientNotifications = append(ticket.ClientNotifications, s.notification(domain.NotificationStatusUpdate, now,
		fmt.Sprintf("We received your ticket %q and queued it for level 1 support", title)))

	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	if err := s.tickets.Create(sctx, ticket); err != nil {
		return nil, mapStoreError(err, "ticket", ticket.ID)
	}
	s.rt.Metrics.RecordTransition(ActionCreate)

	s.rt.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(actor),
		Payload: events.TicketCreatedPayload{
			ClientID: ticket.ClientID,
			Category: ticket.Category,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
	s.announceNotifications(ctx, actor, nil, ticket)
	return ticket, nil
}

// GetTicket returns a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTickets lists tickets scoped to the actor: clients see their own
// submissions, tier staff see tickets open to their level, admins see all.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	repoFilter := repository.TicketFilter{
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	switch {
	case actor.Role == domain.RoleClient:
		repoFilter.ClientID = &actor.ID
	case filter.Mine:
		repoFilter.AssigneeID = &actor.ID
	case actor.Role != domain.RoleAdmin:
		if tier, ok := actor.Role.Tier(); ok {
			repoFilter.Levels = []domain.Level{tier}
		}
	}

	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	tickets, err := s.tickets.List(sctx, repoFilter)
	if err != nil {
		return nil, mapStoreError(err, "ticket", "")
	}
	return tickets, nil
}

// Take claims an unowned ticket for the acting staff member and starts work.
func (s *TicketService) Take(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	before, after, err := s.transition(ctx, ActionTake, id, func(_ context.Context, t *domain.Ticket, now time.Time) error {
		if t.Status.Finished() {
			return illegalTransition(ActionTake, t)
		}
		if t.HasAssignee() {
			return alreadyTaken(t)
		}
		if t.Status != domain.TicketStatusUnassigned && t.Status != domain.TicketStatusOpen {
			return illegalTransition(ActionTake, t)
		}
		if !t.IsAvailableForAssignment {
			return apperrors.NewValidationError("ticket is not available for assignment", map[string]any{"ticket_id": t.ID})
		}
		if tier, ok := actor.Role.Tier(); ok && !t.AvailableTo(tier) {
			return apperrors.NewValidationError(
				fmt.Sprintf("ticket is not available to level %s", tier),
				map[string]any{"ticket_id": t.ID, "level": tier})
		}

		prevStatus := t.Status
		t.SetAssignee(actor.ID, actor.Name)
		t.Status = domain.TicketStatusInProgress
		t.ActivityLog = append(t.ActivityLog, s.activity(domain.ActivityAssigned, actor, now,
			fmt.Sprintf("%s took the ticket", actor.Name),
			map[string]any{"status": prevStatus, "assigned_to": nil},
			map[string]any{"status": t.Status, "assigned_to": actor.ID}))
		return nil
	})
	if apperrors.IsConflict(err) {
		// Someone else won the race; report who when we can tell.
		if current, loadErr := s.load(ctx, id); loadErr == nil && current.HasAssignee() {
			return nil, alreadyTaken(current)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.publishAssigned(ctx, actor, after)
	s.publishStatusChanged(ctx, actor, before, after)
	return after, nil
}

// StartWork moves an owned open ticket into progress.
func (s *TicketService) StartWork(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	before, after, err := s.transition(ctx, ActionStart, id, func(_ context.Context, t *domain.Ticket, now time.Time) error {
		if t.Status != domain.TicketStatusOpen || !t.HasAssignee() {
			return illegalTransition(ActionStart, t)
		}
		if err := requireOwner(actor, t); err != nil {
			return err
		}
		t.Status = domain.TicketStatusInProgress
		t.ActivityLog = append(t.ActivityLog, s.activity(domain.ActivityStarted, actor, now,
			fmt.Sprintf("%s started working on the ticket", actor.Name),
			map[string]any{"status": domain.TicketStatusOpen},
			map[string]any{"status": t.Status}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(ctx, actor, before, after)
	return after, nil
}

// Resolve marks an in-progress ticket resolved.
func (s *TicketService) Resolve(ctx context.Context, actor *domain.User, id, note string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	before, after, err := s.transition(ctx, ActionResolve, id, func(_ context.Context, t *domain.Ticket, now time.Time) error {
		if t.Status != domain.TicketStatusInProgress {
			return illegalTransition(ActionResolve, t)
		}
		if err := requireOwner(actor, t); err != nil {
			return err
		}
		t.Status = domain.TicketStatusResolved
		if t.ResolvedDate == nil {
			resolved := now
			t.ResolvedDate = &resolved
		}
		desc := fmt.Sprintf("%s resolved the ticket", actor.Name)
		message := "Your ticket has been resolved"
		if note = strings.TrimSpace(note); note != "" {
			desc += ": " + note
			message += ": " + note
		}
		t.ActivityLog = append(t.ActivityLog, s.activity(domain.ActivityResolved, actor, now, desc,
			map[string]any{"status": domain.TicketStatusInProgress},
			map[string]any{"status": t.Status}))
		t.ClientNotifications = append(t.ClientNotifications, s.notification(domain.NotificationResolution, now, message))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(ctx, actor, before, after)
	s.announceNotifications(ctx, actor, before, after)
	return after, nil
}

// Close finalizes a resolved ticket. The submitting client may close it too.
func (s *TicketService) Close(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	before, after, err := s.transition(ctx, ActionClose, id, func(_ context.Context, t *domain.Ticket, now time.Time) error {
		if actor.Role == domain.RoleClient && t.ClientID != actor.ID {
			return apperrors.NewForbidden("access denied")
		}
		if t.Status != domain.TicketStatusResolved {
			return illegalTransition(ActionClose, t)
		}
		t.Status = domain.TicketStatusClosed
		t.ActivityLog = append(t.ActivityLog, s.activity(domain.ActivityClosed, actor, now,
			fmt.Sprintf("%s closed the ticket", actor.Name),
			map[string]any{"status": domain.TicketStatusResolved},
			map[string]any{"status": t.Status}))
		t.ClientNotifications = append(t.ClientNotifications, s.notification(domain.NotificationStatusUpdate, now,
			"Your ticket has been closed"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishStatusChanged(ctx, actor, before, after)
	s.announceNotifications(ctx, actor, before, after)
	return after, nil
}

// Escalate hands the ticket to a higher tier and to an assignee picked from
// that tier. Levels only ever move upwards.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.User, id string, target domain.Level, reason string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("escalation reason is required", nil)
	}
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown level", map[string]any{"level": target})
	}

	var record domain.EscalationRecord
	before, after, err := s.transition(ctx, ActionEscalate, id, func(ctx context.Context, t *domain.Ticket, now time.Time) error {
		if t.Status.Finished() {
			return illegalTransition(ActionEscalate, t)
		}
		if !t.CurrentLevel.Precedes(target) {
			return apperrors.NewValidationError(
				fmt.Sprintf("cannot escalate from %s to %s", t.CurrentLevel, target),
				map[string]any{"ticket_id": t.ID, "from": t.CurrentLevel, "to": target})
		}
		previous := ""
		if t.HasAssignee() {
			previous = *t.AssignedTo
		}
		chosen, err := s.assignment.PickForLevel(ctx, t, target, previous)
		if err != nil {
			return err
		}

		from := t.CurrentLevel
		prevStatus := t.Status
		record = domain.EscalationRecord{
			ID:        s.rt.NewID(),
			FromLevel: from,
			ToLevel:   target,
			FromUser:  actor.ID,
			ToUser:    chosen.ID,
			Reason:    reason,
			Timestamp: now,
		}
		t.EscalationHistory = append(t.EscalationHistory, record)
		t.CurrentLevel = target
		if !t.AvailableTo(target) {
			t.AvailableToLevels = append(t.AvailableToLevels, target)
		}
		t.SetAssignee(chosen.ID, chosen.Name)
		if t.Status == domain.TicketStatusInProgress || t.Status == domain.TicketStatusUnassigned {
			t.Status = domain.TicketStatusOpen
		}
		t.ActivityLog = append(t.ActivityLog, s.activity(domain.ActivityEscalated, actor, now,
			fmt.Sprintf("Escalated from %s to %s and assigned to %s: %s", upper(from), upper(target), chosen.Name, reason),
			map[string]any{"current_level": from, "status": prevStatus, "assigned_to": nullable(previous)},
			map[string]any{"current_level": target, "status": t.Status, "assigned_to": chosen.ID}))
		t.ClientNotifications = append(t.ClientNotifications, s.notification(domain.NotificationEscalation, now,
			fmt.Sprintf("Your ticket has been escalated to %s support", upper(target))))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rt.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: after.ID,
		Actor:    userActor(actor),
		Payload: events.TicketEscalatedPayload{
			FromLevel: record.FromLevel,
			ToLevel:   record.ToLevel,
			ToUser:    record.ToUser,
			Reason:    record.Reason,
		},
	})
	s.publishAssigned(ctx, actor, after)
	s.publishStatusChanged(ctx, actor, before, after)
	s.announceNotifications(ctx, actor, before, after)
	return after, nil
}

// Delegate reassigns the ticket to another user of the same tier. An
// unassigned ticket becomes open for its new owner; other statuses are kept.
func (s *TicketService) Delegate(ctx context.Context, actor *domain.User, id, targetUserID, reason string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	target, err := s.loadUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if !target.Active {
		return nil, apperrors.NewValidationError("target user is inactive", map[string]any{"user_id": target.ID})
	}

	var previous string
	before, after, err := s.transition(ctx, ActionDelegate, id, func(_ context.Context, t *domain.Ticket, now time.Time) error {
		if t.Status.Finished() {
			return illegalTransition(ActionDelegate, t)
		}
		if tier, ok := target.Role.Tier(); !ok || tier != t.CurrentLevel {
			return apperrors.NewValidationError(
				fmt.Sprintf("%s is not a %s support user", target.Name, upper(t.CurrentLevel)),
				map[string]any{"user_id": target.ID, "role": target.Role, "level": t.CurrentLevel})
		}
		if t.HasAssignee() && *t.AssignedTo == target.ID {
			return apperrors.NewValidationError(
				fmt.Sprintf("ticket is already assigned to %s", target.Name),
				map[string]any{"user_id": target.ID})
		}
		if t.HasAssignee() {
			previous = *t.AssignedTo
		}
		desc := fmt.Sprintf("%s delegated the ticket to %s", actor.Name, target.Name)
		if r := strings.TrimSpace(reason); r != "" {
			desc += ": " + r
		}
		prevStatus := t.Status
		t.SetAssignee(target.ID, target.Name)
		if t.Status == domain.TicketStatusUnassigned {
			t.Status = domain.TicketStatusOpen
		}
		t.ActivityLog = append(t.ActivityLog, s.activity(domain.ActivityDelegated, actor, now, desc,
			map[string]any{"assigned_to": nullable(previous), "status": prevStatus},
			map[string]any{"assigned_to": target.ID, "status": t.Status}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rt.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDelegated,
		TicketID: after.ID,
		Actor:    userActor(actor),
		Payload: events.TicketDelegatedPayload{
			FromUser: previous,
			ToUser:   target.ID,
			Reason:   strings.TrimSpace(reason),
		},
	})
	s.publishAssigned(ctx, actor, after)
	s.publishStatusChanged(ctx, actor, before, after)
	return after, nil
}

type mutation func(ctx context.Context, t *domain.Ticket, now time.Time) error

// transition loads the ticket, lets apply edit a copy and commits it guarded
// by the loaded version, status and assignee.
func (s *TicketService) transition(ctx context.Context, action, id string, apply mutation) (*domain.Ticket, *domain.Ticket, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	now := s.rt.Now()
	if now.Before(current.LastUpdated) {
		now = current.LastUpdated
	}
	next := current.Clone()
	if err := apply(ctx, next, now); err != nil {
		return nil, nil, err
	}
	next.LastUpdated = now
	next.RefreshAvailability()
	if err := commitTicket(ctx, s.rt, s.tickets, action, next, repository.ExpectFrom(current)); err != nil {
		return nil, nil, err
	}
	return current, next, nil
}

// commitTicket writes next if the stored ticket still matches expected.
func commitTicket(ctx context.Context, rt Runtime, tickets repository.TicketRepository, action string, next *domain.Ticket, expected repository.Precondition) error {
	sctx, cancel := rt.storeContext(ctx)
	defer cancel()
	err := tickets.Update(sctx, next, expected)
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		rt.Metrics.RecordConflict(action)
		rt.Logger.Info("ticket update lost race",
			zap.String("ticket_id", next.ID),
			zap.String("action", action),
			zap.Int64("expected_version", expected.Version))
	case err == nil:
		rt.Metrics.RecordTransition(action)
		return nil
	}
	return mapStoreError(err, "ticket", next.ID)
}

func (s *TicketService) load(ctx context.Context, id string) (*domain.Ticket, error) {
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	ticket, err := s.tickets.GetByID(sctx, id)
	if err != nil {
		return nil, mapStoreError(err, "ticket", id)
	}
	return ticket, nil
}

func (s *TicketService) loadUser(ctx context.Context, id string) (*domain.User, error) {
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	user, err := s.users.GetByID(sctx, id)
	if err != nil {
		return nil, mapStoreError(err, "user", id)
	}
	return user, nil
}

func (s *TicketService) activity(kind domain.ActivityKind, actor *domain.User, now time.Time, desc string, before, after map[string]any) domain.ActivityRecord {
	return newActivity(s.rt, kind, actor, now, desc, before, after)
}

func (s *TicketService) notification(kind domain.NotificationType, now time.Time, message string) domain.ClientNotification {
	return domain.ClientNotification{
		ID:        s.rt.NewID(),
		Type:      kind,
		Message:   message,
		Timestamp: now,
	}
}

func newActivity(rt Runtime, kind domain.ActivityKind, actor *domain.User, now time.Time, desc string, before, after map[string]any) domain.ActivityRecord {
	rec := domain.ActivityRecord{
		ID:          rt.NewID(),
		Kind:        kind,
		ActorID:     domain.SystemActorID,
		ActorName:   "System",
		Description: desc,
		Timestamp:   now,
		Before:      before,
		After:       after,
	}
	if actor != nil {
		rec.ActorID = actor.ID
		rec.ActorName = actor.Name
	}
	return rec
}

func (s *TicketService) publishAssigned(ctx context.Context, actor *domain.User, t *domain.Ticket) {
	if !t.HasAssignee() {
		return
	}
	s.rt.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: t.ID,
		Actor:    userActor(actor),
		Payload: events.TicketAssignedPayload{
			AssigneeID:   *t.AssignedTo,
			AssigneeName: t.AssigneeName(),
		},
	})
}

func (s *TicketService) publishStatusChanged(ctx context.Context, actor *domain.User, before, after *domain.Ticket) {
	if before.Status == after.Status {
		return
	}
	s.rt.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: after.ID,
		Actor:    userActor(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: before.Status,
			NewStatus: after.Status,
		},
	})
}

// announceNotifications publishes the notifications after appended since before.
func (s *TicketService) announceNotifications(ctx context.Context, actor *domain.User, before, after *domain.Ticket) {
	publishNewNotifications(ctx, s.rt, userActor(actor), before, after)
}

func publishNewNotifications(ctx context.Context, rt Runtime, actor events.Actor, before, after *domain.Ticket) {
	seen := 0
	if before != nil {
		seen = len(before.ClientNotifications)
	}
	for _, n := range after.ClientNotifications[seen:] {
		rt.publishEvent(ctx, events.Event{
			Type:     events.EventClientNotified,
			TicketID: after.ID,
			Actor:    actor,
			Payload: events.ClientNotifiedPayload{
				ClientID:     after.ClientID,
				Notification: n,
			},
		})
	}
}

func canView(actor *domain.User, t *domain.Ticket) bool {
	switch {
	case actor.Role == domain.RoleAdmin:
		return true
	case actor.Role == domain.RoleClient:
		return t.ClientID == actor.ID
	case t.HasAssignee() && *t.AssignedTo == actor.ID:
		return true
	}
	tier, ok := actor.Role.Tier()
	return ok && t.AvailableTo(tier)
}

func requireOwner(actor *domain.User, t *domain.Ticket) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if t.HasAssignee() && *t.AssignedTo == actor.ID {
		return nil
	}
	return apperrors.NewForbidden(fmt.Sprintf("ticket is assigned to %s", t.AssigneeName()))
}

func alreadyTaken(t *domain.Ticket) error {
	return apperrors.NewConflict(fmt.Sprintf("ticket already taken by %s", t.AssigneeName()), map[string]any{
		"ticket_id":   t.ID,
		"assigned_to": *t.AssignedTo,
	})
}

func illegalTransition(action string, t *domain.Ticket) error {
	return apperrors.NewValidationError(fmt.Sprintf("cannot %s a ticket that is %s", action, t.Status), map[string]any{
		"ticket_id": t.ID,
		"status":    t.Status,
		"action":    action,
	})
}

func upper(l domain.Level) string {
	return strings.ToUpper(string(l))
}

func assigneeOf(t *domain.Ticket) any {
	if !t.HasAssignee() {
		return nil
	}
	return *t.AssignedTo
}

func ptrString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
