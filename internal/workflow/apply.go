package workflow

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// Clock returns the current time.
type Clock func() time.Time

// IDGenerator returns a new unique record id.
type IDGenerator func() string

// Applier executes rule actions against a copy of a ticket.
type Applier struct {
	now   Clock
	newID IDGenerator
}

// NewApplier builds an applier. Nil arguments fall back to time.Now and uuid.
func NewApplier(now Clock, newID IDGenerator) *Applier {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Applier{now: now, newID: newID}
}

// Apply returns a new ticket with actions applied in order. The input is not
// modified. Status legality is not checked here; LifecycleService owns the
// state machine.
func (a *Applier) Apply(t *domain.Ticket, actions domain.Actions, candidates []domain.User) *domain.Ticket {
	out := t.Clone()
	for _, action := range actions {
		switch act := action.(type) {
		case domain.AssignAction:
			a.assign(out, act, candidates)
		case domain.EscalateAction:
			escalateTo(out, act)
		case domain.ChangeStatusAction:
			out.Status = act.Status
			if act.Status.Finished() && out.ResolvedDate == nil {
				now := a.now()
				out.ResolvedDate = &now
			}
		case domain.AddTagAction:
			out.Tags = append(out.Tags, act.Tag)
		case domain.AutoRespondAction:
			a.autoRespond(out, act)
		}
	}
	out.RefreshAvailability()
	return out
}

func (a *Applier) assign(t *domain.Ticket, act domain.AssignAction, candidates []domain.User) {
	if act.Assignee == domain.AssignAuto {
		for _, c := range candidates {
			if c.Role.IsSupport() {
				t.SetAssignee(c.ID, c.Name)
				return
			}
		}
		return
	}
	if act.Assignee == "" {
		return
	}
	name := act.Assignee
	if idx := slices.IndexFunc(candidates, func(u domain.User) bool { return u.ID == act.Assignee }); idx >= 0 {
		name = candidates[idx].Name
	}
	t.SetAssignee(act.Assignee, name)
}

func escalateTo(t *domain.Ticket, act domain.EscalateAction) {
	target := domain.Level(act.Target)
	if act.Target == domain.EscalateNextLevel {
		next, ok := t.CurrentLevel.Next()
		if !ok {
			return
		}
		target = next
	}
	t.CurrentLevel = target
	if target.Valid() && !t.AvailableTo(target) {
		t.AvailableToLevels = append(t.AvailableToLevels, target)
	}
}

func (a *Applier) autoRespond(t *domain.Ticket, act domain.AutoRespondAction) {
	now := a.now()
	t.ActivityLog = append(t.ActivityLog, domain.ActivityRecord{
		ID:          a.newID(),
		Kind:        domain.ActivityAutoResponded,
		ActorID:     domain.SystemActorID,
		ActorName:   "System",
		Description: act.Message,
		Timestamp:   now,
	})
	t.ClientNotifications = append(t.ClientNotifications, domain.ClientNotification{
		ID:        a.newID(),
		Type:      domain.NotificationAutoResponse,
		Message:   act.Message,
		Timestamp: now,
	})
}
