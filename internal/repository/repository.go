package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a guarded update lost a race.
	ErrVersionConflict = errors.New("version conflict")
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Levels     []domain.Level
	AssigneeID *string
	ClientID   *string
	Limit      int
	Offset     int
}

// Precondition is the state a guarded update expects to find stored.
type Precondition struct {
	Version    int64
	Status     domain.TicketStatus
	AssignedTo *string
}

// ExpectFrom captures the guard values of a freshly read ticket.
func ExpectFrom(t *domain.Ticket) Precondition {
	p := Precondition{Version: t.Version, Status: t.Status}
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		p.AssignedTo = &v
	}
	return p
}

// TicketRepository encapsulates ticket persistence. Update writes the whole
// ticket, audit trail included, as one atomic compare-and-swap.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, expected Precondition) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountOpenByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error)
}

// WorkflowRuleRepository reads admin-maintained workflow rules.
type WorkflowRuleRepository interface {
	ListActive(ctx context.Context) ([]domain.WorkflowRule, error)
}

// UserRepository reads users who can act on tickets.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ListCandidates returns active support users, optionally limited to one tier.
	ListCandidates(ctx context.Context, tier *domain.Level) ([]domain.User, error)
}

func (p Precondition) holds(t *domain.Ticket) bool {
	if t.Version != p.Version || t.Status != p.Status {
		return false
	}
	switch {
	case p.AssignedTo == nil:
		return t.AssignedTo == nil
	case t.AssignedTo == nil:
		return false
	default:
		return *p.AssignedTo == *t.AssignedTo
	}
}

func normalizePage(limit, offset, def int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
