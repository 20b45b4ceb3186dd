package repository

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// MemoryTicketRepository keeps tickets in process. It is used when no
// database is configured and honors the same compare-and-swap contract as
// the Postgres repository.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository returns an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.Clone(), nil
}

func (r *MemoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket, expected Precondition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if !expected.holds(stored) {
		return ErrVersionConflict
	}
	ticket.Version = stored.Version + 1
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	all := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if matchesFilter(t, filter) {
			all = append(all, *t.Clone())
		}
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].LastUpdated.Equal(all[j].LastUpdated) {
			return all[i].LastUpdated.After(all[j].LastUpdated)
		}
		return all[i].ID < all[j].ID
	})
	limit, offset := normalizePage(filter.Limit, filter.Offset, 20)
	if offset >= len(all) {
		return []domain.Ticket{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *MemoryTicketRepository) CountOpenByAssignee(_ context.Context, assigneeIDs []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int, len(assigneeIDs))
	for _, t := range r.tickets {
		if !t.HasAssignee() || t.Status.Finished() {
			continue
		}
		if slices.Contains(assigneeIDs, *t.AssignedTo) {
			counts[*t.AssignedTo]++
		}
	}
	return counts, nil
}

func matchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Levels) > 0 && !slices.ContainsFunc(filter.Levels, t.AvailableTo) {
		return false
	}
	if filter.AssigneeID != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssigneeID) {
		return false
	}
	if filter.ClientID != nil && t.ClientID != *filter.ClientID {
		return false
	}
	return true
}

// MemoryRuleRepository serves a fixed rule set.
type MemoryRuleRepository struct {
	mu    sync.RWMutex
	rules []domain.WorkflowRule
}

// NewMemoryRuleRepository returns a store seeded with rules.
func NewMemoryRuleRepository(rules ...domain.WorkflowRule) *MemoryRuleRepository {
	return &MemoryRuleRepository{rules: rules}
}

// Put replaces or appends a rule by id.
func (r *MemoryRuleRepository) Put(rule domain.WorkflowRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := slices.IndexFunc(r.rules, func(x domain.WorkflowRule) bool { return x.ID == rule.ID }); idx >= 0 {
		r.rules[idx] = rule
		return
	}
	r.rules = append(r.rules, rule)
}

func (r *MemoryRuleRepository) ListActive(_ context.Context) ([]domain.WorkflowRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.WorkflowRule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

// MemoryUserRepository serves a fixed user directory.
type MemoryUserRepository struct {
	users []domain.User
}

// NewMemoryUserRepository returns a directory in the given order.
func NewMemoryUserRepository(users ...domain.User) *MemoryUserRepository {
	return &MemoryUserRepository{users: users}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) ListCandidates(_ context.Context, tier *domain.Level) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if !u.Active || !u.Role.IsSupport() {
			continue
		}
		if tier != nil && u.Role != domain.RoleForLevel(*tier) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
