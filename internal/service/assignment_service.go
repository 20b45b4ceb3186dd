package service

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/spec-kit/helpdesk-engine/internal/config"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util/errorutil"
)

// SelectionPolicy picks one assignee out of an ordered candidate list. It
// must be deterministic for identical inputs and store state.
type SelectionPolicy interface {
	Select(ctx context.Context, ticket *domain.Ticket, candidates []domain.User) (*domain.User, error)
}

// LeastLoadedPolicy picks the candidate with the fewest open tickets.
// Ties go to the earliest candidate.
type LeastLoadedPolicy struct {
	tickets repository.TicketRepository
}

// NewLeastLoadedPolicy builds the policy over the ticket store.
func NewLeastLoadedPolicy(tickets repository.TicketRepository) *LeastLoadedPolicy {
	return &LeastLoadedPolicy{tickets: tickets}
}

func (p *LeastLoadedPolicy) Select(ctx context.Context, _ *domain.Ticket, candidates []domain.User) (*domain.User, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	counts, err := p.tickets.CountOpenByAssignee(ctx, ids)
	if err != nil {
		return nil, err
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if counts[candidates[i].ID] < counts[candidates[best].ID] {
			best = i
		}
	}
	chosen := candidates[best]
	return &chosen, nil
}

// RoundRobinPolicy rotates through candidates per tier.
type RoundRobinPolicy struct {
	mu   sync.Mutex
	next map[string]int
}

// NewRoundRobinPolicy returns a policy with fresh cursors.
func NewRoundRobinPolicy() *RoundRobinPolicy {
	return &RoundRobinPolicy{next: make(map[string]int)}
}

func (p *RoundRobinPolicy) Select(_ context.Context, _ *domain.Ticket, candidates []domain.User) (*domain.User, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	key := string(candidates[0].Role)
	p.mu.Lock()
	idx := p.next[key] % len(candidates)
	p.next[key] = idx + 1
	p.mu.Unlock()
	chosen := candidates[idx]
	return &chosen, nil
}

// HashPolicy maps the ticket id onto the candidate list, so the same ticket
// always lands on the same position.
type HashPolicy struct{}

func (HashPolicy) Select(_ context.Context, ticket *domain.Ticket, candidates []domain.User) (*domain.User, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	chosen := candidates[selectIndex(ticket.ID, len(candidates))]
	return &chosen, nil
}

func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(length))
}

// NewSelectionPolicy resolves a configured policy name.
func NewSelectionPolicy(name string, tickets repository.TicketRepository) SelectionPolicy {
	switch name {
	case config.PolicyRoundRobin:
		return NewRoundRobinPolicy()
	case config.PolicyHash:
		return HashPolicy{}
	default:
		return NewLeastLoadedPolicy(tickets)
	}
}

// AssignmentService lists candidate assignees and chooses between them.
type AssignmentService struct {
	users   repository.UserRepository
	tickets repository.TicketRepository
	policy  SelectionPolicy
	rt      Runtime
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
	Policy     SelectionPolicy
	Runtime    Runtime
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	policy := deps.Policy
	if policy == nil {
		policy = NewLeastLoadedPolicy(deps.TicketRepo)
	}
	return &AssignmentService{
		users:   deps.UserRepo,
		tickets: deps.TicketRepo,
		policy:  policy,
		rt:      deps.Runtime.withDefaults(),
	}
}

// CandidateLoad is a candidate together with their open ticket count.
type CandidateLoad struct {
	User      domain.User
	OpenCount int
}

// ListCandidates returns active support users, optionally for one tier.
func (s *AssignmentService) ListCandidates(ctx context.Context, tier *domain.Level) ([]domain.User, error) {
	if tier != nil && !tier.Valid() {
		return nil, apperrors.NewValidationError("unknown level", map[string]any{"level": *tier})
	}
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	users, err := s.users.ListCandidates(sctx, tier)
	if err != nil {
		return nil, apperrors.NewDependencyError("user store", err)
	}
	return users, nil
}

// ListCandidateLoads returns candidates with their current open ticket counts.
func (s *AssignmentService) ListCandidateLoads(ctx context.Context, tier *domain.Level) ([]CandidateLoad, error) {
	users, err := s.ListCandidates(ctx, tier)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	counts, err := s.tickets.CountOpenByAssignee(sctx, ids)
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}
	out := make([]CandidateLoad, len(users))
	for i, u := range users {
		out[i] = CandidateLoad{User: u, OpenCount: counts[u.ID]}
	}
	return out, nil
}

// OpenCount returns how many unfinished tickets userID currently owns.
func (s *AssignmentService) OpenCount(ctx context.Context, userID string) (int, error) {
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	counts, err := s.tickets.CountOpenByAssignee(sctx, []string{userID})
	if err != nil {
		return 0, apperrors.NewDependencyError("ticket store", err)
	}
	return counts[userID], nil
}

// PickForLevel chooses an assignee for ticket among level's candidates,
// skipping exclude. It fails with a validation error when nobody is eligible.
func (s *AssignmentService) PickForLevel(ctx context.Context, ticket *domain.Ticket, level domain.Level, exclude string) (*domain.User, error) {
	candidates, err := s.ListCandidates(ctx, &level)
	if err != nil {
		return nil, err
	}
	eligible := candidates[:0:0]
	for _, c := range candidates {
		if c.ID != exclude {
			eligible = append(eligible, c)
		}
	}
	sctx, cancel := s.rt.storeContext(ctx)
	defer cancel()
	chosen, err := s.policy.Select(sctx, ticket, eligible)
	if err != nil {
		return nil, apperrors.NewDependencyError("ticket store", err)
	}
	if chosen == nil {
		return nil, apperrors.NewValidationError("no eligible assignee at level "+string(level), map[string]any{
			"ticket_id": ticket.ID,
			"level":     level,
		})
	}
	return chosen, nil
}
