package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-engine/internal/config"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util/errorutil"
)

func TestLeastLoadedPolicy(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, TicketCreateInput{})
	_, err := f.svc.Take(context.Background(), &alice, tk.ID)
	require.NoError(t, err)

	policy := NewLeastLoadedPolicy(f.tickets)

	chosen, err := policy.Select(context.Background(), &domain.Ticket{ID: "x"}, []domain.User{alice, ben})
	require.NoError(t, err)
	assert.Equal(t, ben.ID, chosen.ID)

	chosen, err = policy.Select(context.Background(), &domain.Ticket{ID: "x"}, []domain.User{ben, dana})
	require.NoError(t, err)
	assert.Equal(t, ben.ID, chosen.ID, "ties go to the earliest candidate")

	chosen, err = policy.Select(context.Background(), &domain.Ticket{ID: "x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, chosen)
}

func TestRoundRobinPolicyRotates(t *testing.T) {
	policy := NewRoundRobinPolicy()
	candidates := []domain.User{alice, ben}

	var picked []string
	for i := 0; i < 3; i++ {
		u, err := policy.Select(context.Background(), &domain.Ticket{}, candidates)
		require.NoError(t, err)
		picked = append(picked, u.ID)
	}
	assert.Equal(t, []string{alice.ID, ben.ID, alice.ID}, picked)
}

func TestHashPolicyIsStable(t *testing.T) {
	candidates := []domain.User{alice, ben, dana}
	ticket := &domain.Ticket{ID: "ticket-42"}

	first, err := HashPolicy{}.Select(context.Background(), ticket, candidates)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := HashPolicy{}.Select(context.Background(), ticket, candidates)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}
}

func TestNewSelectionPolicy(t *testing.T) {
	f := newFixture(t)

	assert.IsType(t, &RoundRobinPolicy{}, NewSelectionPolicy(config.PolicyRoundRobin, f.tickets))
	assert.IsType(t, HashPolicy{}, NewSelectionPolicy(config.PolicyHash, f.tickets))
	assert.IsType(t, &LeastLoadedPolicy{}, NewSelectionPolicy(config.PolicyLeastLoaded, f.tickets))
}

func TestPickForLevel(t *testing.T) {
	f := newFixture(t)
	ticket := &domain.Ticket{ID: "t-1"}

	chosen, err := f.assignment.PickForLevel(context.Background(), ticket, domain.LevelL1, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, ben.ID, chosen.ID)

	_, err = f.assignment.PickForLevel(context.Background(), ticket, domain.LevelL3, eve.ID)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.assignment.ListCandidates(context.Background(), ptr(domain.Level("l9")))
	assert.True(t, apperrors.IsValidation(err))
}

func TestListCandidateLoads(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, TicketCreateInput{})
	_, err := f.svc.Take(context.Background(), &ben, tk.ID)
	require.NoError(t, err)

	loads, err := f.assignment.ListCandidateLoads(context.Background(), ptr(domain.LevelL1))
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, CandidateLoad{User: alice, OpenCount: 0}, loads[0])
	assert.Equal(t, CandidateLoad{User: ben, OpenCount: 1}, loads[1])
}
