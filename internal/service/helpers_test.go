package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/observability"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
)

var (
	client = domain.User{ID: "c-1", Name: "Carol Client", Role: domain.RoleClient, Active: true}
	alice  = domain.User{ID: "u-l1a", Name: "Alice L1", Role: domain.RoleL1, Active: true}
	ben    = domain.User{ID: "u-l1b", Name: "Ben L1", Role: domain.RoleL1, Active: true}
	dana   = domain.User{ID: "u-l2a", Name: "Dana L2", Role: domain.RoleL2, Active: true}
	eve    = domain.User{ID: "u-l3a", Name: "Eve L3", Role: domain.RoleL3, Active: true}
	ada    = domain.User{ID: "u-admin", Name: "Ada Admin", Role: domain.RoleAdmin, Active: true}
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// steppingClock advances one second per reading.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return baseTime.Add(time.Duration(n) * time.Second)
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type fixture struct {
	tickets    *repository.MemoryTicketRepository
	rules      *repository.MemoryRuleRepository
	users      *repository.MemoryUserRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	assignment *AssignmentService
	svc        *TicketService
	workflow   *WorkflowService

	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T, users ...domain.User) *fixture {
	t.Helper()
	if len(users) == 0 {
		users = []domain.User{client, alice, ben, dana, eve, ada}
	}
	f := &fixture{
		tickets:    repository.NewMemoryTicketRepository(),
		rules:      repository.NewMemoryRuleRepository(),
		users:      repository.NewMemoryUserRepository(users...),
		dispatcher: events.NewInMemoryDispatcher(nil),
		metrics:    observability.NewMetrics(),
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketStatusChanged,
		events.EventTicketEscalated,
		events.EventTicketDelegated,
		events.EventWorkflowApplied,
		events.EventClientNotified,
	} {
		f.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
			return nil
		})
	}

	rt := Runtime{
		Dispatcher:   f.dispatcher,
		Metrics:      f.metrics,
		Now:          steppingClock(),
		NewID:        sequentialIDs(),
		StoreTimeout: time.Second,
	}
	f.assignment = NewAssignmentService(AssignmentDependencies{
		UserRepo:   f.users,
		TicketRepo: f.tickets,
		Runtime:    rt,
	})
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo: f.tickets,
		UserRepo:   f.users,
		Assignment: f.assignment,
		Runtime:    rt,
	})
	f.workflow = NewWorkflowService(WorkflowDependencies{
		TicketRepo:  f.tickets,
		RuleRepo:    f.rules,
		UserRepo:    f.users,
		Assignment:  f.assignment,
		MaxCapacity: 15,
		Runtime:     rt,
	})
	return f
}

func (f *fixture) create(t *testing.T, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	if input.Title == "" {
		input.Title = "Printer jams on floor 2"
	}
	c := client
	ticket, err := f.svc.CreateTicket(context.Background(), &c, input)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) stored(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) eventsOf(kind events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func countKind(log []domain.ActivityRecord, kind domain.ActivityKind) int {
	n := 0
	for _, rec := range log {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

func ptr[T any](v T) *T {
	return &v
}
