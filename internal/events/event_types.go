package events

import (
	"time"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketDelegated     EventType = "ticket_delegated"
	EventWorkflowApplied     EventType = "workflow_applied"
	EventClientNotified      EventType = "client_notified"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role,omitempty"`
}

// SystemActor is used for events raised by automation.
var SystemActor = Actor{UserID: domain.SystemActorID}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ClientID string                `json:"client_id"`
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Title    string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID   string `json:"assignee_id"`
	AssigneeName string `json:"assignee_name"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	FromLevel domain.Level `json:"from_level"`
	ToLevel   domain.Level `json:"to_level"`
	ToUser    string       `json:"to_user"`
	Reason    string       `json:"reason"`
}

// TicketDelegatedPayload payload.
type TicketDelegatedPayload struct {
	FromUser string `json:"from_user,omitempty"`
	ToUser   string `json:"to_user"`
	Reason   string `json:"reason"`
}

// WorkflowAppliedPayload payload.
type WorkflowAppliedPayload struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
}

// ClientNotifiedPayload carries a notification appended to the ticket.
type ClientNotifiedPayload struct {
	ClientID     string                    `json:"client_id"`
	Notification domain.ClientNotification `json:"notification"`
}
