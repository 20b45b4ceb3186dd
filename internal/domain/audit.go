package domain

import (
	"maps"
	"time"
)

// ActivityKind captures what happened in an activity entry.
type ActivityKind string

const (
	ActivityCreated         ActivityKind = "created"
	ActivityAssigned        ActivityKind = "assigned"
	ActivityStarted         ActivityKind = "started"
	ActivityResolved        ActivityKind = "resolved"
	ActivityClosed          ActivityKind = "closed"
	ActivityEscalated       ActivityKind = "escalated"
	ActivityDelegated       ActivityKind = "delegated"
	ActivityAutoResponded   ActivityKind = "auto_responded"
	ActivityWorkflowApplied ActivityKind = "workflow_applied"
)

// SystemActorID authors entries produced by automation.
const SystemActorID = "system"

// ActivityRecord is an immutable audit trail entry.
type ActivityRecord struct {
	ID          string         `json:"id"`
	Kind        ActivityKind   `json:"action"`
	ActorID     string         `json:"actor_id"`
	ActorName   string         `json:"actor_name"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Before      map[string]any `json:"before,omitempty"`
	After       map[string]any `json:"after,omitempty"`
}

func (r ActivityRecord) clone() ActivityRecord {
	r.Before = maps.Clone(r.Before)
	r.After = maps.Clone(r.After)
	return r
}

// EscalationRecord documents a tier handoff.
type EscalationRecord struct {
	ID        string    `json:"id"`
	FromLevel Level     `json:"from_level"`
	ToLevel   Level     `json:"to_level"`
	FromUser  string    `json:"from_user"`
	ToUser    string    `json:"to_user,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationType differentiates messages sent to the submitting client.
type NotificationType string

const (
	NotificationEscalation   NotificationType = "escalation"
	NotificationStatusUpdate NotificationType = "status_update"
	NotificationResolution   NotificationType = "resolution"
	NotificationAutoResponse NotificationType = "auto_response"
)

// ClientNotification is a message addressed to the ticket's client.
type ClientNotification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}
