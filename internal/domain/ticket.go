package domain

import (
	"slices"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusUnassigned TicketStatus = "unassigned"
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusUnassigned, TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Finished reports whether the ticket no longer needs work.
func (s TicketStatus) Finished() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency; the dashboard also calls it problem level.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Level is a support tier.
type Level string

const (
	LevelL1 Level = "l1"
	LevelL2 Level = "l2"
	LevelL3 Level = "l3"
)

// Rank orders tiers from 1 (l1) to 3 (l3). Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelL1:
		return 1
	case LevelL2:
		return 2
	case LevelL3:
		return 3
	}
	return 0
}

// Valid reports whether l is a known tier.
func (l Level) Valid() bool {
	return l.Rank() > 0
}

// Next returns the tier above l. l3 has none.
func (l Level) Next() (Level, bool) {
	switch l {
	case LevelL1:
		return LevelL2, true
	case LevelL2:
		return LevelL3, true
	}
	return "", false
}

// Precedes reports whether l is strictly below other.
func (l Level) Precedes(other Level) bool {
	return l.Valid() && other.Valid() && l.Rank() < other.Rank()
}

// Ticket is the aggregate for helpdesk requests. It owns its audit trail.
type Ticket struct {
	ID                       string
	Title                    string
	Description              string
	Category                 string
	ClientID                 string
	ClientName               string
	Status                   TicketStatus
	Priority                 TicketPriority
	CurrentLevel             Level
	AvailableToLevels        []Level
	AssignedTo               *string
	AssignedToName           *string
	IsAvailableForAssignment bool
	Tags                     []string
	EscalationHistory        []EscalationRecord
	ActivityLog              []ActivityRecord
	ClientNotifications      []ClientNotification
	SubmittedDate            time.Time
	LastUpdated              time.Time
	ResolvedDate             *time.Time
	Version                  int64
}

// HasAssignee reports whether an owner is set.
func (t *Ticket) HasAssignee() bool {
	return t.AssignedTo != nil && *t.AssignedTo != ""
}

// AssigneeName returns the owner's display name or "".
func (t *Ticket) AssigneeName() string {
	if t.AssignedToName == nil {
		return ""
	}
	return *t.AssignedToName
}

// AvailableTo reports whether level may view or claim the ticket.
func (t *Ticket) AvailableTo(level Level) bool {
	return slices.Contains(t.AvailableToLevels, level)
}

// SetAssignee sets both owner fields together.
func (t *Ticket) SetAssignee(id, name string) {
	t.AssignedTo = &id
	t.AssignedToName = &name
	t.IsAvailableForAssignment = false
}

// RefreshAvailability recomputes IsAvailableForAssignment from owner and status.
func (t *Ticket) RefreshAvailability() {
	t.IsAvailableForAssignment = !t.HasAssignee() &&
		(t.Status == TicketStatusUnassigned || t.Status == TicketStatusOpen)
}

// Clone returns a deep copy so callers can derive new values without aliasing.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AvailableToLevels = slices.Clone(t.AvailableToLevels)
	c.Tags = slices.Clone(t.Tags)
	c.EscalationHistory = slices.Clone(t.EscalationHistory)
	if t.ActivityLog != nil {
		c.ActivityLog = make([]ActivityRecord, len(t.ActivityLog))
		for i, rec := range t.ActivityLog {
			c.ActivityLog[i] = rec.clone()
		}
	}
	c.ClientNotifications = slices.Clone(t.ClientNotifications)
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		c.AssignedTo = &v
	}
	if t.AssignedToName != nil {
		v := *t.AssignedToName
		c.AssignedToName = &v
	}
	if t.ResolvedDate != nil {
		v := *t.ResolvedDate
		c.ResolvedDate = &v
	}
	return &c
}
