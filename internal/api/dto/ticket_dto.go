package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
}

// ResolveTicketRequest payload.
type ResolveTicketRequest struct {
	Note string `json:"note"`
}

// EscalateTicketRequest payload.
type EscalateTicketRequest struct {
	TargetLevel domain.Level `json:"target_level"`
	Reason      string       `json:"reason"`
}

// DelegateTicketRequest payload.
type DelegateTicketRequest struct {
	TargetUserID string `json:"target_user_id"`
	Reason       string `json:"reason"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                       string                `json:"id"`
	Title                    string                `json:"title"`
	Category                 string                `json:"category"`
	ClientName               string                `json:"client_name"`
	Status                   domain.TicketStatus   `json:"status"`
	Priority                 domain.TicketPriority `json:"priority"`
	CurrentLevel             domain.Level          `json:"current_level"`
	AvailableToLevels        []domain.Level        `json:"available_to_levels"`
	AssignedTo               *string               `json:"assigned_to"`
	AssignedToName           *string               `json:"assigned_to_name"`
	IsAvailableForAssignment bool                  `json:"is_available_for_assignment"`
	Tags                     []string              `json:"tags"`
	SubmittedDate            time.Time             `json:"submitted_date"`
	LastUpdated              time.Time             `json:"last_updated"`
	ResolvedDate             *time.Time            `json:"resolved_date"`
	Version                  int64                 `json:"version"`
}

// TicketDetailResponse provides full ticket info including its audit trail.
type TicketDetailResponse struct {
	TicketSummary
	Description         string                      `json:"description"`
	ClientID            string                      `json:"client_id"`
	EscalationHistory   []domain.EscalationRecord   `json:"escalation_history"`
	ActivityLog         []domain.ActivityRecord     `json:"activity_log"`
	ClientNotifications []domain.ClientNotification `json:"client_notifications"`
}

// NewTicketSummary maps a ticket to its list shape.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                       t.ID,
		Title:                    t.Title,
		Category:                 t.Category,
		ClientName:               t.ClientName,
		Status:                   t.Status,
		Priority:                 t.Priority,
		CurrentLevel:             t.CurrentLevel,
		AvailableToLevels:        orEmpty(t.AvailableToLevels),
		AssignedTo:               t.AssignedTo,
		AssignedToName:           t.AssignedToName,
		IsAvailableForAssignment: t.IsAvailableForAssignment,
		Tags:                     orEmpty(t.Tags),
		SubmittedDate:            t.SubmittedDate,
		LastUpdated:              t.LastUpdated,
		ResolvedDate:             t.ResolvedDate,
		Version:                  t.Version,
	}
}

// NewTicketDetail maps a ticket to its full shape.
func NewTicketDetail(t *domain.Ticket) TicketDetailResponse {
	return TicketDetailResponse{
		TicketSummary:       NewTicketSummary(t),
		Description:         t.Description,
		ClientID:            t.ClientID,
		EscalationHistory:   orEmpty(t.EscalationHistory),
		ActivityLog:         orEmpty(t.ActivityLog),
		ClientNotifications: orEmpty(t.ClientNotifications),
	}
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
