package workflow

import (
	"strings"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// FieldValue resolves a rule field name against a ticket. Names are matched
// without regard to case or underscores, so "currentLevel" and
// "current_level" are the same field.
func FieldValue(t *domain.Ticket, field string) (any, bool) {
	if t == nil {
		return nil, false
	}
	key := strings.ToLower(strings.ReplaceAll(field, "_", ""))
	switch key {
	case "id":
		return t.ID, true
	case "title":
		return t.Title, true
	case "description":
		return t.Description, true
	case "category":
		return t.Category, true
	case "clientid":
		return t.ClientID, true
	case "clientname":
		return t.ClientName, true
	case "status":
		return string(t.Status), true
	case "priority", "problemlevel":
		return string(t.Priority), true
	case "currentlevel", "level":
		return string(t.CurrentLevel), true
	case "assignedto":
		if t.AssignedTo == nil {
			return nil, true
		}
		return *t.AssignedTo, true
	case "assignedtoname":
		if t.AssignedToName == nil {
			return nil, true
		}
		return *t.AssignedToName, true
	case "isavailableforassignment":
		return t.IsAvailableForAssignment, true
	case "tags":
		return t.Tags, true
	case "availabletolevels":
		levels := make([]string, len(t.AvailableToLevels))
		for i, l := range t.AvailableToLevels {
			levels[i] = string(l)
		}
		return levels, true
	case "escalationcount":
		return len(t.EscalationHistory), true
	case "activitycount":
		return len(t.ActivityLog), true
	case "version":
		return t.Version, true
	}
	return nil, false
}
