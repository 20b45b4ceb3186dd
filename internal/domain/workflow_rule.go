package domain

import (
	"encoding/json"
	"time"
)

// Operator is a condition comparison kind.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorIn          Operator = "in"
)

// Condition compares one ticket field with a value.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// WorkflowRule is an admin-defined condition -> action automation entry.
// Higher Priority is evaluated first.
type WorkflowRule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Priority    int         `json:"priority"`
	IsActive    bool        `json:"is_active"`
	Conditions  []Condition `json:"conditions"`
	Actions     Actions     `json:"actions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Action values with special meaning.
const (
	AssignAuto        = "auto_assign"
	EscalateNextLevel = "next_level"
)

// ActionType is the wire tag of an action.
type ActionType string

const (
	ActionTypeAssign       ActionType = "assign"
	ActionTypeEscalate     ActionType = "escalate"
	ActionTypeChangeStatus ActionType = "change_status"
	ActionTypeAddTag       ActionType = "add_tag"
	ActionTypeAutoRespond  ActionType = "auto_respond"
)

// Action is one of AssignAction, EscalateAction, ChangeStatusAction,
// AddTagAction or AutoRespondAction.
type Action interface {
	Type() ActionType
	value() string
}

// AssignAction sets the owner. Assignee AssignAuto picks from candidates.
type AssignAction struct{ Assignee string }

// EscalateAction moves the ticket to Target, or one tier up for EscalateNextLevel.
type EscalateAction struct{ Target string }

// ChangeStatusAction sets the status literally.
type ChangeStatusAction struct{ Status TicketStatus }

// AddTagAction appends a tag.
type AddTagAction struct{ Tag string }

// AutoRespondAction posts a system message to the client.
type AutoRespondAction struct{ Message string }

func (AssignAction) Type() ActionType       { return ActionTypeAssign }
func (EscalateAction) Type() ActionType     { return ActionTypeEscalate }
func (ChangeStatusAction) Type() ActionType { return ActionTypeChangeStatus }
func (AddTagAction) Type() ActionType       { return ActionTypeAddTag }
func (AutoRespondAction) Type() ActionType  { return ActionTypeAutoRespond }

func (a AssignAction) value() string       { return a.Assignee }
func (a EscalateAction) value() string     { return a.Target }
func (a ChangeStatusAction) value() string { return string(a.Status) }
func (a AddTagAction) value() string       { return a.Tag }
func (a AutoRespondAction) value() string  { return a.Message }

// ActionSpec is the stored {type, value} form of an action.
type ActionSpec struct {
	Type  ActionType `json:"type"`
	Value any        `json:"value"`
}

// ParseAction converts a spec into its typed action. Unknown types and
// non-string values are rejected.
func ParseAction(spec ActionSpec) (Action, bool) {
	v, ok := spec.Value.(string)
	if !ok {
		return nil, false
	}
	switch spec.Type {
	case ActionTypeAssign:
		return AssignAction{Assignee: v}, true
	case ActionTypeEscalate:
		return EscalateAction{Target: v}, true
	case ActionTypeChangeStatus:
		return ChangeStatusAction{Status: TicketStatus(v)}, true
	case ActionTypeAddTag:
		return AddTagAction{Tag: v}, true
	case ActionTypeAutoRespond:
		return AutoRespondAction{Message: v}, true
	}
	return nil, false
}

// SpecOf returns the stored form of a.
func SpecOf(a Action) ActionSpec {
	return ActionSpec{Type: a.Type(), Value: a.value()}
}

// Actions is an ordered action list stored as [{type, value}].
type Actions []Action

// MarshalJSON encodes actions as specs.
func (a Actions) MarshalJSON() ([]byte, error) {
	specs := make([]ActionSpec, 0, len(a))
	for _, action := range a {
		specs = append(specs, SpecOf(action))
	}
	return json.Marshal(specs)
}

// UnmarshalJSON decodes specs, skipping entries that do not parse so a
// malformed action never blocks the rest of the rule.
func (a *Actions) UnmarshalJSON(data []byte) error {
	var specs []ActionSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return err
	}
	out := make(Actions, 0, len(specs))
	for _, spec := range specs {
		if action, ok := ParseAction(spec); ok {
			out = append(out, action)
		}
	}
	*a = out
	return nil
}
