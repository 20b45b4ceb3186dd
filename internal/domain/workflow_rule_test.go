package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionsUnmarshalSkipsUnknownAndMalformed(t *testing.T) {
	raw := `[
		{"type":"escalate","value":"next_level"},
		{"type":"page_oncall","value":"sre"},
		{"type":"add_tag","value":42},
		{"type":"add_tag","value":"vip"}
	]`
	var actions Actions
	require.NoError(t, json.Unmarshal([]byte(raw), &actions))
	assert.Equal(t, Actions{EscalateAction{Target: EscalateNextLevel}, AddTagAction{Tag: "vip"}}, actions)
}

func TestActionsMarshalUsesTypeValuePairs(t *testing.T) {
	data, err := json.Marshal(Actions{ChangeStatusAction{Status: TicketStatusOpen}, AutoRespondAction{Message: "hi"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"change_status","value":"open"},{"type":"auto_respond","value":"hi"}]`, string(data))
}

func TestLevelOrdering(t *testing.T) {
	next, ok := LevelL1.Next()
	assert.True(t, ok)
	assert.Equal(t, LevelL2, next)

	_, ok = LevelL3.Next()
	assert.False(t, ok)

	assert.True(t, LevelL1.Precedes(LevelL3))
	assert.False(t, LevelL2.Precedes(LevelL1))
	assert.False(t, LevelL3.Precedes(LevelL3))
	assert.False(t, Level("l9").Precedes(LevelL3))
}

func TestTicketCloneDoesNotAlias(t *testing.T) {
	owner := "u1"
	orig := &Ticket{
		ID:                "t1",
		AssignedTo:        &owner,
		Tags:              []string{"a"},
		AvailableToLevels: []Level{LevelL1},
		ActivityLog:       []ActivityRecord{{ID: "a1", After: map[string]any{"status": "open"}}},
	}
	c := orig.Clone()
	c.Tags[0] = "b"
	*c.AssignedTo = "u2"
	c.ActivityLog[0].After["status"] = "closed"
	c.AvailableToLevels = append(c.AvailableToLevels, LevelL2)

	assert.Equal(t, "a", orig.Tags[0])
	assert.Equal(t, "u1", *orig.AssignedTo)
	assert.Equal(t, "open", orig.ActivityLog[0].After["status"])
	assert.Len(t, orig.AvailableToLevels, 1)
}
