package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketState(t *testing.T) {
	state := NewTicketState("T-1", "email", "text", map[string]string{"account_tier": "standard"})

	assert.Equal(t, StageCreated, state.Stage)
	assert.False(t, state.Completed())
	assert.False(t, state.HumanReviewRequired)
	assert.Empty(t, state.AuditLog)
	assert.Equal(t, state.CreatedAt, state.UpdatedAt)
}

func TestAppendAuditOnlyGrows(t *testing.T) {
	state := NewTicketState("T-1", "email", "text", nil)

	state.AppendAudit("classified", map[string]any{"issue_type": "Bug"})
	state.AppendRuleAudit("policy_evaluated", "low_confidence", map[string]any{"confidence": 0.4})
	state.AppendAudit("completed", nil)

	require.Len(t, state.AuditLog, 3)
	assert.Equal(t, "classified", state.AuditLog[0].Stage)
	assert.Empty(t, state.AuditLog[0].Rule)
	assert.Equal(t, "low_confidence", state.AuditLog[1].Rule)
	for _, entry := range state.AuditLog {
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.Timestamp.IsZero())
	}
	assert.True(t, state.UpdatedAt.After(state.CreatedAt) || state.UpdatedAt.Equal(state.CreatedAt))
}

func TestRequireHumanReviewIsOneWay(t *testing.T) {
	state := NewTicketState("T-1", "email", "text", nil)
	state.RequireHumanReview()
	state.RequireHumanReview()
	assert.True(t, state.HumanReviewRequired)
}

func TestCloneIsDeep(t *testing.T) {
	state := NewTicketState("T-1", "email", "text", map[string]string{"k": "v"})
	state.Classification = &Classification{IssueType: "Bug", Priority: PriorityP1, Confidence: 0.9}
	state.AppendAudit("classified", nil)

	clone := state.Clone()
	clone.Metadata["k"] = "changed"
	clone.Classification.IssueType = "Billing"
	clone.AppendAudit("routed", nil)
	clone.Stage = StageRouted

	assert.Equal(t, "v", state.Metadata["k"])
	assert.Equal(t, "Bug", state.Classification.IssueType)
	assert.Len(t, state.AuditLog, 1)
	assert.Equal(t, StageCreated, state.Stage)

	var nilState *TicketState
	assert.Nil(t, nilState.Clone())
}

func TestPriority(t *testing.T) {
	assert.True(t, PriorityP0.Valid())
	assert.True(t, PriorityP3.Valid())
	assert.False(t, Priority("P9").Valid())
	assert.False(t, Priority("").Valid())

	assert.True(t, PriorityP0.Critical())
	assert.True(t, PriorityP1.Critical())
	assert.False(t, PriorityP2.Critical())
	assert.False(t, PriorityP3.Critical())
}
