package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sia/internal/agent"
)

func TestConflictLabelDisagreement(t *testing.T) {
	m := NewConflictManager()
	require.True(t, m.Acquire("agent_a", "gmail:inbox", agent.Action{Do: "gmail.apply_label:important", Type: agent.ActionWrite}, 5))

	c := m.Check("agent_b", agent.Action{Do: "gmail.apply_label:low_priority", Type: agent.ActionWrite}, "gmail:inbox")
	assert.True(t, c.HasConflict)
	assert.Equal(t, ConflictLabel, c.Type)
	assert.Equal(t, "agent_a", c.ConflictingAgent)
	assert.Equal(t, "priority_based", c.Resolution)
}

func TestConflictSameLabelNoConflictOnLabelRule(t *testing.T) {
	m := NewConflictManager()
	require.True(t, m.Acquire("agent_a", "gmail:inbox", agent.Action{Do: "gmail.apply_label:important", Type: agent.ActionWrite}, 5))

	// Identical label target falls through to the write-lock rule.
	c := m.Check("agent_b", agent.Action{Do: "gmail.apply_label:important", Type: agent.ActionWrite}, "gmail:inbox")
	assert.True(t, c.HasConflict)
	assert.Equal(t, ConflictResourceLock, c.Type)
}

func TestConflictWriteAgainstHeldLock(t *testing.T) {
	m := NewConflictManager()
	require.True(t, m.Acquire("agent_a", "finance:ledger", agent.Action{Do: "finance.flag_overspend", Type: agent.ActionWrite}, 7))

	c := m.Check("agent_b", agent.Action{Do: "finance.adjust_budget", Type: agent.ActionWrite}, "finance:ledger")
	assert.True(t, c.HasConflict)
	assert.Equal(t, ConflictResourceLock, c.Type)

	// Reads do not conflict with a held write lock.
	c = m.Check("agent_b", agent.Action{Do: "finance.read_ledger", Type: agent.ActionRead}, "finance:ledger")
	assert.False(t, c.HasConflict)
}

func TestConflictSameAgentIsClean(t *testing.T) {
	m := NewConflictManager()
	require.True(t, m.Acquire("agent_a", "gmail:inbox", agent.Action{Do: "gmail.apply_label:important", Type: agent.ActionWrite}, 5))

	c := m.Check("agent_a", agent.Action{Do: "gmail.apply_label:urgent", Type: agent.ActionWrite}, "gmail:inbox")
	assert.False(t, c.HasConflict)
	assert.True(t, m.Acquire("agent_a", "gmail:inbox", agent.Action{Do: "gmail.apply_label:urgent", Type: agent.ActionWrite}, 5))
}

func TestAcquirePriorityPreemption(t *testing.T) {
	m := NewConflictManager()
	require.True(t, m.Acquire("agent_low", "gmail:inbox", agent.Action{Do: "gmail.apply_label:important"}, 5))

	// Higher priority preempts.
	assert.True(t, m.Acquire("agent_high", "gmail:inbox", agent.Action{Do: "gmail.apply_label:urgent"}, 9))
	holder, held := m.Holder("gmail:inbox")
	require.True(t, held)
	assert.Equal(t, "agent_high", holder)

	// Equal priority keeps the current holder.
	assert.False(t, m.Acquire("agent_other", "gmail:inbox", agent.Action{Do: "gmail.apply_label:spam"}, 9))
	holder, _ = m.Holder("gmail:inbox")
	assert.Equal(t, "agent_high", holder)
}

func TestReleaseFreesResource(t *testing.T) {
	m := NewConflictManager()
	require.True(t, m.Acquire("agent_a", "github:review_queue", agent.Action{Do: "slack.send_dm"}, 7))

	m.Release("github:review_queue")
	_, held := m.Holder("github:review_queue")
	assert.False(t, held)
	assert.True(t, m.Acquire("agent_b", "github:review_queue", agent.Action{Do: "slack.send_dm"}, 5))
}

func TestGeneratePreview(t *testing.T) {
	m := NewConflictManager()
	require.True(t, m.Acquire("agent_a", "gmail:inbox", agent.Action{Do: "gmail.apply_label:important", Type: agent.ActionWrite}, 5))

	actions := []agent.Action{
		{Do: "gmail.apply_label:low_priority", Type: agent.ActionWrite},
		{Do: "notify.daily_report", Type: agent.ActionNotification},
	}
	preview := m.GeneratePreview("agent_b", actions, []string{"gmail:inbox", "notify:user"})

	require.Len(t, preview.Changes, 2)
	require.Len(t, preview.Conflicts, 1)
	assert.Equal(t, "gmail:inbox", preview.Conflicts[0].Resource)
	assert.Equal(t, ConflictLabel, preview.Conflicts[0].Type)
	assert.Contains(t, preview.Summary, "2 actions")
	assert.Contains(t, preview.Summary, "1 conflicts detected")

	m.Release("gmail:inbox")
	preview = m.GeneratePreview("agent_b", actions, []string{"gmail:inbox", "notify:user"})
	assert.Empty(t, preview.Conflicts)
	assert.Contains(t, preview.Summary, "no conflicts")
}
