package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sia/internal/agent"
	"sia/internal/audit"
	"sia/internal/source"
	"sia/internal/worldmodel"
)

func emailAgent() *agent.Config {
	return &agent.Config{
		ID:           "agent_email_1",
		SolutionName: "Auto-classification",
		Domain:       "email",
		RiskLevel:    agent.RiskLow,
		Trigger:      agent.Trigger{Type: agent.TriggerEvent, Source: "gmail", Event: "new_email"},
		Tools: []agent.Tool{{
			Type:        agent.ToolMCP,
			Name:        "label_applier",
			Source:      "gmail",
			Permissions: map[string][]string{"write": {"apply_label:important"}},
		}},
		Actions: []agent.Action{
			{Do: "gmail.read_messages", Type: agent.ActionRead},
			{If: "hidden_priority == high", Do: "gmail.apply_label:important", Type: agent.ActionWrite},
		},
		Safety: agent.Safety{
			RiskLevel:      agent.RiskLow,
			ApprovalPolicy: agent.ApprovalPolicy{WriteOperations: "auto_approve"},
		},
	}
}

func emailInput() Input {
	return Input{Emails: []source.Email{
		{ID: "email_1", Subject: "Contract renewal", HiddenPriority: "high"},
		{ID: "email_2", Subject: "Team lunch", HiddenPriority: "low", Read: true},
	}}
}

func TestExecuteSuccessFlow(t *testing.T) {
	rec := audit.NewRecorder()
	rt := NewRuntime(Config{}, rec, nil, nil)

	result, err := rt.Execute(context.Background(), emailAgent(), worldmodel.Default(), emailInput())
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Contains(t, result.RunID, "run_")
	require.Len(t, result.Actions, 2)
	for _, ar := range result.Actions {
		assert.Equal(t, StatusSuccess, ar.Status, ar.Do)
	}

	assert.Equal(t, 2, result.Summary.Successful)
	assert.InDelta(t, 1.0, result.Summary.SuccessRate, 1e-9)

	// Only the high-priority email gets the label.
	require.Len(t, result.Processed.Emails, 1)
	assert.Equal(t, "email_1", result.Processed.Emails[0].ID)
	assert.Equal(t, "important", result.Processed.Emails[0].AppliedLabel)

	// One execution audit entry per invocation.
	assert.Len(t, rec.ByType("execution"), 1)
}

func TestExecuteSecondRunIsIdempotent(t *testing.T) {
	rt := NewRuntime(Config{}, nil, nil, nil)
	cfg := emailAgent()
	m := worldmodel.Default()

	first, err := rt.Execute(context.Background(), cfg, m, emailInput())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summary.Successful)

	second, err := rt.Execute(context.Background(), cfg, m, emailInput())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Summary.Skipped)
	assert.Zero(t, second.Summary.Successful)
	for _, ar := range second.Actions {
		assert.Equal(t, StatusSkipped, ar.Status, ar.Do)
	}
}

func TestExecuteBlocksUnknownTool(t *testing.T) {
	rt := NewRuntime(Config{}, nil, nil, nil)
	cfg := emailAgent()
	cfg.Tools = []agent.Tool{{Type: agent.ToolUnknown, Name: "mystery"}}
	cfg.Actions = []agent.Action{{Do: "mystery.scan", Type: agent.ActionRead}}

	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), Input{})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, StatusBlocked, result.Actions[0].Status)
	assert.Contains(t, result.Actions[0].Reason, "unknown tool")
	assert.Equal(t, 1, result.Summary.Blocked)
}

func TestExecuteBlocksUngrantedWrite(t *testing.T) {
	rt := NewRuntime(Config{}, nil, nil, nil)
	cfg := emailAgent()
	// The tool is known but carries no write grant at all.
	cfg.Tools[0].Permissions = map[string][]string{}

	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), emailInput())
	require.NoError(t, err)

	require.Len(t, result.Actions, 2)
	assert.Equal(t, StatusSuccess, result.Actions[0].Status)
	assert.Equal(t, StatusBlocked, result.Actions[1].Status)
	assert.Contains(t, result.Actions[1].Reason, "write grant")
	assert.Empty(t, result.Processed.Emails)
}

func TestExecuteGrantVerbCoversLabelTargets(t *testing.T) {
	rt := NewRuntime(Config{}, nil, nil, nil)
	cfg := emailAgent()
	// A bare verb grant covers every label target.
	cfg.Tools[0].Permissions = map[string][]string{"write": {"apply_label"}}

	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), emailInput())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Actions[1].Status)
	assert.Len(t, result.Processed.Emails, 1)
}

func TestExecuteDefaultWriteBlockHoldsForApproval(t *testing.T) {
	rt := NewRuntime(Config{}, nil, nil, nil)
	cfg := emailAgent()
	// No per-agent approval policy: the model-level write block asks the
	// user instead of silently dropping the action.
	cfg.Safety.ApprovalPolicy.WriteOperations = ""

	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), emailInput())
	require.NoError(t, err)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, StatusPendingApproval, result.Actions[1].Status)
	assert.Equal(t, 1, result.Summary.PendingApproval)
	assert.Zero(t, result.Summary.Blocked)
}

func TestExecuteWriteHeldForApproval(t *testing.T) {
	rt := NewRuntime(Config{}, nil, nil, nil)
	cfg := emailAgent()
	cfg.Safety.ApprovalPolicy.WriteOperations = "require_approval"

	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), emailInput())
	require.NoError(t, err)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, StatusSuccess, result.Actions[0].Status)
	assert.Equal(t, StatusPendingApproval, result.Actions[1].Status)
	assert.Equal(t, 1, result.Summary.PendingApproval)

	// Held actions must not touch the inbox.
	assert.Empty(t, result.Processed.Emails)
}

func TestExecuteRetriesThenFails(t *testing.T) {
	rec := audit.NewRecorder()
	rt := NewRuntime(Config{MaxRetries: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}, rec, nil, nil)

	var slept []time.Duration
	rt.sleep = func(d time.Duration) { slept = append(slept, d) }

	cfg := emailAgent()
	cfg.Actions = []agent.Action{{Do: "gmail.read_special", Type: agent.ActionRead}}

	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), emailInput())
	require.NoError(t, err)

	require.Len(t, result.Actions, 1)
	ar := result.Actions[0]
	assert.Equal(t, StatusFailed, ar.Status)
	assert.Equal(t, 2, ar.Retries)
	assert.Contains(t, ar.Reason, "unrecognized effect")

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, slept)
	assert.Equal(t, "completed_with_errors", result.Status)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Len(t, rec.ByType("error"), 1)
}

func TestExecuteLosesLockToHigherPriorityHolder(t *testing.T) {
	rt := NewRuntime(Config{}, nil, nil, nil)
	require.True(t, rt.Conflicts().Acquire("agent_rival", "gmail:inbox",
		agent.Action{Do: "gmail.apply_label:urgent", Type: agent.ActionWrite}, 9))

	result, err := rt.Execute(context.Background(), emailAgent(), worldmodel.Default(), emailInput())
	require.NoError(t, err)

	require.Len(t, result.Actions, 2)
	assert.Equal(t, StatusSuccess, result.Actions[0].Status)
	assert.Equal(t, StatusConflict, result.Actions[1].Status)
	assert.Contains(t, result.Actions[1].Reason, "agent_rival")
	assert.Equal(t, 1, result.Summary.Conflicts)

	holder, held := rt.Conflicts().Holder("gmail:inbox")
	require.True(t, held)
	assert.Equal(t, "agent_rival", holder)
}

func TestExecuteGuardShortCircuits(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	cfg := &agent.Config{
		ID:        "agent_finance_1",
		Domain:    "finance",
		RiskLevel: agent.RiskLow,
		Tools:     []agent.Tool{{Type: agent.ToolMCP, Name: "txn_reader", Source: "bank_api"}},
		Actions:   []agent.Action{{If: "weekly_total > budget", Do: "notify.budget_alert", Type: agent.ActionNotification}},
	}
	txns := []source.Transaction{{Amount: 200, Category: "food", Date: now.Add(-24 * time.Hour)}}

	// No budget configured: the guard never fires.
	rt := NewRuntime(Config{}, nil, nil, nil)
	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), Input{Transactions: txns, Now: now})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, StatusSuccess, result.Actions[0].Status)
	assert.Contains(t, result.Actions[0].Output, "nothing to do")
	assert.Empty(t, result.Processed.Notifications)

	// Over budget: the alert is queued.
	rt = NewRuntime(Config{}, nil, nil, nil)
	result, err = rt.Execute(context.Background(), cfg, worldmodel.Default(), Input{Transactions: txns, CategoryBudget: 100, Now: now})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Actions[0].Status)
	require.Len(t, result.Processed.Notifications, 1)
	assert.Contains(t, result.Processed.Notifications[0].Message, "exceeds budget")
}

func TestExecuteRateLimitsPerService(t *testing.T) {
	rt := NewRuntime(Config{MaxRequests: 1, Window: time.Minute}, nil, nil, nil)
	cfg := emailAgent()
	cfg.Actions = []agent.Action{
		{Do: "gmail.read_messages", Type: agent.ActionRead},
		{Do: "gmail.read_messages", Type: agent.ActionRead},
	}

	result, err := rt.Execute(context.Background(), cfg, worldmodel.Default(), emailInput())
	require.NoError(t, err)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, StatusSuccess, result.Actions[0].Status)
	assert.Equal(t, StatusRateLimited, result.Actions[1].Status)
	assert.Greater(t, result.Actions[1].RetryAfter, 0.0)
	assert.Equal(t, 1, result.Summary.RateLimited)
}

func TestBackoff(t *testing.T) {
	base, max := time.Second, 10*time.Second
	assert.Equal(t, time.Second, Backoff(0, base, max))
	assert.Equal(t, 2*time.Second, Backoff(1, base, max))
	assert.Equal(t, 8*time.Second, Backoff(3, base, max))
	assert.Equal(t, max, Backoff(6, base, max))

	assert.Equal(t, DefaultBaseDelay, Backoff(0, 0, 0))
}
