package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sia/internal/source"
)

func TestCollectPreloadedSubstitutesForSources(t *testing.T) {
	sensor := NewSensor(source.NewRegistry(), nil)

	pre := map[string]*DomainState{
		"email": {Emails: []source.Email{
			{ID: "email_1", HiddenPriority: "high"},
			{ID: "email_2", Read: true},
		}},
	}
	state, err := sensor.Collect(context.Background(), []string{"email"}, pre)
	require.NoError(t, err)

	assert.Equal(t, "email", state.Domain)
	ds := state.State("email")
	require.NotNil(t, ds)
	assert.Equal(t, "email", ds.Domain)
	assert.Equal(t, 2, ds.TotalEmails)
	assert.Equal(t, 1, ds.UnreadCount)
}

func TestCollectMultiDomainAggregates(t *testing.T) {
	sensor := NewSensor(source.NewRegistry(), nil)

	pre := map[string]*DomainState{
		"health": {Health: []source.HealthRecord{{SleepHours: 6}, {SleepHours: 8}}},
		"github": {PullRequests: []source.PullRequest{
			{ID: "pr_1", Status: "pending_review"},
			{ID: "pr_2", Status: "approved"},
		}},
	}
	state, err := sensor.Collect(context.Background(), []string{"health", "github"}, pre)
	require.NoError(t, err)

	assert.Equal(t, MultiDomain, state.Domain)
	assert.Equal(t, []string{"health", "github"}, state.Domains)
	assert.InDelta(t, 7.0, state.State("health").AvgSleepHours, 1e-9)
	assert.Equal(t, 1, state.State("github").PendingReviews)
}

func TestCollectWeeklyCategoryTotalsWindow(t *testing.T) {
	sensor := NewSensor(source.NewRegistry(), nil)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	sensor.now = func() time.Time { return now }

	pre := map[string]*DomainState{
		"finance": {Transactions: []source.Transaction{
			{Category: "food", Amount: 12000, Date: now.Add(-24 * time.Hour)},
			{Category: "food", Amount: 8000, Date: now.Add(-3 * 24 * time.Hour)},
			{Category: "food", Amount: 99999, Date: now.Add(-10 * 24 * time.Hour)}, // outside the week
			{Category: "taxi", Amount: 5000, Date: now.Add(-48 * time.Hour)},
		}},
	}
	state, err := sensor.Collect(context.Background(), []string{"finance"}, pre)
	require.NoError(t, err)

	totals := state.State("finance").WeeklyCategoryTotals
	assert.InDelta(t, 20000, totals["food"], 1e-9)
	assert.InDelta(t, 5000, totals["taxi"], 1e-9)
}

func TestCollectReadsRegisteredSource(t *testing.T) {
	dir := t.TempDir()
	emails := []source.Email{{ID: "email_1", Subject: "Contract renewal", HiddenPriority: "high"}}
	data, err := json.Marshal(emails)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample_emails.json"), data, 0o644))

	perms := source.Permissions{Read: []string{source.ScopeMetadataAndSubject}}
	registry := source.NewRegistry(source.NewSampleSource("gmail", "email", dir, perms, nil))
	sensor := NewSensor(registry, nil)

	state, err := sensor.Collect(context.Background(), []string{"email"}, nil)
	require.NoError(t, err)

	ds := state.State("email")
	require.Len(t, ds.Emails, 1)
	assert.Equal(t, "Contract renewal", ds.Emails[0].Subject)
	assert.Equal(t, 1, ds.UnreadCount)
}

func TestCollectErrors(t *testing.T) {
	sensor := NewSensor(source.NewRegistry(), nil)

	_, err := sensor.Collect(context.Background(), nil, nil)
	assert.Error(t, err)

	_, err = sensor.Collect(context.Background(), []string{"email"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no connected source")
}
