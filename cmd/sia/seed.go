package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sia/internal/source"
	"sia/internal/worldmodel"
)

// seed fills a fresh world model with the onboarding defaults: four
// connected sample sources, the user's goals and ideal states, three
// weeks of baseline history and the matching fixture files. An already
// populated model is left alone.
func seed(a *app) (bool, error) {
	m, err := a.store.Load()
	if err != nil {
		return false, err
	}
	if len(m.ConnectedSources) > 0 {
		return false, nil
	}

	now := time.Now()
	_, err = a.store.Mutate(func(m *worldmodel.Model) error {
		m.AbstractGoals = []worldmodel.Goal{
			{ID: "goal_1", Text: "Never miss important email", Priority: 1},
			{ID: "goal_2", Text: "Keep review turnaround under a day", Priority: 2},
			{ID: "goal_3", Text: "Sleep at least 7 hours", Priority: 3},
			{ID: "goal_4", Text: "Stay inside the weekly food budget", Priority: 4},
		}
		m.ConnectedSources = []worldmodel.ConnectedSource{
			{Name: "gmail", Domain: "email", Status: "active", Permissions: worldmodel.Permissions{
				Read:  []string{source.ScopeMetadataAndSubject},
				Write: []string{"apply_label"},
			}},
			{Name: "github", Domain: "github", Status: "active", Permissions: worldmodel.Permissions{
				Read: []string{source.ScopePRMetadata},
			}},
			{Name: "health_app", Domain: "health", Status: "active", Permissions: worldmodel.Permissions{
				Read: []string{source.ScopeDailyMetrics},
			}},
			{Name: "bank_api", Domain: "finance", Status: "active", Permissions: worldmodel.Permissions{
				Read: []string{source.ScopeTransactionMeta},
			}},
		}
		m.IdealStates = []worldmodel.IdealState{
			{ID: "ideal_email_1", Domain: "email", Description: "Important mail is confirmed within 30 minutes", Criterion: "response_time", TargetValue: "30", Priority: "high"},
			{ID: "ideal_email_2", Domain: "email", Description: "Important mail sits in the visible top 5", Criterion: "visibility", Priority: "high"},
			{ID: "ideal_github_1", Domain: "github", Description: "Assigned reviews finish within 24 hours", Criterion: "review_time", TargetValue: "24", Priority: "medium"},
			{ID: "ideal_health_1", Domain: "health", Description: "Average sleep stays at 7 hours or more", Criterion: "sleep_hours", TargetValue: "7", Priority: "medium"},
			{ID: "ideal_finance_1", Domain: "finance", Description: "Weekly category spending stays inside budget", Criterion: "weekly_category_spend", TargetValue: "50000", Priority: "medium"},
		}
		m.History = baselineHistory(now)
		return nil
	})
	if err != nil {
		return false, err
	}

	return true, writeFixtures(a.cfg.DataDir, now)
}

// baselineHistory gives the scorer three weeks of weekly observations
// per domain, trending slightly worse toward the present.
func baselineHistory(now time.Time) map[string][]worldmodel.HistoryRecord {
	week := func(n int) time.Time { return now.AddDate(0, 0, -7*n) }
	return map[string][]worldmodel.HistoryRecord{
		"email": {
			{Date: week(3), AvgResponseTimeHrs: 1.5},
			{Date: week(2), AvgResponseTimeHrs: 2.0},
			{Date: week(1), AvgResponseTimeHrs: 2.5},
		},
		"github": {
			{Date: week(3), AvgReviewTimeHours: 20},
			{Date: week(2), AvgReviewTimeHours: 30},
			{Date: week(1), AvgReviewTimeHours: 44},
		},
		"health": {
			{Date: week(3), AvgSleepHours: 7.1},
			{Date: week(2), AvgSleepHours: 6.8},
			{Date: week(1), AvgSleepHours: 6.4},
		},
		"finance": {
			{Date: week(3), WeeklyCategorySpend: 42000},
			{Date: week(2), WeeklyCategorySpend: 48000},
			{Date: week(1), WeeklyCategorySpend: 55000},
		},
	}
}

// writeFixtures drops the sample source data the SampleSource reads.
// Existing files are preserved so hand edits survive a re-init.
func writeFixtures(dataDir string, now time.Time) error {
	fixtures := map[string]any{
		"sample_emails.json":       sampleEmails(now),
		"sample_github_prs.json":   samplePRs(now),
		"sample_health_data.json":  sampleHealth(now),
		"sample_finance_data.json": sampleTransactions(now),
	}
	for name, payload := range fixtures {
		path := filepath.Join(dataDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write fixture %s: %w", name, err)
		}
	}
	return nil
}

// sampleEmails buries two important unread messages below newsletters,
// outside the visible top 5.
func sampleEmails(now time.Time) []source.Email {
	ago := func(h int) time.Time { return now.Add(-time.Duration(h) * time.Hour) }
	return []source.Email{
		{ID: "email_1", Sender: "newsletter@shopping.example", Subject: "Weekend deals inside", ReceivedAt: ago(1), HiddenPriority: "low"},
		{ID: "email_2", Sender: "noreply@social.example", Subject: "You have 3 new followers", ReceivedAt: ago(2), HiddenPriority: "low"},
		{ID: "email_3", Sender: "promo@streaming.example", Subject: "New season just dropped", ReceivedAt: ago(3), HiddenPriority: "low"},
		{ID: "email_4", Sender: "digest@news.example", Subject: "Morning briefing", ReceivedAt: ago(4), HiddenPriority: "low", Read: true},
		{ID: "email_5", Sender: "updates@forum.example", Subject: "Replies to your thread", ReceivedAt: ago(5), HiddenPriority: "low"},
		{ID: "email_6", Sender: "cfo@client.example", Subject: "Contract renewal - decision needed today", ReceivedAt: ago(6), HiddenPriority: "high"},
		{ID: "email_7", Sender: "recruiter@bigco.example", Subject: "Final interview scheduling", ReceivedAt: ago(8), HiddenPriority: "high"},
		{ID: "email_8", Sender: "team@project.example", Subject: "Standup notes", ReceivedAt: ago(10), HiddenPriority: "medium", Read: true},
	}
}

// samplePRs includes two reviews pending for more than 48 hours.
func samplePRs(now time.Time) []source.PullRequest {
	ago := func(h int) time.Time { return now.Add(-time.Duration(h) * time.Hour) }
	return []source.PullRequest{
		{ID: "pr_101", Title: "Fix pagination off-by-one", Author: "mina", Repo: "acme/webapp", CreatedAt: ago(72), Status: "pending_review", Reviewer: "me"},
		{ID: "pr_102", Title: "Add retry to the upload client", Author: "jun", Repo: "acme/webapp", CreatedAt: ago(50), Status: "pending_review", Reviewer: "me"},
		{ID: "pr_103", Title: "Bump linter version", Author: "mina", Repo: "acme/tools", CreatedAt: ago(20), Status: "pending_review", Reviewer: "me"},
		{ID: "pr_104", Title: "Refactor session store", Author: "sam", Repo: "acme/webapp", CreatedAt: ago(90), Status: "approved", Reviewer: "me"},
	}
}

// sampleHealth trends sleep downward to a sub-7h weekly average.
func sampleHealth(now time.Time) []source.HealthRecord {
	day := func(n int) string { return now.AddDate(0, 0, -n).Format("2006-01-02") }
	return []source.HealthRecord{
		{Date: day(6), SleepHours: 7.2, Steps: 8200},
		{Date: day(5), SleepHours: 6.9, Steps: 7400},
		{Date: day(4), SleepHours: 6.5, Steps: 9100},
		{Date: day(3), SleepHours: 6.4, Steps: 6800},
		{Date: day(2), SleepHours: 6.1, Steps: 7900},
		{Date: day(1), SleepHours: 5.8, Steps: 8600},
		{Date: day(0), SleepHours: 5.9, Steps: 4100},
	}
}

// sampleTransactions pushes the food category past the weekly budget.
func sampleTransactions(now time.Time) []source.Transaction {
	day := func(n int) time.Time { return now.AddDate(0, 0, -n) }
	return []source.Transaction{
		{ID: "tx_1", Date: day(6), Amount: 18000, Category: "food", Merchant: "Delivery Go"},
		{ID: "tx_2", Date: day(5), Amount: 9500, Category: "food", Merchant: "Corner Deli"},
		{ID: "tx_3", Date: day(4), Amount: 32000, Category: "transport", Merchant: "Metro Card"},
		{ID: "tx_4", Date: day(3), Amount: 21000, Category: "food", Merchant: "Delivery Go"},
		{ID: "tx_5", Date: day(2), Amount: 7800, Category: "entertainment", Merchant: "Cinema"},
		{ID: "tx_6", Date: day(1), Amount: 15500, Category: "food", Merchant: "Night Ramen"},
	}
}
