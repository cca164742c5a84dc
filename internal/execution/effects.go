package execution

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sia/internal/source"
)

// Input is the domain data an agent run operates on. Exactly the
// slice for the agent's domain is populated.
type Input struct {
	Emails       []source.Email
	PullRequests []source.PullRequest
	Health       []source.HealthRecord
	Transactions []source.Transaction

	// CategoryBudget bounds weekly spend per category for the finance
	// domain; zero means no budget configured.
	CategoryBudget float64

	Now time.Time
}

func (in Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

// ProcessedEmail is an email after labeling.
type ProcessedEmail struct {
	ID            string `json:"id"`
	Subject       string `json:"subject,omitempty"`
	AppliedLabel  string `json:"applied_label"`
	PriorityScore int    `json:"priority_score"`
}

// Notification is one outbound message produced by an effect.
type Notification struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient,omitempty"`
	Message   string `json:"message"`
}

// Effect output accumulated across the action loop.
type ProcessedData struct {
	Emails        []ProcessedEmail `json:"emails,omitempty"`
	Notifications []Notification   `json:"notifications,omitempty"`
	Metrics       map[string]any   `json:"metrics,omitempty"`
	Categorized   map[string]int   `json:"categorized,omitempty"`
}

// applyEffect simulates the named effect against the input and
// returns a human-readable output line. Mutations accumulate in data.
func applyEffect(do string, in Input, data *ProcessedData) (string, error) {
	switch {
	case do == "gmail.read_messages":
		unread := 0
		for _, e := range in.Emails {
			if !e.Read {
				unread++
			}
		}
		return fmt.Sprintf("read %d emails (%d unread)", len(in.Emails), unread), nil

	case strings.HasPrefix(do, "gmail.apply_label:"):
		label := strings.TrimPrefix(do, "gmail.apply_label:")
		return applyLabels(label, in, data), nil

	case do == "github.read_pull_requests":
		return fmt.Sprintf("read %d pull requests", len(in.PullRequests)), nil

	case do == "slack.send_dm":
		return remindStaleReviews(in, data), nil

	case do == "health.read_metrics":
		return fmt.Sprintf("read %d daily health records", len(in.Health)), nil

	case strings.HasPrefix(do, "health.track_metric:"):
		metric := strings.TrimPrefix(do, "health.track_metric:")
		return trackHealthMetric(metric, in, data), nil

	case do == "notify.daily_report":
		data.Notifications = append(data.Notifications, Notification{
			Channel: "notification",
			Message: "daily health summary ready",
		})
		return "queued daily report notification", nil

	case do == "finance.read_transactions":
		return fmt.Sprintf("read %d transactions", len(in.Transactions)), nil

	case do == "finance.categorize_transactions":
		return categorizeTransactions(in, data), nil

	case do == "notify.budget_alert":
		total := weeklyTotal(in)
		data.Notifications = append(data.Notifications, Notification{
			Channel: "notification",
			Message: fmt.Sprintf("weekly spend %.0f exceeds budget %.0f", total, in.CategoryBudget),
		})
		return "queued budget alert", nil
	}

	return "", fmt.Errorf("unrecognized effect %q", do)
}

func applyLabels(label string, in Input, data *ProcessedData) string {
	count := 0
	for _, e := range in.Emails {
		important := e.HiddenPriority == "high"
		if (label == "important") != important {
			continue
		}
		score := 2
		switch e.HiddenPriority {
		case "high":
			score = 3
		case "low":
			score = 1
		}
		data.Emails = append(data.Emails, ProcessedEmail{
			ID:            e.ID,
			Subject:       e.Subject,
			AppliedLabel:  label,
			PriorityScore: score,
		})
		count++
	}
	sort.SliceStable(data.Emails, func(i, j int) bool {
		return data.Emails[i].PriorityScore > data.Emails[j].PriorityScore
	})
	return fmt.Sprintf("applied label %q to %d emails", label, count)
}

func remindStaleReviews(in Input, data *ProcessedData) string {
	now := in.now()
	count := 0
	for _, pr := range in.PullRequests {
		if pr.Status != "pending_review" || pr.AgeHours(now) <= 48 {
			continue
		}
		data.Notifications = append(data.Notifications, Notification{
			Channel:   "slack",
			Recipient: pr.Reviewer,
			Message:   fmt.Sprintf("PR %q has waited %.0fh for review", pr.Title, pr.AgeHours(now)),
		})
		count++
	}
	return fmt.Sprintf("sent %d review reminders", count)
}

func trackHealthMetric(metric string, in Input, data *ProcessedData) string {
	if data.Metrics == nil {
		data.Metrics = map[string]any{}
	}
	if metric == "sleep_hours" {
		data.Metrics["avg_sleep_hours"] = avgSleep(in.Health)
		data.Metrics["days_tracked"] = len(in.Health)
	}
	return fmt.Sprintf("tracked metric %s over %d records", metric, len(in.Health))
}

func categorizeTransactions(in Input, data *ProcessedData) string {
	if data.Categorized == nil {
		data.Categorized = map[string]int{}
	}
	for _, t := range in.Transactions {
		category := t.Category
		if category == "" {
			category = "uncategorized"
		}
		data.Categorized[category]++
	}
	return fmt.Sprintf("categorized %d transactions into %d categories", len(in.Transactions), len(data.Categorized))
}

func avgSleep(records []source.HealthRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.SleepHours
	}
	return sum / float64(len(records))
}

func weeklyTotal(in Input) float64 {
	cutoff := in.now().AddDate(0, 0, -7)
	var total float64
	for _, t := range in.Transactions {
		if t.Date.After(cutoff) {
			total += t.Amount
		}
	}
	return total
}
