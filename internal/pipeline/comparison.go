package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sia/internal/llm"
	"sia/internal/logging"
	"sia/internal/obs"
	"sia/internal/prompts"
	"sia/internal/scoring"
	"sia/internal/worldmodel"
)

// DefaultCategoryBudget caps weekly category spend when no finance
// ideal state names a target.
const DefaultCategoryBudget = 50000

// ComparisonStage runs the two-tier gap detection: deterministic
// per-domain rules always, LLM enrichment when available. The rule set
// is authoritative and survives any LLM failure.
type ComparisonStage struct {
	client    llm.Client
	prompts   *prompts.Loader
	threshold float64
	weeks     int
	metrics   *obs.Metrics
	logger    logging.Logger
}

func NewComparisonStage(client llm.Client, loader *prompts.Loader, threshold float64, baselineWeeks int, metrics *obs.Metrics, logger logging.Logger) *ComparisonStage {
	if threshold <= 0 {
		threshold = scoring.DefaultThreshold
	}
	return &ComparisonStage{
		client:    client,
		prompts:   loader,
		threshold: threshold,
		weeks:     baselineWeeks,
		metrics:   metrics,
		logger:    logging.OrNop(logger),
	}
}

// Compare detects gaps for one domain, scores them against the
// personal baseline and returns the filtered, score-sorted list.
func (s *ComparisonStage) Compare(ctx context.Context, domain string, state *CurrentState, exp *Expectation, m *worldmodel.Model, at time.Time) []scoring.Gap {
	gaps := detectGaps(domain, state.State(domain), exp, at)

	if s.client != nil && len(gaps) > 0 {
		gaps = s.enrich(ctx, domain, state, exp, gaps)
	}

	baseline := scoring.NewBaselineCalculator(s.weeks).Calculate(domain, m)
	kept := scoring.Filter(gaps, m, baseline, scoring.ContextAt(at), s.threshold)

	if s.metrics != nil {
		s.metrics.RecordGaps(ctx, domain, len(kept))
	}
	s.logger.Debug("comparison: %s emitted %d gaps, %d above threshold", domain, len(gaps), len(kept))
	return kept
}

// detectGaps is the cheap tier: deterministic rules with full evidence.
func detectGaps(domain string, ds *DomainState, exp *Expectation, at time.Time) []scoring.Gap {
	if ds == nil {
		return nil
	}
	switch domain {
	case "email":
		return emailGaps(ds)
	case "github":
		return githubGaps(ds, at)
	case "health":
		return healthGaps(ds)
	case "finance":
		return financeGaps(ds, exp)
	}
	return nil
}

func emailGaps(ds *DomainState) []scoring.Gap {
	var gaps []scoring.Gap

	var important, unreadImportant []string
	for _, e := range ds.Emails {
		if e.HiddenPriority != "high" {
			continue
		}
		important = append(important, e.ID)
		if !e.Read {
			unreadImportant = append(unreadImportant, e.ID)
		}
	}
	if len(important) == 0 {
		return nil
	}

	// Inbox is insertion-ordered; important mail must surface in the
	// top five.
	top := ds.Emails
	if len(top) > 5 {
		top = top[:5]
	}
	importantInTop := false
	for _, e := range top {
		if e.HiddenPriority == "high" {
			importantInTop = true
			break
		}
	}
	if !importantInTop {
		gaps = append(gaps, scoring.Gap{
			ID:            "gap_email_visibility",
			Type:          scoring.GapVisibility,
			Domain:        "email",
			Severity:      scoring.SeverityHigh,
			Description:   "important mail is not visible at the top of the inbox",
			Current:       fmt.Sprintf("%d important emails, none in the top 5", len(important)),
			Expected:      "important mail surfaces in the top 5",
			AffectedItems: firstN(important, 3),
			Evidence: scoring.Evidence{
				CurrentValue:  float64(len(important)),
				ExpectedValue: 0,
			},
		})
	}

	if len(unreadImportant) > 0 {
		gaps = append(gaps, scoring.Gap{
			ID:            "gap_email_response_time",
			Type:          scoring.GapResponseTime,
			Domain:        "email",
			Severity:      scoring.SeverityHigh,
			Description:   "important mail is still unread",
			Current:       fmt.Sprintf("%d unread important emails", len(unreadImportant)),
			Expected:      "important mail confirmed within 30 minutes",
			AffectedItems: firstN(unreadImportant, 3),
			Evidence: scoring.Evidence{
				CurrentValue:  float64(len(unreadImportant)),
				ExpectedValue: 0,
			},
		})
	}
	return gaps
}

func githubGaps(ds *DomainState, at time.Time) []scoring.Gap {
	var stale []string
	var oldest float64
	for _, pr := range ds.PullRequests {
		if pr.Status != "pending_review" {
			continue
		}
		if age := pr.AgeHours(at); age > 48 {
			stale = append(stale, pr.ID)
			if age > oldest {
				oldest = age
			}
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return []scoring.Gap{{
		ID:            "gap_github_review_delay",
		Type:          scoring.GapReviewDelay,
		Domain:        "github",
		Severity:      scoring.SeverityHigh,
		Description:   "pull requests have waited more than 48 hours for review",
		Current:       fmt.Sprintf("%d PRs pending review, oldest %.0fh", len(stale), oldest),
		Expected:      "PRs reviewed within 24 hours",
		AffectedItems: firstN(stale, 3),
		Evidence: scoring.Evidence{
			CurrentValue:    oldest,
			ExpectedValue:   48,
			RecurrenceCount: len(stale),
			HasRecurrence:   true,
		},
	}}
}

func healthGaps(ds *DomainState) []scoring.Gap {
	if len(ds.Health) == 0 || ds.AvgSleepHours >= 7 {
		return nil
	}

	trend := "stable"
	if last := len(ds.Health) - 1; ds.Health[last].SleepHours < ds.Health[0].SleepHours {
		trend = "decreasing"
	}

	return []scoring.Gap{{
		ID:          "gap_health_sleep_deficit",
		Type:        scoring.GapSleepDeficit,
		Domain:      "health",
		Severity:    scoring.SeverityMedium,
		Description: "average sleep is below seven hours",
		Current:     fmt.Sprintf("average %.1fh over %d days", ds.AvgSleepHours, len(ds.Health)),
		Expected:    "at least 7 hours of sleep per night",
		Evidence: scoring.Evidence{
			CurrentValue:  ds.AvgSleepHours,
			ExpectedValue: 7,
			Trend:         trend,
		},
	}}
}

func financeGaps(ds *DomainState, exp *Expectation) []scoring.Gap {
	budget := categoryBudget(exp)

	var gaps []scoring.Gap
	for category, total := range ds.WeeklyCategoryTotals {
		if total <= budget {
			continue
		}
		severity := scoring.SeverityMedium
		if total > budget*1.5 {
			severity = scoring.SeverityHigh
		}
		gaps = append(gaps, scoring.Gap{
			ID:          "gap_finance_overspending_" + category,
			Type:        scoring.GapOverspending,
			Domain:      "finance",
			Severity:    severity,
			Description: fmt.Sprintf("weekly %s spend exceeds the budget", category),
			Current:     fmt.Sprintf("%.0f spent this week on %s", total, category),
			Expected:    fmt.Sprintf("weekly %s spend at or under %.0f", category, budget),
			Evidence: scoring.Evidence{
				CurrentValue:  total,
				ExpectedValue: budget,
				Trend:         "increasing",
			},
		})
	}
	return gaps
}

// categoryBudget parses the finance target from the expectation's
// ideal states, defaulting when absent.
func categoryBudget(exp *Expectation) float64 {
	if exp != nil {
		for _, ideal := range exp.IdealStates {
			if ideal.Criterion != "weekly_category_spend" {
				continue
			}
			if v, err := strconv.ParseFloat(ideal.TargetValue, 64); err == nil && v > 0 {
				return v
			}
		}
	}
	return DefaultCategoryBudget
}

// enrich is the expensive tier: the model may add gaps the rules
// missed, deduplicated by type. Rule-based gaps are never replaced.
func (s *ComparisonStage) enrich(ctx context.Context, domain string, state *CurrentState, exp *Expectation, gaps []scoring.Gap) []scoring.Gap {
	stateJSON, err := json.Marshal(state.State(domain))
	if err != nil {
		return gaps
	}
	expJSON, err := json.Marshal(exp)
	if err != nil {
		return gaps
	}
	prompt, err := s.prompts.Render(prompts.Comparison, map[string]string{
		"current_state": string(stateJSON),
		"expectation":   string(expJSON),
	})
	if err != nil {
		return gaps
	}

	start := time.Now()
	resp, err := s.client.Generate(ctx, llm.Request{Prompt: prompt})
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordLLMRequest(ctx, "comparison", status, time.Since(start))
	}
	if err != nil {
		s.logger.Debug("comparison: enrichment unavailable: %v", err)
		return gaps
	}

	var extra []scoring.Gap
	if err := llm.ExtractJSON(resp.Content, &extra); err != nil {
		s.logger.Debug("comparison: enrichment parse failed: %v", err)
		return gaps
	}

	seen := map[string]bool{}
	for _, g := range gaps {
		seen[g.Type] = true
	}
	for _, g := range extra {
		if g.Type == "" || seen[g.Type] {
			continue
		}
		if g.Domain == "" {
			g.Domain = domain
		}
		if g.ID == "" {
			g.ID = "gap_" + domain + "_" + g.Type
		}
		if g.Evidence.RecurrenceCount > 0 {
			g.Evidence.HasRecurrence = true
		}
		seen[g.Type] = true
		gaps = append(gaps, g)
	}
	return gaps
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
