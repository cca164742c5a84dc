package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sia/internal/agent"
	"sia/internal/llm"
	"sia/internal/logging"
	"sia/internal/obs"
	"sia/internal/problem"
	"sia/internal/prompts"
	"sia/internal/worldmodel"
)

// maxSolutions bounds what Exploration returns per problem.
const maxSolutions = 3

// ExplorationStage proposes candidate solutions for a problem. LLM
// path preferred, per-gap-type template fallback otherwise.
type ExplorationStage struct {
	client  llm.Client
	prompts *prompts.Loader
	metrics *obs.Metrics
	logger  logging.Logger
}

func NewExplorationStage(client llm.Client, loader *prompts.Loader, metrics *obs.Metrics, logger logging.Logger) *ExplorationStage {
	return &ExplorationStage{client: client, prompts: loader, metrics: metrics, logger: logging.OrNop(logger)}
}

// Explore returns at most three solutions for the problem.
func (s *ExplorationStage) Explore(ctx context.Context, prob problem.Problem, m *worldmodel.Model) []agent.Solution {
	if s.client != nil {
		if solutions, err := s.exploreLLM(ctx, prob, m); err == nil {
			return solutions
		} else {
			s.logger.Warn("exploration: LLM path failed, using templates: %v", err)
			if s.metrics != nil {
				s.metrics.RecordLLMFallback(ctx, "exploration")
			}
		}
	}
	return fallbackSolutions(prob)
}

func (s *ExplorationStage) exploreLLM(ctx context.Context, prob problem.Problem, m *worldmodel.Model) ([]agent.Solution, error) {
	probJSON, err := json.Marshal(prob)
	if err != nil {
		return nil, err
	}
	wmJSON, err := json.Marshal(struct {
		Goals       []worldmodel.Goal      `json:"abstract_goals"`
		Preferences worldmodel.Preferences `json:"preferences"`
	}{m.AbstractGoals, m.Preferences})
	if err != nil {
		return nil, err
	}
	prompt, err := s.prompts.Render(prompts.Exploration, map[string]string{
		"problem":     string(probJSON),
		"world_model": string(wmJSON),
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.Generate(ctx, llm.Request{Prompt: prompt})
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordLLMRequest(ctx, "exploration", status, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	var solutions []agent.Solution
	if err := llm.ExtractJSON(resp.Content, &solutions); err != nil {
		return nil, err
	}
	if len(solutions) == 0 {
		return nil, fmt.Errorf("exploration: no solutions from model")
	}
	if len(solutions) > maxSolutions {
		solutions = solutions[:maxSolutions]
	}
	for i := range solutions {
		if solutions[i].ID == "" {
			solutions[i].ID = fmt.Sprintf("sol_%s_%d", prob.GapID, i+1)
		}
	}
	return solutions, nil
}

// fallbackSolutions is the template path, keyed by the gap type behind
// the problem.
func fallbackSolutions(prob problem.Problem) []agent.Solution {
	switch {
	case prob.GapID == "gap_email_visibility" || prob.Name == "Important mail visibility problem":
		return []agent.Solution{
			{
				ID:            "sol_1",
				Name:          "Auto-classification",
				Description:   "Analyze sender and keyword patterns, classify important mail automatically and surface it at the top.",
				Pros:          []string{"addresses the root cause", "keeps working once configured", "no notification fatigue"},
				Cons:          []string{"needs initial setup", "classification accuracy takes time to learn"},
				Complexity:    "medium",
				RiskLevel:     agent.RiskLow,
				RequiredTools: []string{"email_reader", "classifier", "label_applier"},
			},
			{
				ID:            "sol_2",
				Name:          "Realtime alert",
				Description:   "Notify immediately when important mail arrives.",
				Pros:          []string{"applies immediately", "simple to build"},
				Cons:          []string{"can raise notification fatigue", "does not fix the ordering"},
				Complexity:    "low",
				RiskLevel:     agent.RiskLow,
				RequiredTools: []string{"email_reader", "notification"},
			},
			{
				ID:            "sol_3",
				Name:          "Morning summary",
				Description:   "Generate a daily morning digest of important mail.",
				Pros:          []string{"non-intrusive", "one glance overview"},
				Cons:          []string{"not realtime", "digest generation takes time"},
				Complexity:    "medium",
				RiskLevel:     agent.RiskLow,
				RequiredTools: []string{"email_reader", "summarizer", "report_generator"},
			},
		}
	case prob.GapID == "gap_email_response_time" || prob.Name == "Important mail response delay":
		return []agent.Solution{{
			ID:            "sol_4",
			Name:          "Priority sort",
			Description:   "Sort the inbox by priority so important mail stays on top.",
			Pros:          []string{"immediate effect", "minimal user involvement"},
			Cons:          []string{"needs a priority scoring rule"},
			Complexity:    "medium",
			RiskLevel:     agent.RiskLow,
			RequiredTools: []string{"email_reader", "priority_scorer", "sorter"},
		}}
	case prob.Domain == "github":
		return []agent.Solution{{
			ID:            "sol_gh_1",
			Name:          "Review reminder DM",
			Description:   "Send a direct message when an assigned review has waited more than 48 hours.",
			Pros:          []string{"hard to miss", "targets only stale reviews"},
			Cons:          []string{"one more notification channel"},
			Complexity:    "low",
			RiskLevel:     agent.RiskLow,
			RequiredTools: []string{"pr_reader", "dm_sender"},
		}}
	case prob.Domain == "health":
		return []agent.Solution{{
			ID:            "sol_h_1",
			Name:          "Sleep pattern analysis & alert",
			Description:   "Track nightly sleep, analyze the trend and alert when the average drops below target.",
			Pros:          []string{"early warning", "builds a personal baseline"},
			Cons:          []string{"needs consistent wearable data"},
			Complexity:    "medium",
			RiskLevel:     agent.RiskLow,
			RequiredTools: []string{"health_reader", "metric_tracker", "notification"},
		}}
	case prob.Domain == "finance":
		return []agent.Solution{{
			ID:            "sol_f_1",
			Name:          "Budget guard",
			Description:   "Categorize weekly spending and alert when a category passes its budget.",
			Pros:          []string{"catches overspending early", "no manual bookkeeping"},
			Cons:          []string{"category detection is approximate"},
			Complexity:    "medium",
			RiskLevel:     agent.RiskLow,
			RequiredTools: []string{"finance_reader", "categorizer", "notification"},
		}}
	}

	return []agent.Solution{{
		ID:            "sol_default",
		Name:          "General remediation",
		Description:   "Analyze the problem and apply a suitable remedy.",
		Pros:          []string{"applicable"},
		Cons:          []string{"needs refinement"},
		Complexity:    "medium",
		RiskLevel:     agent.RiskMedium,
		RequiredTools: nil,
	}}
}
