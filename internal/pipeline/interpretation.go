package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sia/internal/llm"
	"sia/internal/logging"
	"sia/internal/obs"
	"sia/internal/problem"
	"sia/internal/prompts"
	"sia/internal/scoring"
	"sia/internal/worldmodel"
)

// InterpretationStage turns one gap into one problem candidate. LLM
// path preferred, gap-type template fallback otherwise.
type InterpretationStage struct {
	client  llm.Client
	prompts *prompts.Loader
	metrics *obs.Metrics
	logger  logging.Logger
}

func NewInterpretationStage(client llm.Client, loader *prompts.Loader, metrics *obs.Metrics, logger logging.Logger) *InterpretationStage {
	return &InterpretationStage{client: client, prompts: loader, metrics: metrics, logger: logging.OrNop(logger)}
}

// Interpret produces a Candidate problem carrying the gap's score.
func (s *InterpretationStage) Interpret(ctx context.Context, gap scoring.Gap, m *worldmodel.Model) problem.Problem {
	name, description, cause, impact := s.narrate(ctx, gap, m)

	now := time.Now()
	return problem.Problem{
		ID:            "prob_" + gap.ID,
		GapID:         gap.ID,
		Domain:        gap.Domain,
		Name:          name,
		Description:   description,
		Cause:         cause,
		Impact:        impact,
		Severity:      gap.Severity,
		AffectedItems: gap.AffectedItems,
		ProblemScore:  gap.ProblemScore,
		Status:        problem.StatusCandidate,
		DetectedAt:    now,
		UpdatedAt:     now,
	}
}

func (s *InterpretationStage) narrate(ctx context.Context, gap scoring.Gap, m *worldmodel.Model) (name, description, cause, impact string) {
	if s.client != nil {
		if n, d, c, i, err := s.narrateLLM(ctx, gap, m); err == nil {
			return n, d, c, i
		} else {
			s.logger.Warn("interpretation: LLM path failed, using template: %v", err)
			if s.metrics != nil {
				s.metrics.RecordLLMFallback(ctx, "interpretation")
			}
		}
	}
	t := templateFor(gap)
	return t.name, t.description, t.cause, t.impact
}

func (s *InterpretationStage) narrateLLM(ctx context.Context, gap scoring.Gap, m *worldmodel.Model) (string, string, string, string, error) {
	gapJSON, err := json.Marshal(gap)
	if err != nil {
		return "", "", "", "", err
	}
	wmJSON, err := json.Marshal(struct {
		Goals       []worldmodel.Goal      `json:"abstract_goals"`
		Preferences worldmodel.Preferences `json:"preferences"`
	}{m.AbstractGoals, m.Preferences})
	if err != nil {
		return "", "", "", "", err
	}
	prompt, err := s.prompts.Render(prompts.Interpretation, map[string]string{
		"gap":         string(gapJSON),
		"world_model": string(wmJSON),
	})
	if err != nil {
		return "", "", "", "", err
	}

	start := time.Now()
	resp, err := s.client.Generate(ctx, llm.Request{Prompt: prompt})
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordLLMRequest(ctx, "interpretation", status, time.Since(start))
	}
	if err != nil {
		return "", "", "", "", err
	}

	var parsed struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Cause       string `json:"cause"`
		Impact      string `json:"impact"`
	}
	if err := llm.ExtractJSON(resp.Content, &parsed); err != nil {
		return "", "", "", "", err
	}
	if parsed.Name == "" {
		return "", "", "", "", fmt.Errorf("interpretation: empty problem name from model")
	}
	return parsed.Name, parsed.Description, parsed.Cause, parsed.Impact, nil
}

type problemTemplate struct {
	name        string
	description string
	cause       string
	impact      string
}

var problemTemplates = map[string]problemTemplate{
	scoring.GapVisibility: {
		name:        "Important mail visibility problem",
		description: "Important mail is buried below newer messages and easy to miss.",
		cause:       "The inbox is fixed to chronological order, so priority is not reflected.",
		impact:      "Delayed responses to important mail can stall work and slip project schedules.",
	},
	scoring.GapResponseTime: {
		name:        "Important mail response delay",
		description: "Important mail stays unread past the expected confirmation window.",
		cause:       "Too much accumulated mail makes important messages hard to find.",
		impact:      "Slow replies erode trust with managers and teammates.",
	},
	scoring.GapReviewDelay: {
		name:        "Pull request review delay",
		description: "Pull requests assigned for review have waited more than two days.",
		cause:       "Review requests get lost among other notifications.",
		impact:      "Blocked teammates and slower merges for the whole team.",
	},
	scoring.GapSleepDeficit: {
		name:        "Sleep deficit",
		description: "Average nightly sleep has fallen below seven hours.",
		cause:       "Late activity is cutting into the sleep window.",
		impact:      "Reduced focus and long-term health risk.",
	},
	scoring.GapOverspending: {
		name:        "Category budget exceeded",
		description: "Weekly spending in a tracked category is over its budget.",
		cause:       "Small frequent purchases accumulate past the weekly cap.",
		impact:      "Monthly budget pressure and reduced savings.",
	},
}

func templateFor(gap scoring.Gap) problemTemplate {
	if t, ok := problemTemplates[gap.Type]; ok {
		return t
	}
	return problemTemplate{
		name:        fmt.Sprintf("%s deviation in %s", gap.Type, gap.Domain),
		description: gap.Description,
		cause:       "cause analysis pending",
		impact:      "impact analysis pending",
	}
}
