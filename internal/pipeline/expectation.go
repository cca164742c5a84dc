package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sia/internal/llm"
	"sia/internal/logging"
	"sia/internal/obs"
	"sia/internal/prompts"
	"sia/internal/worldmodel"
)

// ExpectationStage derives per-domain ideal states from the World
// Model and the current context. LLM preferred, fallback table
// otherwise. The output is never persisted.
type ExpectationStage struct {
	client  llm.Client
	prompts *prompts.Loader
	metrics *obs.Metrics
	logger  logging.Logger
}

func NewExpectationStage(client llm.Client, loader *prompts.Loader, metrics *obs.Metrics, logger logging.Logger) *ExpectationStage {
	return &ExpectationStage{client: client, prompts: loader, metrics: metrics, logger: logging.OrNop(logger)}
}

// Derive builds the expectation for one domain at the given time.
func (s *ExpectationStage) Derive(ctx context.Context, domain string, m *worldmodel.Model, at time.Time) *Expectation {
	if s.client != nil {
		if exp, err := s.deriveLLM(ctx, domain, m, at); err == nil {
			return exp
		} else {
			s.logger.Warn("expectation: LLM path failed for %s, using fallback: %v", domain, err)
			if s.metrics != nil {
				s.metrics.RecordLLMFallback(ctx, "expectation")
			}
		}
	}
	return s.fallback(domain, m)
}

func (s *ExpectationStage) deriveLLM(ctx context.Context, domain string, m *worldmodel.Model, at time.Time) (*Expectation, error) {
	wm, err := json.Marshal(struct {
		Goals       []worldmodel.Goal       `json:"abstract_goals"`
		Preferences worldmodel.Preferences  `json:"preferences"`
		Patterns    []worldmodel.Pattern    `json:"patterns"`
		IdealStates []worldmodel.IdealState `json:"ideal_states"`
	}{m.AbstractGoals, m.Preferences, m.Patterns, m.IdealStates})
	if err != nil {
		return nil, err
	}
	contextStr := fmt.Sprintf(`{"day": %q, "time": %q, "timestamp": %q}`,
		at.Weekday(), at.Format("15:04"), at.Format(time.RFC3339))

	prompt, err := s.prompts.Render(prompts.Expectation, map[string]string{
		"domain":      domain,
		"world_model": string(wm),
		"context":     contextStr,
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
		s.metrics.RecordLLMRequest(ctx, "expectation", status, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Domain      string                  `json:"domain"`
		IdealStates []worldmodel.IdealState `json:"ideal_states"`
	}
	if err := llm.ExtractJSON(resp.Content, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.IdealStates) == 0 {
		return nil, fmt.Errorf("expectation: empty ideal states from model")
	}
	return &Expectation{Domain: domain, IdealStates: parsed.IdealStates, Source: "llm"}, nil
}

// defaultIdealStates is the per-domain fallback table.
var defaultIdealStates = map[string][]worldmodel.IdealState{
	"email": {
		{ID: "ideal_email_1", Domain: "email", Description: "important mail confirmed within 30 minutes", Criterion: "response_time_minutes", TargetValue: "30", Priority: "high"},
		{ID: "ideal_email_2", Domain: "email", Description: "important mail visible in the top 5 of the inbox", Criterion: "top5_visibility", TargetValue: "all", Priority: "high"},
	},
	"github": {
		{ID: "ideal_github_1", Domain: "github", Description: "pull requests reviewed within 24 hours", Criterion: "review_time_hours", TargetValue: "24", Priority: "high"},
	},
	"health": {
		{ID: "ideal_health_1", Domain: "health", Description: "at least 7 hours of sleep per night", Criterion: "sleep_hours", TargetValue: "7", Priority: "medium"},
	},
	"finance": {
		{ID: "ideal_finance_1", Domain: "finance", Description: "weekly delivery-app spend at or under 50000", Criterion: "weekly_category_spend", TargetValue: "50000", Priority: "medium"},
	},
}

func (s *ExpectationStage) fallback(domain string, m *worldmodel.Model) *Expectation {
	states := append([]worldmodel.IdealState(nil), defaultIdealStates[domain]...)
	for _, ideal := range m.IdealStates {
		if ideal.Domain == domain {
			states = append(states, ideal)
		}
	}
	return &Expectation{Domain: domain, IdealStates: states, Source: "fallback"}
}
