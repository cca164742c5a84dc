package pipeline

import (
	"fmt"
	"time"

	"sia/internal/execution"
	"sia/internal/logging"
	"sia/internal/worldmodel"
)

// Learning thresholds for pattern retention.
const (
	learnSuccessRate  = 0.8
	learnSatisfaction = 0.7
)

// Feedback is optional user feedback on a run.
type Feedback struct {
	Satisfaction float64 `json:"satisfaction"`
	Comment      string  `json:"comment,omitempty"`
}

// Analysis summarizes one execution for learning.
type Analysis struct {
	SuccessRate      float64   `json:"success_rate"`
	ProcessedItems   int       `json:"processed_items"`
	UserSatisfaction float64   `json:"user_satisfaction"`
	Timestamp        time.Time `json:"timestamp"`
}

// LearningStage observes execution results and folds them back into
// the World Model.
type LearningStage struct {
	store  worldmodel.Store
	logger logging.Logger
}

func NewLearningStage(store worldmodel.Store, logger logging.Logger) *LearningStage {
	return &LearningStage{store: store, logger: logging.OrNop(logger)}
}

// Analyze derives the learning signals from a run. Absent feedback
// reads as neutral satisfaction.
func Analyze(result *execution.Result, feedback *Feedback) Analysis {
	satisfaction := 0.5
	if feedback != nil {
		satisfaction = feedback.Satisfaction
	}
	return Analysis{
		SuccessRate:      result.Summary.SuccessRate,
		ProcessedItems:   result.Summary.ProcessedCount,
		UserSatisfaction: satisfaction,
		Timestamp:        time.Now(),
	}
}

// Update persists the learning outcome: a pattern entry when the run
// was a clear success, and an updated_at bump regardless. A missing
// domain is fatal.
func (s *LearningStage) Update(result *execution.Result, feedback *Feedback) (*worldmodel.Model, error) {
	if result.Domain == "" {
		return nil, fmt.Errorf("learning: execution result has no domain")
	}

	analysis := Analyze(result, feedback)

	m, err := s.store.Mutate(func(m *worldmodel.Model) error {
		if analysis.SuccessRate > learnSuccessRate && analysis.UserSatisfaction > learnSatisfaction {
			m.Patterns = append(m.Patterns, worldmodel.Pattern{
				ID:        fmt.Sprintf("pattern_%d", len(m.Patterns)+1),
				Type:      "learned",
				Behavior:  fmt.Sprintf("%s works well for the user", result.SolutionName),
				Domain:    result.Domain,
				LearnedAt: time.Now(),
				Metrics: map[string]float64{
					"success_rate":      analysis.SuccessRate,
					"processed_items":   float64(analysis.ProcessedItems),
					"user_satisfaction": analysis.UserSatisfaction,
				},
			})
			s.logger.Info("learning: retained pattern for %s (%s)", result.Domain, result.SolutionName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
