package scoring

import (
	"time"

	"sia/internal/worldmodel"
)

// Baseline window bounds in weeks.
const (
	DefaultBaselineWeeks = 3
	MinBaselineWeeks     = 2
	MaxBaselineWeeks     = 4
)

// Baseline is a personal rolling average for one domain metric.
type Baseline struct {
	Domain       string             `json:"domain"`
	Value        float64            `json:"baseline_value"`
	PeriodWeeks  int                `json:"baseline_period_weeks"`
	CalculatedAt time.Time          `json:"calculated_at"`
	Metrics      map[string]float64 `json:"metrics"`
}

// BaselineCalculator computes domain baselines from World Model history.
// For an unchanged history the result is stable.
type BaselineCalculator struct {
	weeks int
}

// NewBaselineCalculator clamps weeks to the valid 2-4 range; zero
// selects the default of 3.
func NewBaselineCalculator(weeks int) *BaselineCalculator {
	if weeks == 0 {
		weeks = DefaultBaselineWeeks
	}
	if weeks < MinBaselineWeeks {
		weeks = MinBaselineWeeks
	}
	if weeks > MaxBaselineWeeks {
		weeks = MaxBaselineWeeks
	}
	return &BaselineCalculator{weeks: weeks}
}

// Calculate returns the baseline for a domain, or nil when the history
// is empty; callers degrade gracefully.
func (c *BaselineCalculator) Calculate(domain string, m *worldmodel.Model) *Baseline {
	if m == nil {
		return nil
	}
	history := m.History[domain]
	if len(history) == 0 {
		return nil
	}

	// Last N weeks of daily records.
	window := history
	if max := c.weeks * 7; len(window) > max {
		window = window[len(window)-max:]
	}

	var value float64
	metrics := map[string]float64{"sample_size": float64(len(window))}

	switch domain {
	case "email":
		value = mean(window, func(r worldmodel.HistoryRecord) float64 { return r.AvgResponseTimeHrs })
		metrics["avg_response_time_hours"] = value
	case "github":
		value = mean(window, func(r worldmodel.HistoryRecord) float64 { return r.AvgReviewTimeHours })
		metrics["avg_review_time_hours"] = value
	case "health":
		value = mean(window, func(r worldmodel.HistoryRecord) float64 { return r.AvgSleepHours })
		metrics["avg_sleep_hours"] = value
	case "finance":
		value = mean(window, func(r worldmodel.HistoryRecord) float64 {
			if r.WeeklyCategorySpend > 0 {
				return r.WeeklyCategorySpend
			}
			return r.DeliverySpending
		})
		metrics["avg_delivery_spending"] = value
	default:
		return nil
	}

	return &Baseline{
		Domain:       domain,
		Value:        value,
		PeriodWeeks:  c.weeks,
		CalculatedAt: time.Now(),
		Metrics:      metrics,
	}
}

// mean averages the non-zero samples selected by pick; zero samples are
// treated as missing observations.
func mean(records []worldmodel.HistoryRecord, pick func(worldmodel.HistoryRecord) float64) float64 {
	var sum float64
	var n int
	for _, r := range records {
		v := pick(r)
		if v == 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
