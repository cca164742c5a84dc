package scoring

import (
	"sort"
	"time"

	"sia/internal/worldmodel"
)

// DefaultThreshold is the minimum problem score a gap needs to survive
// filtering.
const DefaultThreshold = 0.5

// Context is the situational input to the scorer.
type Context struct {
	Day       time.Weekday
	Hour      int
	Timestamp time.Time
}

// ContextAt derives a scoring context from a wall-clock time.
func ContextAt(t time.Time) Context {
	return Context{Day: t.Weekday(), Hour: t.Hour(), Timestamp: t}
}

// Score approximates the expected utility loss of leaving a gap
// unaddressed, in [0, 1]. Five weighted signals: persistence 0.25,
// severity 0.25, context importance 0.20, preference violation 0.15,
// unsolved cost 0.15.
func Score(gap Gap, m *worldmodel.Model, baseline *Baseline, ctx Context) float64 {
	total := persistence(gap)*0.25 +
		severityScore(gap, baseline)*0.25 +
		contextImportance(gap, ctx, m)*0.20 +
		preferenceViolation(gap, m)*0.15 +
		unsolvedCost(gap)*0.15

	if total > 1.0 {
		return 1.0
	}
	if total < 0.0 {
		return 0.0
	}
	return total
}

// persistence rewards recurring or trending gaps. A recognizable trend
// wins over the recurrence count.
func persistence(gap Gap) float64 {
	switch gap.Evidence.Trend {
	case "increasing", "decreasing", "stable":
		return 0.8
	}
	if gap.Evidence.HasRecurrence {
		switch {
		case gap.Evidence.RecurrenceCount >= 3:
			return 0.9
		case gap.Evidence.RecurrenceCount >= 2:
			return 0.6
		default:
			return 0.3
		}
	}
	return 0.2
}

// severityScore starts from the severity grade and shifts by the
// relative deviation from the personal baseline when one is available.
func severityScore(gap Gap, baseline *Baseline) float64 {
	base := 0.5
	switch gap.Severity {
	case SeverityHigh:
		base = 0.9
	case SeverityMedium:
		base = 0.6
	case SeverityLow:
		base = 0.3
	}

	if baseline == nil || baseline.Value <= 0 {
		return base
	}

	current := gap.Evidence.CurrentValue
	ratio := current - baseline.Value
	if ratio < 0 {
		ratio = -ratio
	}
	ratio /= baseline.Value

	switch {
	case ratio >= 0.5:
		if base+0.2 > 1.0 {
			return 1.0
		}
		return base + 0.2
	case ratio >= 0.2:
		return base
	default:
		if base-0.2 < 0.3 {
			return 0.3
		}
		return base - 0.2
	}
}

// contextImportance averages a time-of-day factor, a weekday factor and
// a same-domain-confirmed-problem factor.
func contextImportance(gap Gap, ctx Context, m *worldmodel.Model) float64 {
	timeScore := 0.4
	if ctx.Hour >= 9 && ctx.Hour <= 18 {
		timeScore = 0.7
	}

	dayScore := 0.5
	if ctx.Day >= time.Monday && ctx.Day <= time.Friday {
		dayScore = 0.8
	}

	domainScore := 0.5
	if m != nil && m.HasConfirmedInDomain(gap.Domain) {
		domainScore = 0.8
	}

	return (timeScore + dayScore + domainScore) / 3
}

// preferenceViolation is high when the gap collides with an explicit
// user preference.
func preferenceViolation(gap Gap, m *worldmodel.Model) float64 {
	if m == nil {
		return 0.1
	}
	if gap.Type == GapNotificationOverload && m.Preferences.Notifications.Frequency == "minimal" {
		return 0.9
	}
	if gap.Type == GapAutomationNeeded && m.Preferences.Automation.Acceptance == "low" {
		return 0.7
	}
	return 0.1
}

var typeCost = map[string]float64{
	GapMissedDeadline:   0.9,
	GapResponseTime:     0.7,
	GapVisibility:       0.6,
	GapPatternDeviation: 0.4,
}

// unsolvedCost averages a severity cost with a per-type cost table.
func unsolvedCost(gap Gap) float64 {
	baseCost := 0.5
	switch gap.Severity {
	case SeverityHigh:
		baseCost = 0.8
	case SeverityMedium:
		baseCost = 0.5
	case SeverityLow:
		baseCost = 0.2
	}

	cost, ok := typeCost[gap.Type]
	if !ok {
		cost = 0.5
	}
	return (baseCost + cost) / 2
}

// Filter scores every gap, keeps those at or above threshold and sorts
// the survivors by descending score. All gaps receive their score even
// when filtered out.
func Filter(gaps []Gap, m *worldmodel.Model, baseline *Baseline, ctx Context, threshold float64) []Gap {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var kept []Gap
	for i := range gaps {
		gaps[i].ProblemScore = Score(gaps[i], m, baseline, ctx)
		if gaps[i].ProblemScore >= threshold {
			kept = append(kept, gaps[i])
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ProblemScore > kept[j].ProblemScore
	})
	return kept
}
