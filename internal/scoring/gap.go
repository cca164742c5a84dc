// Package scoring ranks detected gaps with the five-signal problem score
// and computes personal baselines from World Model history.
package scoring

// Gap types emitted by the deterministic comparison rules.
const (
	GapVisibility           = "visibility"
	GapResponseTime         = "response_time"
	GapReviewDelay          = "review_delay"
	GapSleepDeficit         = "sleep_deficit"
	GapOverspending         = "overspending"
	GapMissedDeadline       = "missed_deadline"
	GapPatternDeviation     = "pattern_deviation"
	GapNotificationOverload = "notification_overload"
	GapAutomationNeeded     = "automation_needed"
)

// Severity grades.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Evidence backs a gap with measurements.
type Evidence struct {
	CurrentValue    float64 `json:"current_value"`
	ExpectedValue   float64 `json:"expected_value"`
	Trend           string  `json:"trend,omitempty"`
	RecurrenceCount int     `json:"recurrence_count"`
	HasRecurrence   bool    `json:"-"`
}

// Gap is a measurable deviation between the current state and an
// expectation.
type Gap struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Domain        string   `json:"domain"`
	Severity      string   `json:"severity"`
	Description   string   `json:"description"`
	Current       string   `json:"current"`
	Expected      string   `json:"expected"`
	AffectedItems []string `json:"affected_items,omitempty"`
	Evidence      Evidence `json:"evidence"`
	ProblemScore  float64  `json:"problem_score"`
}
