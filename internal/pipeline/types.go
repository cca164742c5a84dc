// Package pipeline wires the closed loop: Sensor, Expectation,
// Comparison, Interpretation, Exploration, Proposal, Composition,
// Execution and Learning, over the persistent World Model.
package pipeline

import (
	"time"

	"sia/internal/agent"
	"sia/internal/problem"
	"sia/internal/source"
	"sia/internal/worldmodel"
)

// MultiDomain marks a merged multi-domain state.
const MultiDomain = "multi"

// DomainState is the snapshot of one domain with its aggregates.
type DomainState struct {
	Domain string `json:"domain"`

	Emails      []source.Email `json:"emails,omitempty"`
	TotalEmails int            `json:"total_emails,omitempty"`
	UnreadCount int            `json:"unread_count,omitempty"`

	PullRequests   []source.PullRequest `json:"pull_requests,omitempty"`
	PendingReviews int                  `json:"pending_reviews,omitempty"`

	Health        []source.HealthRecord `json:"health,omitempty"`
	AvgSleepHours float64               `json:"avg_sleep_hours,omitempty"`

	Transactions         []source.Transaction `json:"transactions,omitempty"`
	WeeklyCategoryTotals map[string]float64   `json:"weekly_category_totals,omitempty"`
}

// CurrentState is one Sensor emission. For several domains, Domain is
// "multi" and States holds one entry per domain.
type CurrentState struct {
	Domain    string                  `json:"domain"`
	Domains   []string                `json:"domains,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	States    map[string]*DomainState `json:"data"`
	Source    string                  `json:"source"`
}

// State returns the snapshot for one domain, or nil.
func (s *CurrentState) State(domain string) *DomainState {
	if s == nil {
		return nil
	}
	return s.States[domain]
}

// Expectation is one derived ideal-state set. It is never persisted.
type Expectation struct {
	Domain      string                  `json:"domain"`
	IdealStates []worldmodel.IdealState `json:"ideal_states"`
	Source      string                  `json:"source"` // llm | fallback
}

// Proposal pairs a problem with its recommended solution.
type Proposal struct {
	ID                   string           `json:"id"`
	Problem              problem.Problem  `json:"problem"`
	RecommendedSolution  agent.Solution   `json:"recommended_solution"`
	AlternativeSolutions []agent.Solution `json:"alternative_solutions,omitempty"`
	Status               string           `json:"status"`
	CreatedAt            time.Time        `json:"created_at"`
}

// User decisions on a proposal.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionSnooze  = "snooze"
)
